package registry

import "testing"

func TestBaseRegistry_RegisterAndGet(t *testing.T) {
	r := NewBaseRegistry[int]()

	if err := r.Register("one", 1); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, ok := r.Get("one")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got != 1 {
		t.Errorf("Get() = %d, want 1", got)
	}
}

func TestBaseRegistry_RegisterEmptyName(t *testing.T) {
	r := NewBaseRegistry[string]()
	if err := r.Register("", "x"); err == nil {
		t.Error("Register(\"\") should fail")
	}
}

func TestBaseRegistry_RegisterDuplicate(t *testing.T) {
	r := NewBaseRegistry[string]()
	if err := r.Register("a", "first"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register("a", "second"); err == nil {
		t.Error("duplicate Register() should fail")
	}
}

func TestBaseRegistry_NamesSorted(t *testing.T) {
	r := NewBaseRegistry[int]()
	for i, name := range []string{"zebra", "alpha", "mid"} {
		if err := r.Register(name, i); err != nil {
			t.Fatalf("Register(%q) error = %v", name, err)
		}
	}

	names := r.Names()
	want := []string{"alpha", "mid", "zebra"}
	if len(names) != len(want) {
		t.Fatalf("Names() len = %d, want %d", len(names), len(want))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestBaseRegistry_Remove(t *testing.T) {
	r := NewBaseRegistry[int]()
	if err := r.Register("x", 1); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Remove("x"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := r.Remove("x"); err == nil {
		t.Error("Remove() of missing item should fail")
	}
	if r.Count() != 0 {
		t.Errorf("Count() = %d, want 0", r.Count())
	}
}
