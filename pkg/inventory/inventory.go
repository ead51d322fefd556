// Package inventory loads the static device testbed. The testbed is
// read once at startup and is read-only afterwards; connection state
// lives in the session manager, never here.
package inventory

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/automateyournetwork/netagent/pkg/config"
)

// Device is one testbed entry: identity plus connection parameters and
// the command signatures its transport can parse.
type Device struct {
	Name              string   `yaml:"-"`
	OS                string   `yaml:"os"`
	Host              string   `yaml:"host"`
	Port              int      `yaml:"port"`
	Username          string   `yaml:"username"`
	Password          string   `yaml:"password"`
	AllowRedirection  bool     `yaml:"allow_redirection"`
	SupportedCommands []string `yaml:"supported_commands"`
}

// Testbed is the full static inventory.
type Testbed struct {
	Devices map[string]*Device `yaml:"devices"`
}

// Load reads a testbed file, expanding ${ENV} references in credential
// fields.
func Load(path string) (*Testbed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read testbed: %w", err)
	}
	return Parse(data)
}

// Parse parses raw testbed YAML.
func Parse(data []byte) (*Testbed, error) {
	expanded := config.ExpandEnvVars(string(data))

	var tb Testbed
	if err := yaml.Unmarshal([]byte(expanded), &tb); err != nil {
		return nil, fmt.Errorf("failed to parse testbed: %w", err)
	}

	if len(tb.Devices) == 0 {
		return nil, fmt.Errorf("testbed defines no devices")
	}

	for name, dev := range tb.Devices {
		if dev == nil {
			return nil, fmt.Errorf("device '%s' has no configuration body", name)
		}
		dev.Name = name
		if dev.Port == 0 {
			dev.Port = 22
		}
	}

	return &tb, nil
}

// Get resolves a device by name.
func (t *Testbed) Get(name string) (*Device, error) {
	dev, ok := t.Devices[name]
	if !ok {
		return nil, fmt.Errorf("device '%s' not found in testbed", name)
	}
	return dev, nil
}

// Names returns device names in sorted order.
func (t *Testbed) Names() []string {
	names := make([]string, 0, len(t.Devices))
	for name := range t.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
