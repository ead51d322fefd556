package runtime

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automateyournetwork/netagent/pkg/config"
	"github.com/automateyournetwork/netagent/pkg/inventory"
	"github.com/automateyournetwork/netagent/pkg/protocol"
	"github.com/automateyournetwork/netagent/pkg/reasoner"
	"github.com/automateyournetwork/netagent/pkg/session"
)

const testbedYAML = `devices:
  DESKTOP:
    os: linux
    host: 10.0.0.10
    username: lab
    password: lab
    supported_commands:
      - ifconfig
      - ifconfig {interface}
`

// scriptedReasoner replays a fixed step sequence, repeating the last
// step once the script runs out.
type scriptedReasoner struct {
	steps []*protocol.Step
	calls int
}

func (s *scriptedReasoner) Propose(ctx context.Context, req reasoner.ProposeRequest) (*protocol.Step, error) {
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	return s.steps[i], nil
}

func (s *scriptedReasoner) Describe(ctx context.Context, image []byte, mediaType, prompt string) (string, error) {
	return "an image", nil
}

type scriptedTransport struct {
	outputs  map[string]string
	executed []string
}

func (s *scriptedTransport) Connect(ctx context.Context) error { return nil }
func (s *scriptedTransport) Disconnect() error                 { return nil }

func (s *scriptedTransport) Execute(ctx context.Context, command string, timeout time.Duration) (string, error) {
	s.executed = append(s.executed, command)
	return s.outputs[command], nil
}

func writeTestbed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "testbed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testbedYAML), 0o600))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Inventory: writeTestbed(t),
		Agents: map[string]*config.AgentConfig{
			"DESKTOP": {
				Description: "Linux desktop",
				Device:      "DESKTOP",
				Tools:       []string{"execute_structured_command", "execute_raw_command"},
			},
		},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestNewWiresAddressedCommandEndToEnd(t *testing.T) {
	transport := &scriptedTransport{outputs: map[string]string{
		"ifconfig eth0": "eth0: flags=4163<UP,BROADCAST,RUNNING>  mtu 1500",
	}}
	r := &scriptedReasoner{steps: []*protocol.Step{
		protocol.NewToolStep("check the interface", "execute_structured_command", map[string]interface{}{
			"device":  "DESKTOP",
			"command": "ifconfig eth0",
		}),
		protocol.NewFinalStep("", "eth0 is up"),
	}}

	rt, err := New(testConfig(t),
		WithReasoner(r, r),
		WithTransportFactory(func(device *inventory.Device) session.Transport { return transport }),
	)
	require.NoError(t, err)

	result, err := rt.Router().Handle(context.Background(), "DESKTOP: is eth0 up?")
	require.NoError(t, err)

	assert.Equal(t, "completed", result.Status)
	assert.Equal(t, "eth0 is up", result.Answer)
	assert.Equal(t, []string{"ifconfig eth0"}, transport.executed)
}

func TestNewWiresInstallConfirmation(t *testing.T) {
	transport := &scriptedTransport{outputs: map[string]string{
		"sudo apt install -y sshpass": "Setting up sshpass (1.09-1)",
		"dpkg -l | grep sshpass":      "ii  sshpass  1.09-1  amd64",
	}}
	r := &scriptedReasoner{steps: []*protocol.Step{
		protocol.NewToolStep("", "execute_raw_command", map[string]interface{}{
			"device":  "DESKTOP",
			"command": "sudo apt install -y sshpass",
		}),
		protocol.NewFinalStep("", "sshpass installed"),
	}}

	rt, err := New(testConfig(t),
		WithReasoner(r, r),
		WithTransportFactory(func(device *inventory.Device) session.Transport { return transport }),
	)
	require.NoError(t, err)

	result, err := rt.Router().Handle(context.Background(), "DESKTOP: install sshpass")
	require.NoError(t, err)

	assert.Equal(t, "completed", result.Status)
	require.Len(t, transport.executed, 2, "install then one confirming probe")
	assert.Equal(t, "dpkg -l | grep sshpass", transport.executed[1])
}

func TestNewRejectsUnknownTool(t *testing.T) {
	cfg := testConfig(t)
	cfg.Agents["DESKTOP"].Tools = []string{"execute_structured_command", "launch_missiles"}

	r := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "ok")}}
	_, err := New(cfg, WithReasoner(r, r))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "launch_missiles")
}

func TestNewRejectsUnknownDevice(t *testing.T) {
	cfg := testConfig(t)
	cfg.Agents["GHOST"] = &config.AgentConfig{
		Description: "references a device the testbed does not have",
		Device:      "GHOST",
		Tools:       []string{"execute_raw_command"},
	}

	r := &scriptedReasoner{steps: []*protocol.Step{protocol.NewFinalStep("", "ok")}}
	_, err := New(cfg, WithReasoner(r, r))

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "GHOST"))
}

func TestUnwiredTransportFailsWithGuidance(t *testing.T) {
	r := &scriptedReasoner{steps: []*protocol.Step{
		protocol.NewToolStep("", "execute_raw_command", map[string]interface{}{
			"device":  "DESKTOP",
			"command": "ls -l",
		}),
		protocol.NewFinalStep("", "done"),
	}}

	rt, err := New(testConfig(t), WithReasoner(r, r))
	require.NoError(t, err)

	result, err := rt.Router().Handle(context.Background(), "DESKTOP: list files")
	require.NoError(t, err)

	// The tool failure is an observation; the run still finishes.
	assert.Equal(t, "completed", result.Status)
}
