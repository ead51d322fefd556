// Package session serializes command execution against network devices.
//
// Every device gets its own connection lifecycle: connect, execute one or
// more commands, disconnect. The manager guarantees that at most one
// session is open per device at a time and that connections never leak,
// even when the work inside a session fails.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/automateyournetwork/netagent/pkg/inventory"
	"github.com/automateyournetwork/netagent/pkg/logger"
)

// State is the connection state of a single device.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateDisconnecting State = "disconnecting"
	StateFaulted       State = "faulted"
)

// Status of a finished execution.
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// ExecutionResult is the uniform shape returned for every device command,
// successful or not.
type ExecutionResult struct {
	Status  string            `json:"status"`
	Device  string            `json:"device"`
	Fields  map[string]string `json:"fields,omitempty"`
	Output  string            `json:"output,omitempty"`
	Error   string            `json:"error,omitempty"`
	Command string            `json:"command"`
}

// Transport is a live connection to one device. Implementations wrap
// whatever protocol the device speaks (SSH, telnet, a lab simulator).
type Transport interface {
	Connect(ctx context.Context) error
	Execute(ctx context.Context, command string, timeout time.Duration) (string, error)
	Disconnect() error
}

// TransportFactory builds a transport for a device. The manager calls it
// once per session.
type TransportFactory func(device *inventory.Device) Transport

// Parser can additionally be implemented by a Transport that knows how
// to turn command output into structured fields for its platform.
type Parser interface {
	Parse(command, output string) (map[string]string, error)
}

// Exec is the capability handed to work running inside a session. It is
// only valid until the enclosing WithSession call returns.
type Exec interface {
	// Run executes a single command on the session's device using the
	// manager's default timeout.
	Run(ctx context.Context, command string) (string, error)
	// RunTimeout executes a single command with an explicit timeout,
	// for work that legitimately outlives the default (installs).
	RunTimeout(ctx context.Context, command string, timeout time.Duration) (string, error)
	// Parse derives structured fields from command output when the
	// underlying transport supports it. Unsupported transports yield
	// nil fields and no error.
	Parse(command, output string) (map[string]string, error)
	// Device returns the device this session is bound to.
	Device() *inventory.Device
}

// Manager owns one lifecycle per device and serializes access to it.
type Manager struct {
	testbed *inventory.Testbed
	factory TransportFactory
	timeout time.Duration

	mu      sync.Mutex
	devices map[string]*deviceSlot
}

type deviceSlot struct {
	// mu serializes sessions on the device. It is held for the whole
	// of WithSession, so the state field gets its own guard: state must
	// stay observable while a session is open.
	mu sync.Mutex

	stateMu sync.Mutex
	state   State
}

// NewManager builds a manager over a testbed. timeout bounds each
// individual command execution.
func NewManager(testbed *inventory.Testbed, factory TransportFactory, timeout time.Duration) *Manager {
	return &Manager{
		testbed: testbed,
		factory: factory,
		timeout: timeout,
		devices: make(map[string]*deviceSlot),
	}
}

func (m *Manager) slot(device string) *deviceSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.devices[device]
	if !ok {
		s = &deviceSlot{state: StateDisconnected}
		m.devices[device] = s
	}
	return s
}

// State reports the current connection state of a device. Devices that
// have never been used report StateDisconnected.
func (m *Manager) State(device string) State {
	s := m.slot(device)
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *deviceSlot) setState(st State) {
	s.stateMu.Lock()
	s.state = st
	s.stateMu.Unlock()
}

// WithSession runs fn inside a fresh session on the named device.
//
// The session is fully scoped: the device is connected before fn runs and
// disconnected after fn returns, whether fn succeeds, fails, or the
// context is cancelled. Concurrent calls for the same device block until
// the prior session has been released; calls for distinct devices proceed
// independently.
func (m *Manager) WithSession(ctx context.Context, deviceName string, fn func(Exec) error) error {
	device, err := m.testbed.Get(deviceName)
	if err != nil {
		return &ConnectionError{Device: deviceName, Message: "unknown device", Err: err}
	}

	slot := m.slot(deviceName)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return &ConnectionError{Device: deviceName, Message: "context cancelled before connect", Err: err}
	}

	transport := m.factory(device)

	slot.setState(StateConnecting)
	logger.Debug("Connecting to device", "device", deviceName, "host", device.Host)
	if err := transport.Connect(ctx); err != nil {
		// A failed connect leaves nothing to tear down. The next
		// session attempt starts from scratch either way.
		slot.setState(StateFaulted)
		return &ConnectionError{Device: deviceName, Message: "connect failed", Err: err}
	}
	slot.setState(StateConnected)

	runErr := fn(&exec{manager: m, transport: transport, device: device})

	slot.setState(StateDisconnecting)
	if err := transport.Disconnect(); err != nil {
		slot.setState(StateFaulted)
		logger.Warn("Disconnect failed", "device", deviceName, "error", err)
		if runErr == nil {
			return &ConnectionError{Device: deviceName, Message: "disconnect failed", Err: err}
		}
		return runErr
	}
	slot.setState(StateDisconnected)
	return runErr
}

type exec struct {
	manager   *Manager
	transport Transport
	device    *inventory.Device
}

func (e *exec) Device() *inventory.Device {
	return e.device
}

func (e *exec) Parse(command, output string) (map[string]string, error) {
	parser, ok := e.transport.(Parser)
	if !ok {
		return nil, nil
	}
	fields, err := parser.Parse(command, output)
	if err != nil {
		return nil, &TransportError{Device: e.device.Name, Command: command, Message: "parse failed", Err: err}
	}
	return fields, nil
}

func (e *exec) Run(ctx context.Context, command string) (string, error) {
	return e.RunTimeout(ctx, command, e.manager.timeout)
}

func (e *exec) RunTimeout(ctx context.Context, command string, timeout time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &TransportError{Device: e.device.Name, Command: command, Message: "context cancelled", Err: err}
	}
	logger.Debug("Executing command", "device", e.device.Name, "command", command)
	output, err := e.transport.Execute(ctx, command, timeout)
	if err != nil {
		return "", &TransportError{Device: e.device.Name, Command: command, Message: "execute failed", Err: err}
	}
	return output, nil
}

// CompletedResult shapes a successful execution into the uniform result
// envelope.
func CompletedResult(device, command, output string, fields map[string]string) ExecutionResult {
	return ExecutionResult{
		Status:  StatusCompleted,
		Device:  device,
		Command: command,
		Output:  output,
		Fields:  fields,
	}
}

// ErrorResult shapes a failed execution into the uniform result envelope.
func ErrorResult(device, command string, err error) ExecutionResult {
	return ExecutionResult{
		Status:  StatusError,
		Device:  device,
		Command: command,
		Error:   err.Error(),
	}
}
