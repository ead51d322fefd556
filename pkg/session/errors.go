package session

import "fmt"

// ConnectionError indicates a failure establishing or tearing down a
// device connection.
type ConnectionError struct {
	Device  string
	Message string
	Err     error
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session: connection to %s failed: %s: %v", e.Device, e.Message, e.Err)
	}
	return fmt.Sprintf("session: connection to %s failed: %s", e.Device, e.Message)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TransportError indicates a failure while a command was in flight on an
// established connection.
type TransportError struct {
	Device  string
	Command string
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session: %s on %s: %s: %v", e.Command, e.Device, e.Message, e.Err)
	}
	return fmt.Sprintf("session: %s on %s: %s", e.Command, e.Device, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
