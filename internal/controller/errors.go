package controller

import (
	"errors"
	"fmt"
)

var (
	ErrNoServerSelected         = errors.New("no server selected")
	ErrMissingConfig            = errors.New("server has no tunnel configuration")
	ErrNothingToReconnect       = errors.New("nothing to reconnect")
	ErrNotConnected             = errors.New("not connected")
	ErrBusy                     = errors.New("a disconnect is in progress")
	ErrUnknownServer            = errors.New("unknown server")
	ErrSwitchRequiresDisconnect = errors.New("switching servers requires disconnecting first")
	ErrNoPendingSwitch          = errors.New("no server switch pending")
	ErrClosed                   = errors.New("controller closed")
)

// ConfigurationError is returned by Connect when the selected server cannot
// be handed to the backend. No backend call is made.
type ConfigurationError struct {
	Server string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Server == "" {
		return fmt.Sprintf("Configuration error: %v", e.Err)
	}
	return fmt.Sprintf("Configuration error for %s: %v", e.Server, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

const (
	OpConnect    = "connect"
	OpDisconnect = "disconnect"
	OpReconnect  = "reconnect"
)

// BackendCommandError describes a failed backend call or a failure the
// backend reported on its own. Its message is what the error state shows.
type BackendCommandError struct {
	Op     string
	Server string
	Err    error
}

func (e *BackendCommandError) Error() string {
	switch e.Op {
	case OpConnect:
		return fmt.Sprintf("Unable to connect to %s: %v", e.Server, e.Err)
	case OpDisconnect:
		return fmt.Sprintf("Failed to disconnect: %v", e.Err)
	case OpReconnect:
		return fmt.Sprintf("Failed to reconnect: %v", e.Err)
	default:
		return fmt.Sprintf("Tunnel error: %v", e.Err)
	}
}

func (e *BackendCommandError) Unwrap() error {
	return e.Err
}
