package models

// ConnectionStatus is the application-visible state of the tunnel. Only the
// lifecycle controller assigns it.
type ConnectionStatus string

const (
	StatusDisconnected  ConnectionStatus = "disconnected"
	StatusConnecting    ConnectionStatus = "connecting"
	StatusConnected     ConnectionStatus = "connected"
	StatusDisconnecting ConnectionStatus = "disconnecting"
	StatusReconnecting  ConnectionStatus = "reconnecting"
	StatusError         ConnectionStatus = "error"
)

func (s ConnectionStatus) String() string {
	return string(s)
}

// IsActive reports whether a tunnel is up or being brought up.
func (s ConnectionStatus) IsActive() bool {
	switch s {
	case StatusConnecting, StatusConnected, StatusReconnecting:
		return true
	default:
		return false
	}
}

// IsResting reports whether the status needs no backend activity to hold.
func (s ConnectionStatus) IsResting() bool {
	return s == StatusDisconnected || s == StatusError
}
