// Package domain contains entity without logic, just meta-data
package domain

type SessionStatus string

const (
	StatusIdle         SessionStatus = "idle"
	StatusConnecting   SessionStatus = "connecting"
	StatusConnected    SessionStatus = "connected"
	StatusReconnecting SessionStatus = "reconnecting"
	StatusDisconnected SessionStatus = "disconnected"
	StatusError        SessionStatus = "error"
)

// Terminal reports whether a fresh Connect is required to proceed.
func (s SessionStatus) Terminal() bool {
	return s == StatusIdle || s == StatusError
}

type SessionID string

// SessionInfo is the provisioning payload handed to Connect.
// It comes from the booking API and is treated as opaque here.
type SessionInfo struct {
	ID        SessionID `json:"id"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	ServerURL string    `json:"server_url"`
}

func (i SessionInfo) Empty() bool { return i.ID == "" }
