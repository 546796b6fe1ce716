package domain

// ConnectionState represents the lifecycle of a chain gateway.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateReady        ConnectionState = "ready"
	StateClosed       ConnectionState = "closed"
)
