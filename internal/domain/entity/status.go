package entity

// ConnectionStatus describes the proxy's current ability to reach
// OpenRouter with a usable runtime key.
type ConnectionStatus string

const (
	StatusReady         ConnectionStatus = "READY"
	StatusConnecting    ConnectionStatus = "CONNECTING"
	StatusError         ConnectionStatus = "ERROR"
	StatusNotConfigured ConnectionStatus = "NOT_CONFIGURED"
	StatusOffline       ConnectionStatus = "OFFLINE"
)
