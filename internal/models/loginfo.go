package models

// RequestInfo captures the request fields attached to structured log entries.
type RequestInfo struct {
	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`
	Query  string `json:"query,omitempty"`
}

// ErrorInfo captures the error fields attached to structured log entries.
type ErrorInfo struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}
