package types

// SuccessEnvelope wraps every 2xx body of the cart API.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the error body. RequestID echoes X-Request-Id so a client can
// quote it when reporting a rejected cart change.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
