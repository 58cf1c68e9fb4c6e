package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// WebhookAck is the body returned to the processor for accepted events.
// Returning 200 with this payload stops the processor's retry loop.
type WebhookAck struct {
	Received bool `json:"received"`
}
