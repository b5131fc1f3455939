package transport

import "github.com/pendergraft/questhub/internal/verification/domain"

// VerifyRequest is the HTTP request body for checking a raw config.
type VerifyRequest struct {
	Config  domain.Config `json:"config"`
	Address string        `json:"address"`
	// Label tags the run in logs.
	Label string `json:"label,omitempty"`
}

// VerifyResponse is the response for a verification request.
type VerifyResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Tier    string `json:"tier,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
