package transport

import "github.com/pendergraft/questhub/internal/quests"

// ListResponse is the response for listing quests.
type ListResponse struct {
	Data  []quests.Quest `json:"data"`
	Count int            `json:"count"`
}

// MilestonesResponse is the response for the milestone catalogue.
type MilestonesResponse struct {
	Data []quests.Milestone `json:"data"`
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
