package dto

import "time"

// ErrorResponse is the JSON body returned for every non-2xx response.
type ErrorResponse struct {
	Message      string    `json:"message" example:"stock symbol not found"`
	ErrorDetails string    `json:"error,omitempty" example:"quote unavailable"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewErrorResponse builds an ErrorResponse; err may be nil.
func NewErrorResponse(message string, err error) ErrorResponse {
	resp := ErrorResponse{Message: message, Timestamp: time.Now().UTC()}
	if err != nil {
		resp.ErrorDetails = err.Error()
	}
	return resp
}

// Error implements error so handlers can pass the response through c.Error.
func (e ErrorResponse) Error() string {
	if e.ErrorDetails == "" {
		return e.Message
	}
	return e.Message + ": " + e.ErrorDetails
}
