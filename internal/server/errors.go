package server

import (
	"errors"
	"fmt"
	"net/http"
)

// Response texts for the news endpoint.
const (
	msgNewsSent       = "News sent successfully."
	msgMissingNews    = "Bad Request: 'news' field is missing in JSON payload."
	msgInvalidJSON    = "Bad Request: Invalid JSON format."
	msgBodyTooLarge   = "Request Entity Too Large."
	msgRequestTimeout = "Request Timeout."
	msgInternal       = "Internal Server Error."
)

// requestError is a request failure carrying the HTTP status to answer with.
type requestError struct {
	Status  int
	Message string
	Cause   error
}

func (e *requestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *requestError) Unwrap() error {
	return e.Cause
}

func badRequest(message string, cause error) *requestError {
	return &requestError{Status: http.StatusBadRequest, Message: message, Cause: cause}
}

func bodyTooLarge(cause error) *requestError {
	return &requestError{Status: http.StatusRequestEntityTooLarge, Message: msgBodyTooLarge, Cause: cause}
}

func requestTimeout(cause error) *requestError {
	return &requestError{Status: http.StatusRequestTimeout, Message: msgRequestTimeout, Cause: cause}
}

func internalError(cause error) *requestError {
	return &requestError{Status: http.StatusInternalServerError, Message: msgInternal, Cause: cause}
}

// statusOf maps err to its HTTP status; unclassified errors are 500.
func statusOf(err error) *requestError {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}
	return internalError(err)
}
