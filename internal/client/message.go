package client

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// UserMessage turns an API or transport error into text for the shopper.
// The server's own message is preferred where it explains the problem.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNetwork) {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return "The request timed out. Please try again."
		}
		return "Network error. Please check your connection."
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	switch apiErr.StatusCode {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}

	switch apiErr.StatusCode {
	case http.StatusBadRequest:
		return "Invalid request. Please check your input."
	case http.StatusUnauthorized:
		return "Please sign in to continue."
	case http.StatusForbidden:
		return "You do not have permission to perform this action."
	case http.StatusNotFound:
		return "The requested item was not found."
	case http.StatusConflict:
		return "This request conflicts with the current state. Please refresh and try again."
	case http.StatusUnprocessableEntity:
		return "The submitted data could not be processed."
	case http.StatusInternalServerError:
		return "Server error. Please try again later."
	case http.StatusServiceUnavailable:
		return "Service temporarily unavailable. Please try again later."
	default:
		return "Something went wrong. Please try again."
	}
}
