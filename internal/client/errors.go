package client

import (
	"fmt"
	"net/http"
)

// DeliveryError is returned by Send once every attempt has failed
type DeliveryError struct {
	Attempts int
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

type AuthError struct {
	Message    string
	StatusCode int
}

func (e *AuthError) Error() string {
	return e.Message
}

type RateLimitError struct {
	Message    string
	StatusCode int
}

func (e *RateLimitError) Error() string {
	return e.Message
}

type BadRequestError struct {
	Message    string
	StatusCode int
}

func (e *BadRequestError) Error() string {
	return e.Message
}

type BackendError struct {
	Message    string
	StatusCode int
}

func (e *BackendError) Error() string {
	return e.Message
}

func statusError(statusCode int, body []byte) error {
	msg := fmt.Sprintf("collector returned status %d: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthError{Message: msg, StatusCode: statusCode}
	case http.StatusTooManyRequests:
		return &RateLimitError{Message: msg, StatusCode: statusCode}
	case http.StatusBadRequest:
		return &BadRequestError{Message: msg, StatusCode: statusCode}
	default:
		return &BackendError{Message: msg, StatusCode: statusCode}
	}
}
