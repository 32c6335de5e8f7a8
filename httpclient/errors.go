package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ConnectivityMessage is what users are shown for any NetworkError.
const ConnectivityMessage = "Cannot connect to server. Please check your network connection."

// NetworkError is returned when the transport could not complete the exchange
// (DNS, connect, TLS, timeout or cancellation). It is never retried automatically.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request ran out of time rather than failing to connect.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// StatusError is returned for any non-2xx response. Message is normalised from the body.
type StatusError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is a StatusError with the given status code.
func IsStatus(err error, statusCode int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == statusCode
}

// IsNetworkError reports whether err came from the transport.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Message extracts a human readable message from an error body: the JSON "message" field,
// then the JSON "error" field, then non-empty plain text, then a generic status message.
func Message(statusCode int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed != "" {
		var eb errorBody
		if err := json.Unmarshal(body, &eb); err == nil {
			if eb.Message != "" {
				return eb.Message
			}
			if eb.Error != "" {
				return eb.Error
			}
		} else if !strings.HasPrefix(trimmed, "<") {
			return trimmed
		}
	}
	return GenericMessage(statusCode)
}

func newStatusError(statusCode int, body []byte) *StatusError {
	return &StatusError{
		StatusCode: statusCode,
		Message:    Message(statusCode, body),
		Body:       body,
	}
}

// GenericMessage is the message used when a response body carries none.
func GenericMessage(statusCode int) string {
	return fmt.Sprintf("Request failed (Status %d)", statusCode)
}
