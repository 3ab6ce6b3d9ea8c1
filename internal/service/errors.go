package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrMalformed reports a response body that did not decode as the backend's
// documented shape.
var ErrMalformed = errors.New("malformed service response")

// ServiceError is a rejection reported by the remote service. The message is
// passed through verbatim so the user sees what the tracker actually said.
type ServiceError struct {
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("service rejected request: HTTP %d", e.Status)
	}
	return fmt.Sprintf("service rejected request: HTTP %d: %s", e.Status, e.Message)
}

// DecodeError turns a non-2xx response into a ServiceError, extracting the
// message from a JSON error body when one is present.
func DecodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := ""
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Errors  []any  `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Message != "":
			msg = payload.Message
		case payload.Error != "":
			msg = payload.Error
		case len(payload.Errors) > 0:
			msg = fmt.Sprintf("%v", payload.Errors[0])
		}
	}
	if msg == "" {
		msg = string(body)
	}
	return &ServiceError{Status: resp.StatusCode, Message: msg}
}
