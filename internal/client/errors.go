package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Envelope holds the status fields every response may carry.
type Envelope struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// APIError is an application-level failure reported by the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error (status %d)", e.Status)
	}
	return fmt.Sprintf("api error (status %d): %s", e.Status, e.Message)
}

// IsAPIError reports whether err carries a server-side failure.
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// errorFromBody inspects a response. A non-2xx status, an "error" field of
// any type or status "error" is a failure even if the HTTP status is 200.
// Fields of unexpected types never hide an "error" field.
func errorFromBody(status int, body []byte) error {
	var fields map[string]json.RawMessage
	jsonErr := json.Unmarshal(body, &fields)

	errRaw, hasErr := fields["error"]
	hasErr = hasErr && string(errRaw) != "null"
	errMsg := rawText(errRaw)
	message := stringField(fields, "message")

	if status < 200 || status >= 300 {
		msg := errMsg
		if msg == "" {
			msg = message
		}
		if msg == "" && jsonErr != nil {
			msg = strings.TrimSpace(string(body))
		}
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &APIError{Status: status, Message: msg}
	}

	if jsonErr != nil {
		return nil
	}
	if hasErr && !emptyString(errRaw) {
		if errMsg == "" {
			errMsg = message
		}
		return &APIError{Status: status, Message: errMsg}
	}
	if strings.EqualFold(stringField(fields, "status"), "error") {
		return &APIError{Status: status, Message: message}
	}
	return nil
}

// stringField returns a field's value when it is a JSON string.
func stringField(fields map[string]json.RawMessage, key string) string {
	var s string
	if raw, ok := fields[key]; ok && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return ""
}

// rawText renders an error value: strings as-is, anything else as JSON.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

func emptyString(raw json.RawMessage) bool {
	var s string
	return json.Unmarshal(raw, &s) == nil && s == ""
}
