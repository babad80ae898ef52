package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the gateway.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// fallbackMessage is shown when the server did not supply one.
func fallbackMessage(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "Invalid email or password"
	case http.StatusForbidden:
		return "Access denied"
	case http.StatusNotFound:
		return "Resource not found"
	case http.StatusInternalServerError:
		return "Server error. Please try again later."
	}
	if status >= 500 {
		return "Server error. Please try again later."
	}
	return "Request failed"
}

func decodeAPIError(status int, body []byte) *APIError {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Detail  string          `json:"detail"`
	}
	msg := ""
	if err := json.Unmarshal(body, &payload); err == nil {
		msg = messageText(payload.Message)
		if msg == "" {
			msg = payload.Detail
		}
	}
	if strings.TrimSpace(msg) == "" {
		msg = fallbackMessage(status)
	}
	return &APIError{Status: status, Message: msg}
}

// messageText accepts a string or a list of strings.
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, ", ")
	}
	return ""
}
