package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"
)

// ForbiddenError is returned for 403 responses. Callers test for it with
// IsForbidden to prompt the user to sign in again.
type ForbiddenError struct{}

func (ForbiddenError) Error() string {
	return "You aren't authorized to perform that action. Your session may have expired."
}

// NotFoundError is returned for 404 responses.
type NotFoundError struct{}

func (NotFoundError) Error() string {
	return "The resource you're looking for was not found. Maybe it was deleted."
}

// StatusError carries the message for any other failed response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

func IsForbidden(err error) bool {
	var fe ForbiddenError
	return errors.As(err, &fe)
}

func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// responseError maps a non-2xx response to an error. body has already been
// read in full.
func responseError(resp *http.Response, body []byte) error {
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return &StatusError{Status: resp.StatusCode, Message: validationMessage(body, resp.StatusCode)}
	case http.StatusForbidden:
		return ForbiddenError{}
	case http.StatusNotFound:
		return NotFoundError{}
	case http.StatusBadGateway:
		var payload struct {
			Detail string `json:"detail"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
			return &StatusError{Status: resp.StatusCode, Message: payload.Detail}
		}
	}
	return &StatusError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
}

// validationMessage flattens a field-to-messages object into one message
// per line. Fields are visited in name order.
func validationMessage(body []byte, status int) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) == 0 {
		return http.StatusText(status)
	}

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var lines []string
	for _, name := range names {
		raw := fields[name]
		var many []string
		if err := json.Unmarshal(raw, &many); err == nil {
			lines = append(lines, many...)
			continue
		}
		var one string
		if err := json.Unmarshal(raw, &one); err == nil {
			lines = append(lines, one)
		}
	}
	if len(lines) == 0 {
		return http.StatusText(status)
	}
	return strings.Join(lines, "\n")
}

func drain(r io.Reader) []byte {
	body, _ := io.ReadAll(io.LimitReader(r, 1<<20))
	return body
}
