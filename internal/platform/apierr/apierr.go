package apierr

import (
	"errors"
	"fmt"
	"strings"
)

// Error is the uniform shape transport failures from remote collaborators
// (source-control host, object store) are normalised to. No retry happens at
// this layer.
type Error struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	body := strings.TrimSpace(e.Body)
	if len(body) > 300 {
		body = body[:300] + "…"
	}
	switch {
	case e.StatusCode != 0 && body != "":
		return fmt.Sprintf("api error (%d): %s", e.StatusCode, body)
	case e.StatusCode != 0:
		return fmt.Sprintf("api error (%d)", e.StatusCode)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "api error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, body string) *Error {
	return &Error{StatusCode: status, Body: body}
}

// Wrap normalises a transport-level failure (no HTTP response at all).
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Err: err, Body: err.Error()}
}

// Status returns the status code carried by err, or 0.
func Status(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.StatusCode
	}
	return 0
}
