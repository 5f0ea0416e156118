package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/vocdoni/bonsai-local/log"
)

// Error is an API error with a stable code and the HTTP status it is
// served with. It is sent to clients as {"error": "...", "code": N}.
type Error struct {
	Err        error
	Code       int
	HTTPstatus int
}

type errorBody struct {
	Err  string `json:"error"`
	Code int    `json:"code"`
}

// MarshalJSON returns a JSON containing Err.Error() and Code.
func (e Error) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(errorBody{Err: msg, Code: e.Code})
}

// UnmarshalJSON parses an error body written by Write. HTTPstatus is not
// part of the body and is left untouched.
func (e *Error) UnmarshalJSON(data []byte) error {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	e.Err = errors.New(body.Err)
	e.Code = body.Code
	return nil
}

// Error returns the message of the underlying error.
func (e Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("api error %d", e.Code)
	}
	return e.Err.Error()
}

// Is matches errors by code, so errors decoded by a client compare equal
// to the catalogue entries.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	return ok && t.Code == e.Code
}

// Write serializes the error as JSON and writes it to w with its status.
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warn(err)
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	if log.Level() == log.LogLevelDebug {
		log.Debugw("api error response", "error", e.Error(), "code", e.Code, "status", e.HTTPstatus)
	}
	// 204 responses carry no body
	if e.HTTPstatus == http.StatusNoContent {
		w.WriteHeader(e.HTTPstatus)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPstatus)
	if _, err := w.Write(msg); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// Withf returns a copy of the error with a formatted detail appended.
func (e Error) Withf(format string, args ...any) Error {
	return e.With(fmt.Sprintf(format, args...))
}

// With returns a copy of the error with s appended.
func (e Error) With(s string) Error {
	return Error{
		Err:        fmt.Errorf("%w: %v", e.Err, s),
		Code:       e.Code,
		HTTPstatus: e.HTTPstatus,
	}
}

// WithErr returns a copy of the error with err appended.
func (e Error) WithErr(err error) Error {
	return e.With(err.Error())
}
