package api

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/bonsai-local/log"
)

func TestLoggingMiddlewarePreservesBody(t *testing.T) {
	log.Init(log.LogLevelDebug, "stderr", nil)
	t.Cleanup(func() { log.Init(log.LogLevelError, "stderr", nil) })

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write(body)
	})
	handler := loggingMiddleware(LoggingConfig{MaxBodyLog: 8})(echo)

	for _, body := range []string{
		`{"img": "cubic", "input": "bafkrei"}`,
		`  [1, 2, 3]`,
		"\x00\x01\x02\x03\x04",
		"",
	} {
		t.Run(body, func(t *testing.T) {
			c := qt.New(t)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/sessions/create", bytes.NewBufferString(body)))
			c.Assert(rec.Code, qt.Equals, http.StatusCreated)
			c.Assert(rec.Body.String(), qt.Equals, body)
		})
	}
}

func TestShouldSkipLogging(t *testing.T) {
	c := qt.New(t)
	conf := DefaultLoggingConfig()
	log.Init(log.LogLevelError, "stderr", nil)

	// only debug level logs requests
	c.Assert(conf.shouldSkipLogging(httptest.NewRequest(http.MethodGet, "/images", nil)), qt.IsTrue)

	log.Init(log.LogLevelDebug, "stderr", nil)
	t.Cleanup(func() { log.Init(log.LogLevelError, "stderr", nil) })
	for path, skip := range map[string]bool{
		"/ping":                true,
		"/metrics":             true,
		"/sessions/status/abc": true,
		"/snark/status/abc":    true,
		"/sessions/create":     false,
		"/images/upload/x":     false,
	} {
		c.Assert(conf.shouldSkipLogging(httptest.NewRequest(http.MethodGet, path, nil)), qt.Equals, skip,
			qt.Commentf("path %s", path))
	}

	DisabledLogging = true
	t.Cleanup(func() { DisabledLogging = false })
	c.Assert(conf.shouldSkipLogging(httptest.NewRequest(http.MethodGet, "/sessions/create", nil)), qt.IsTrue)
}

func TestResponseWriterCapture(t *testing.T) {
	c := qt.New(t)

	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec}
	_, err := rw.Write([]byte("data"))
	c.Assert(err, qt.IsNil)
	c.Assert(rw.statusCode, qt.Equals, http.StatusOK)
	c.Assert(rw.bytes, qt.Equals, 4)

	rec = httptest.NewRecorder()
	rw = &responseWriter{ResponseWriter: rec}
	rw.WriteHeader(http.StatusConflict)
	rw.WriteHeader(http.StatusOK)
	c.Assert(rw.statusCode, qt.Equals, http.StatusConflict)
}

func TestPeekBody(t *testing.T) {
	c := qt.New(t)
	for body, want := range map[string]string{
		`{"a":1}`:              `{a:1}`,
		` [1,2,3,4,5,6,7,8,9]`: ` [1,2,3,4,...`,
		"\x7fELF binary":       "",
		"":                     "",
	} {
		r := httptest.NewRequest(http.MethodPost, "/inputs", bytes.NewBufferString(body))
		preview, err := peekBody(r, 10)
		c.Assert(err, qt.IsNil)
		c.Assert(preview, qt.Equals, want, qt.Commentf("body %q", body))

		// the handler still sees the whole body
		rest, err := io.ReadAll(r.Body)
		c.Assert(err, qt.IsNil)
		c.Assert(string(rest), qt.Equals, body)
	}
}
