package api

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vocdoni/bonsai-local/log"
)

// DisabledLogging turns off request logging for every API instance.
var DisabledLogging = false

// LoggingConfig tunes loggingMiddleware.
type LoggingConfig struct {
	// MaxBodyLog is how many body bytes a request line may show.
	MaxBodyLog       int
	ExcludedPrefixes []string
}

// DefaultLoggingConfig returns the configuration used by the router.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		MaxBodyLog:       maxRequestBodyLog,
		ExcludedPrefixes: LogExcludedPrefixes,
	}
}

// Requests are only logged at debug level, and polling endpoints never.
func (lc LoggingConfig) shouldSkipLogging(r *http.Request) bool {
	if DisabledLogging || log.Level() != log.LogLevelDebug {
		return true
	}
	for _, prefix := range lc.ExcludedPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// responseWriter records the status and size of a response.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// peekBody reads at most limit+1 bytes from the request body and puts them
// back in front of the rest, so artifact uploads are never buffered whole.
// The returned preview is empty unless the body looks like JSON.
func peekBody(r *http.Request, limit int) (string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}
	head, err := io.ReadAll(io.LimitReader(r.Body, int64(limit)+1))
	if err != nil {
		return "", err
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(head), r.Body), r.Body}

	trimmed := bytes.TrimLeft(head, " \t\r\n")
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return "", nil
	}
	preview := string(head)
	if len(head) > limit {
		preview = preview[:limit] + "..."
	}
	return strings.ReplaceAll(preview, "\"", ""), nil
}

// loggingMiddleware writes a debug line per request and per response.
func loggingMiddleware(config LoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if config.shouldSkipLogging(r) {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			body, err := peekBody(r, config.MaxBodyLog)
			if err != nil {
				log.Warnw("cannot read request body", "url", r.URL.String(), "error", err.Error())
				http.Error(w, "unable to read request body", http.StatusBadRequest)
				return
			}
			log.Debugw("api request",
				"method", r.Method,
				"url", r.URL.String(),
				"bodyLen", r.ContentLength,
				"body", body,
			)

			wrapped := &responseWriter{ResponseWriter: w}
			next.ServeHTTP(wrapped, r)

			log.Debugw("api response",
				"method", r.Method,
				"url", r.URL.String(),
				"status", wrapped.statusCode,
				"bytes", wrapped.bytes,
				"took", time.Since(start).String(),
			)
		})
	}
}
