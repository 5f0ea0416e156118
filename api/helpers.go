package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/vocdoni/bonsai-local/jobs"
	"github.com/vocdoni/bonsai-local/log"
	"github.com/vocdoni/bonsai-local/storage"
)

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
		return
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
		return
	}
	if !DisabledLogging && log.Level() == log.LogLevelDebug {
		log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
	}
}

// httpWriteBytes writes data as the whole response body.
func httpWriteBytes(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		log.Warnw("failed to write binary response", "error", err)
	}
}

// httpWriteBinary streams an in-memory byte slice as a response.
func httpWriteBinary(w http.ResponseWriter, data []byte) {
	httpWriteBytes(w, "application/octet-stream", data)
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// readBody reads an artifact upload up to the configured limit.
func (a *API) readBody(w http.ResponseWriter, r *http.Request) ([]byte, *Error) {
	return readLimited(w, r, a.maxBody)
}

func readLimited(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, *Error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apiErr := ErrBodyTooLarge.Withf("limit is %d bytes", tooLarge.Limit)
			return nil, &apiErr
		}
		apiErr := ErrMalformedBody.WithErr(err)
		return nil, &apiErr
	}
	return body, nil
}

// decodeJSON reads and decodes a JSON request body into v.
func (a *API) decodeJSON(w http.ResponseWriter, r *http.Request, v any) *Error {
	body, apiErr := readLimited(w, r, maxJSONBodySize)
	if apiErr != nil {
		return apiErr
	}
	if err := json.Unmarshal(body, v); err != nil {
		e := ErrMalformedBody.WithErr(err)
		return &e
	}
	return nil
}

// requestURL builds an absolute URL for path on the server that received r.
func (a *API) requestURL(r *http.Request, path string) string {
	if a.baseURL != "" {
		return strings.TrimSuffix(a.baseURL, "/") + path
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + path
}

// errorFor translates store and registry errors into API errors. Errors
// without a mapping are reported as internal errors.
func (a *API) errorFor(err error) Error {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, jobs.ErrUnknownArtifact):
		return ErrUnknownArtifact.WithErr(err)
	case errors.Is(err, storage.ErrEmptyArtifact):
		return ErrEmptyArtifact
	case errors.Is(err, storage.ErrImageIDExists):
		return ErrImageIDExists.WithErr(err)
	case errors.Is(err, storage.ErrInvalidImageID):
		return ErrInvalidImageID.WithErr(err)
	case errors.Is(err, storage.ErrUnknownUpload):
		return ErrUnknownUpload.WithErr(err)
	case errors.Is(err, storage.ErrUploadCompleted):
		return ErrUploadCompleted.WithErr(err)
	case errors.Is(err, jobs.ErrNotReady):
		return ErrJobNotReady.WithErr(err)
	case errors.Is(err, storage.ErrStorageFull):
		a.metrics.Rejected("storage_full")
		return ErrStorageFull.WithErr(err)
	case errors.Is(err, jobs.ErrQueueFull):
		a.metrics.Rejected("queue_full")
		return ErrQueueFull.WithErr(err)
	default:
		log.Warnw("unexpected api error", "error", err.Error())
		return ErrGenericInternalServerError.WithErr(err)
	}
}
