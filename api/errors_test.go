package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestErrorWrite(t *testing.T) {
	c := qt.New(t)
	rec := httptest.NewRecorder()
	ErrSessionNotFound.Withf("id %s", "abc").Write(rec)

	c.Assert(rec.Code, qt.Equals, http.StatusNotFound)
	c.Assert(rec.Header().Get("Content-Type"), qt.Equals, "application/json")
	var body map[string]any
	c.Assert(json.Unmarshal(rec.Body.Bytes(), &body), qt.IsNil)
	c.Assert(body["error"], qt.Equals, "session not found: id abc")
	c.Assert(body["code"], qt.Equals, float64(40005))

	rec = httptest.NewRecorder()
	ErrImageUploaded.Write(rec)
	c.Assert(rec.Code, qt.Equals, http.StatusNoContent)
	c.Assert(rec.Body.Len(), qt.Equals, 0)
}

func TestErrorRoundTrip(t *testing.T) {
	c := qt.New(t)
	data, err := json.Marshal(ErrJobNotReady.WithErr(fmt.Errorf("job abc is queued")))
	c.Assert(err, qt.IsNil)

	decoded := Error{}
	c.Assert(json.Unmarshal(data, &decoded), qt.IsNil)
	c.Assert(decoded.Error(), qt.Equals, "job result not ready: job abc is queued")
	c.Assert(errors.Is(decoded, ErrJobNotReady), qt.IsTrue)
	c.Assert(errors.Is(decoded, ErrSessionNotFound), qt.IsFalse)

	wrapped := fmt.Errorf("poll: %w", decoded)
	var apiErr Error
	c.Assert(errors.As(wrapped, &apiErr), qt.IsTrue)
	c.Assert(apiErr.Code, qt.Equals, ErrJobNotReady.Code)
}

func TestErrorCodesAreUnique(t *testing.T) {
	c := qt.New(t)
	seen := map[int]string{}
	for _, e := range []Error{
		ErrResourceNotFound, ErrMalformedBody, ErrMalformedParam, ErrUnknownArtifact,
		ErrSessionNotFound, ErrSnarkNotFound, ErrJobNotReady, ErrImageIDExists,
		ErrInvalidImageID, ErrUnknownUpload, ErrEmptyArtifact, ErrBodyTooLarge,
		ErrImageUploaded, ErrUploadCompleted, ErrMarshalingServerJSONFailed,
		ErrGenericInternalServerError, ErrStorageFull, ErrQueueFull,
	} {
		prev, dup := seen[e.Code]
		c.Assert(dup, qt.IsFalse, qt.Commentf("%d used by %q and %q", e.Code, prev, e.Error()))
		seen[e.Code] = e.Error()
	}
}
