//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// Error codes in the 40001-49999 range are the user's fault, and they return
// HTTP status 400, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault and they return HTTP status
// 500, 503 or 507.
//
// NEVER change any of the current error codes, only append new errors after
// the current last 4XXXX or 5XXXX. Gaps belong to retired errors and are not
// reused.
var (
	ErrResourceNotFound = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody    = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedParam   = Error{Code: 40003, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrUnknownArtifact  = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("unknown artifact")}
	ErrSessionNotFound  = Error{Code: 40005, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("session not found")}
	ErrSnarkNotFound    = Error{Code: 40006, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("snark job not found")}
	ErrJobNotReady      = Error{Code: 40007, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("job result not ready")}
	ErrImageIDExists    = Error{Code: 40008, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("image id already exists")}
	ErrInvalidImageID   = Error{Code: 40009, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid image id")}
	ErrUnknownUpload    = Error{Code: 40010, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("unknown upload")}
	ErrEmptyArtifact    = Error{Code: 40011, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("empty artifact")}
	ErrBodyTooLarge     = Error{Code: 40012, HTTPstatus: http.StatusRequestEntityTooLarge, Err: fmt.Errorf("request body too large")}
	ErrImageUploaded    = Error{Code: 40013, HTTPstatus: http.StatusNoContent, Err: fmt.Errorf("image id already uploaded")}
	ErrUploadCompleted  = Error{Code: 40014, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("input upload already completed")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrStorageFull                = Error{Code: 50003, HTTPstatus: http.StatusInsufficientStorage, Err: fmt.Errorf("artifact storage full")}
	ErrQueueFull                  = Error{Code: 50004, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("job queue full")}
)
