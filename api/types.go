package api

import "github.com/vocdoni/bonsai-local/types"

// VersionResponse lists the receipt formats the server produces.
type VersionResponse struct {
	Risc0Zkvm   []string `json:"risc0_zkvm"`
	BonsaiLocal string   `json:"bonsai_local"`
}

// UploadResponse is returned for every artifact upload.
type UploadResponse struct {
	Digest types.Digest `json:"digest"`
}

// ImageUploadResponse carries the URL an image must be PUT to.
type ImageUploadResponse struct {
	URL string `json:"url"`
}

// InputUploadResponse carries a reserved input upload.
type InputUploadResponse struct {
	UUID string `json:"uuid"`
	URL  string `json:"url"`
}

// SessionCreateRequest references the image and input of a proving
// session. Each field is a digest, an image id or an input upload id.
type SessionCreateRequest struct {
	Img   string `json:"img"`
	Input string `json:"input"`
}

// CreateResponse holds the identifier of a created job.
type CreateResponse struct {
	UUID string `json:"uuid"`
}

// SessionStatusResponse is the polling view of a proving session. Status
// is one of QUEUED, RUNNING, SUCCEEDED or FAILED.
type SessionStatusResponse struct {
	Status      string  `json:"status"`
	ReceiptURL  string  `json:"receipt_url,omitempty"`
	ErrorMsg    string  `json:"error_msg,omitempty"`
	State       string  `json:"state,omitempty"`
	ElapsedTime float64 `json:"elapsed_time,omitempty"`
}

// SnarkCreateRequest references the receipt to convert, either through
// the session that produced it or directly.
type SnarkCreateRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Receipt   string `json:"receipt,omitempty"`
}

// SnarkStatusResponse is the polling view of a SNARK conversion. Output is
// the URL of the SNARK receipt once the conversion succeeded.
type SnarkStatusResponse struct {
	Status   string `json:"status"`
	Output   string `json:"output,omitempty"`
	ErrorMsg string `json:"error_msg,omitempty"`
}
