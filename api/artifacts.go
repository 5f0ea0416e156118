package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/bonsai-local/log"
	"github.com/vocdoni/bonsai-local/storage"
	"github.com/vocdoni/bonsai-local/types"
)

// uploadArtifact stores the raw request body and returns its digest.
// POST /images
// POST /inputs
func (a *API) uploadArtifact(w http.ResponseWriter, r *http.Request) {
	body, apiErr := a.readBody(w, r)
	if apiErr != nil {
		apiErr.Write(w)
		return
	}
	digest, err := a.storage.Put(body)
	if err != nil {
		a.errorFor(err).Write(w)
		return
	}
	log.Debugw("artifact uploaded", "digest", digest.String(), "size", len(body))
	httpWriteJSON(w, &UploadResponse{Digest: digest})
}

// imageUploadURL returns where the image with the given id must be PUT, or
// 204 No Content when the id is already bound.
// GET /images/upload/{imageId}
func (a *API) imageUploadURL(w http.ResponseWriter, r *http.Request) {
	imageID := chi.URLParam(r, ImageIDURLParam)
	if err := a.storage.CheckImageID(imageID); err != nil {
		if errors.Is(err, storage.ErrImageIDExists) {
			ErrImageUploaded.Write(w)
			return
		}
		a.errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, &ImageUploadResponse{
		URL: a.requestURL(r, EndpointWithParam(ImageEndpoint, ImageIDURLParam, imageID)),
	})
}

// putImage stores an image under a client chosen id.
// PUT /images/{imageId}
func (a *API) putImage(w http.ResponseWriter, r *http.Request) {
	body, apiErr := a.readBody(w, r)
	if apiErr != nil {
		apiErr.Write(w)
		return
	}
	digest, err := a.storage.BindImage(chi.URLParam(r, ImageIDURLParam), body)
	if err != nil {
		a.errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, &UploadResponse{Digest: digest})
}

// inputUploadURL reserves an input upload id.
// GET /inputs/upload
func (a *API) inputUploadURL(w http.ResponseWriter, r *http.Request) {
	id, err := a.storage.NewInputUpload()
	if err != nil {
		a.errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, &InputUploadResponse{
		UUID: id,
		URL:  a.requestURL(r, EndpointWithParam(InputEndpoint, UploadIDURLParam, id)),
	})
}

// putInput fills a reserved input upload.
// PUT /inputs/{uuid}
func (a *API) putInput(w http.ResponseWriter, r *http.Request) {
	body, apiErr := a.readBody(w, r)
	if apiErr != nil {
		apiErr.Write(w)
		return
	}
	digest, err := a.storage.BindInput(chi.URLParam(r, UploadIDURLParam), body)
	if err != nil {
		a.errorFor(err).Write(w)
		return
	}
	httpWriteJSON(w, &UploadResponse{Digest: digest})
}

// artifact serves the bytes of a stored artifact.
// GET /artifacts/{digest}
func (a *API) artifact(w http.ResponseWriter, r *http.Request) {
	digest, err := types.ParseDigest(chi.URLParam(r, DigestURLParam))
	if err != nil {
		ErrMalformedParam.WithErr(err).Write(w)
		return
	}
	data, err := a.storage.Get(digest)
	if errors.Is(err, storage.ErrNotFound) {
		ErrResourceNotFound.WithErr(err).Write(w)
		return
	}
	if err != nil {
		a.errorFor(err).Write(w)
		return
	}
	httpWriteBinary(w, data)
}
