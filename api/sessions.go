package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/bonsai-local/jobs"
	"github.com/vocdoni/bonsai-local/log"
	"github.com/vocdoni/bonsai-local/types"
)

// createSession queues a proving session over an uploaded image and input.
// POST /sessions/create
func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	req := &SessionCreateRequest{}
	if apiErr := a.decodeJSON(w, r, req); apiErr != nil {
		apiErr.Write(w)
		return
	}
	if req.Img == "" || req.Input == "" {
		ErrMalformedBody.With("img and input are required").Write(w)
		return
	}
	image, err := a.storage.Resolve(req.Img)
	if err != nil {
		a.errorFor(err).Write(w)
		return
	}
	input, err := a.storage.Resolve(req.Input)
	if err != nil {
		a.errorFor(err).Write(w)
		return
	}
	id, err := a.sessions.CreateSession(image, input)
	if err != nil {
		a.errorFor(err).Write(w)
		return
	}
	a.metrics.JobCreated(string(jobs.KindSession))
	log.Infow("session created", "id", id, "image", image.String(), "input", input.String())
	httpWriteJSON(w, &CreateResponse{UUID: id})
}

// sessionStatus reports the state of a session.
// GET /sessions/status/{uuid}
func (a *API) sessionStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := a.job(w, r, a.sessions, ErrSessionNotFound)
	if !ok {
		return
	}
	res := &SessionStatusResponse{
		Status:      job.State.Wire(),
		State:       job.State.String(),
		ErrorMsg:    job.Error,
		ElapsedTime: job.Elapsed().Seconds(),
	}
	if job.State == jobs.Succeeded {
		res.ReceiptURL = a.artifactURL(r, job.Result)
	}
	httpWriteJSON(w, res)
}

// sessionReceipt serves the receipt of a succeeded session.
// GET /sessions/receipt/{uuid}
func (a *API) sessionReceipt(w http.ResponseWriter, r *http.Request) {
	data, ok := a.result(w, r, a.sessions, ErrSessionNotFound)
	if !ok {
		return
	}
	httpWriteBinary(w, data)
}

// job looks up the job named by the request in reg.
func (a *API) job(w http.ResponseWriter, r *http.Request, reg *jobs.Registry, notFound Error) (jobs.Job, bool) {
	id := chi.URLParam(r, JobIDURLParam)
	job, err := reg.Status(id)
	if errors.Is(err, jobs.ErrNotFound) {
		notFound.WithErr(err).Write(w)
		return jobs.Job{}, false
	}
	if err != nil {
		a.errorFor(err).Write(w)
		return jobs.Job{}, false
	}
	return job, true
}

// result loads the result artifact of the job named by the request.
func (a *API) result(w http.ResponseWriter, r *http.Request, reg *jobs.Registry, notFound Error) ([]byte, bool) {
	id := chi.URLParam(r, JobIDURLParam)
	digest, err := reg.Result(id)
	if errors.Is(err, jobs.ErrNotFound) {
		notFound.WithErr(err).Write(w)
		return nil, false
	}
	if err != nil {
		a.errorFor(err).Write(w)
		return nil, false
	}
	data, err := a.storage.Get(digest)
	if err != nil {
		// results are inserted before the job succeeds
		log.Errorw(err, "result artifact missing for job "+id)
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return nil, false
	}
	return data, true
}

func (a *API) artifactURL(r *http.Request, digest types.Digest) string {
	return a.requestURL(r, EndpointWithParam(ArtifactEndpoint, DigestURLParam, digest.String()))
}
