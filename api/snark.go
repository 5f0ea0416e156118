package api

import (
	"errors"
	"net/http"

	"github.com/vocdoni/bonsai-local/jobs"
	"github.com/vocdoni/bonsai-local/log"
	"github.com/vocdoni/bonsai-local/types"
)

// createSnark queues the conversion of a session receipt.
// POST /snark/create
func (a *API) createSnark(w http.ResponseWriter, r *http.Request) {
	req := &SnarkCreateRequest{}
	if apiErr := a.decodeJSON(w, r, req); apiErr != nil {
		apiErr.Write(w)
		return
	}

	var receipt types.Digest
	var err error
	switch {
	case req.SessionID != "" && req.Receipt != "":
		ErrMalformedBody.With("session_id and receipt are mutually exclusive").Write(w)
		return
	case req.SessionID != "":
		receipt, err = a.sessions.Result(req.SessionID)
		if errors.Is(err, jobs.ErrNotFound) {
			ErrSessionNotFound.WithErr(err).Write(w)
			return
		}
	case req.Receipt != "":
		receipt, err = a.storage.Resolve(req.Receipt)
	default:
		ErrMalformedBody.With("session_id or receipt is required").Write(w)
		return
	}
	if err != nil {
		a.errorFor(err).Write(w)
		return
	}

	id, err := a.snarks.CreateSnark(receipt)
	if err != nil {
		a.errorFor(err).Write(w)
		return
	}
	a.metrics.JobCreated(string(jobs.KindSnark))
	log.Infow("snark conversion created", "id", id, "receipt", receipt.String())
	httpWriteJSON(w, &CreateResponse{UUID: id})
}

// snarkStatus reports the state of a conversion.
// GET /snark/status/{uuid}
func (a *API) snarkStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := a.job(w, r, a.snarks, ErrSnarkNotFound)
	if !ok {
		return
	}
	res := &SnarkStatusResponse{
		Status:   job.State.Wire(),
		ErrorMsg: job.Error,
	}
	if job.State == jobs.Succeeded {
		res.Output = a.artifactURL(r, job.Result)
	}
	httpWriteJSON(w, res)
}

// snarkReceipt serves the SNARK receipt of a succeeded conversion.
// GET /snark/receipt/{uuid}
func (a *API) snarkReceipt(w http.ResponseWriter, r *http.Request) {
	data, ok := a.result(w, r, a.snarks, ErrSnarkNotFound)
	if !ok {
		return
	}
	httpWriteBytes(w, "application/json", data)
}
