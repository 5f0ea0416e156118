package api

import "net/http"

// versionHandler reports the receipt formats this server produces.
// GET /version
func (a *API) versionHandler(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, &VersionResponse{
		Risc0Zkvm:   []string{ReceiptVersion},
		BonsaiLocal: a.version,
	})
}
