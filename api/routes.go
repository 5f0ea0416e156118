package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Route constants for the API endpoints

const (
	// Health endpoints
	PingEndpoint    = "/ping"    // GET: Health check
	VersionEndpoint = "/version" // GET: Supported versions

	// Image endpoints
	ImageIDURLParam     = "imageId"                                  // URL parameter for client chosen image IDs
	ImagesEndpoint      = "/images"                                  // POST: Upload an image, returns its digest
	ImageUploadEndpoint = "/images/upload/{" + ImageIDURLParam + "}" // GET: Upload URL for an image ID, 204 if it exists
	ImageEndpoint       = "/images/{" + ImageIDURLParam + "}"        // PUT: Upload an image under an image ID

	// Input endpoints
	UploadIDURLParam    = "uuid"                               // URL parameter for input upload IDs
	InputsEndpoint      = "/inputs"                            // POST: Upload an input, returns its digest
	InputUploadEndpoint = "/inputs/upload"                     // GET: Reserve an input upload ID
	InputEndpoint       = "/inputs/{" + UploadIDURLParam + "}" // PUT: Upload an input under a reserved ID

	// Artifact endpoints
	DigestURLParam   = "digest"                              // URL parameter for artifact digests
	ArtifactEndpoint = "/artifacts/{" + DigestURLParam + "}" // GET: Download an artifact

	// Session endpoints
	JobIDURLParam          = "uuid"                                      // URL parameter for job IDs
	SessionCreateEndpoint  = "/sessions/create"                          // POST: Create a proving session
	SessionStatusEndpoint  = "/sessions/status/{" + JobIDURLParam + "}"  // GET: Session status
	SessionReceiptEndpoint = "/sessions/receipt/{" + JobIDURLParam + "}" // GET: Session receipt

	// SNARK endpoints
	SnarkCreateEndpoint  = "/snark/create"                          // POST: Create a SNARK conversion
	SnarkStatusEndpoint  = "/snark/status/{" + JobIDURLParam + "}"  // GET: Conversion status
	SnarkReceiptEndpoint = "/snark/receipt/{" + JobIDURLParam + "}" // GET: SNARK receipt

	// Metrics endpoint
	MetricsEndpoint = "/metrics" // GET: Prometheus metrics
)

// EndpointWithParam creates an endpoint URL by replacing the parameter
// placeholder with the actual value. Used to build fully qualified
// endpoint URLs.
func EndpointWithParam(path, key, param string) string {
	rawKey := fmt.Sprintf("{%s}", key)

	if strings.Contains(path, rawKey) {
		return strings.Replace(path, rawKey, url.PathEscape(param), 1)
	}

	// Fallback: add as query param
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s=%s", path, sep, url.QueryEscape(key), url.QueryEscape(param))
}

// LogExcludedPrefixes defines URL prefixes to exclude from request logging.
// Uploads are binary and status endpoints are polled in tight loops.
var LogExcludedPrefixes = []string{
	PingEndpoint,
	MetricsEndpoint,
	"/sessions/status/",
	"/snark/status/",
}
