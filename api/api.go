// Package api serves the Bonsai compatible REST surface over the artifact
// store and the job registries. Handlers only touch the stores; proving
// runs in the engine, so no request waits for a proof.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/vocdoni/bonsai-local/jobs"
	"github.com/vocdoni/bonsai-local/log"
	"github.com/vocdoni/bonsai-local/metrics"
	"github.com/vocdoni/bonsai-local/storage"
)

const (
	maxRequestBodyLog = 512 // Maximum length of request body to log

	// DefaultMaxBodySize bounds uploaded artifacts.
	DefaultMaxBodySize = 64 << 20
	maxJSONBodySize    = 1 << 20

	requestTimeout = 45 * time.Second
)

// ReceiptVersion is the receipt format version reported by /version.
const ReceiptVersion = "groth16-bn254-v1"

// Config holds the API dependencies.
type Config struct {
	Storage  *storage.Storage
	Sessions *jobs.Registry
	Snarks   *jobs.Registry
	Metrics  *metrics.Collector // Optional: /metrics is not served without it
	// MaxBodySize bounds artifact uploads, DefaultMaxBodySize if zero.
	MaxBodySize int64
	// BaseURL prefixes the URLs handed to clients. If empty they are
	// derived from the request host.
	BaseURL string
	Version string
}

// API is the HTTP handler of the service.
type API struct {
	router   *chi.Mux
	storage  *storage.Storage
	sessions *jobs.Registry
	snarks   *jobs.Registry
	metrics  *metrics.Collector
	maxBody  int64
	baseURL  string
	version  string
}

// New creates the API and registers its routes. It does not listen.
func New(conf *Config) (*API, error) {
	if conf == nil {
		return nil, errors.New("missing API configuration")
	}
	if conf.Storage == nil {
		return nil, errors.New("missing storage instance")
	}
	if conf.Sessions == nil || conf.Sessions.Kind() != jobs.KindSession {
		return nil, errors.New("missing session registry")
	}
	if conf.Snarks == nil || conf.Snarks.Kind() != jobs.KindSnark {
		return nil, errors.New("missing snark registry")
	}
	a := &API{
		storage:  conf.Storage,
		sessions: conf.Sessions,
		snarks:   conf.Snarks,
		metrics:  conf.Metrics,
		maxBody:  conf.MaxBodySize,
		baseURL:  conf.BaseURL,
		version:  conf.Version,
	}
	if a.maxBody <= 0 {
		a.maxBody = DefaultMaxBodySize
	}
	a.initRouter()
	return a, nil
}

// Router returns the chi router.
func (a *API) Router() *chi.Mux {
	return a.router
}

// ServeHTTP implements http.Handler.
func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// registerHandlers registers all the HTTP handlers for the API endpoints.
func (a *API) registerHandlers() {
	log.Debugw("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})
	log.Debugw("register handler", "endpoint", VersionEndpoint, "method", "GET")
	a.router.Get(VersionEndpoint, a.versionHandler)

	// images
	log.Debugw("register handler", "endpoint", ImagesEndpoint, "method", "POST")
	a.router.Post(ImagesEndpoint, a.uploadArtifact)
	log.Debugw("register handler", "endpoint", ImageUploadEndpoint, "method", "GET")
	a.router.Get(ImageUploadEndpoint, a.imageUploadURL)
	log.Debugw("register handler", "endpoint", ImageEndpoint, "method", "PUT")
	a.router.Put(ImageEndpoint, a.putImage)

	// inputs
	log.Debugw("register handler", "endpoint", InputsEndpoint, "method", "POST")
	a.router.Post(InputsEndpoint, a.uploadArtifact)
	log.Debugw("register handler", "endpoint", InputUploadEndpoint, "method", "GET")
	a.router.Get(InputUploadEndpoint, a.inputUploadURL)
	log.Debugw("register handler", "endpoint", InputEndpoint, "method", "PUT")
	a.router.Put(InputEndpoint, a.putInput)

	log.Debugw("register handler", "endpoint", ArtifactEndpoint, "method", "GET")
	a.router.Get(ArtifactEndpoint, a.artifact)

	// sessions
	log.Debugw("register handler", "endpoint", SessionCreateEndpoint, "method", "POST")
	a.router.Post(SessionCreateEndpoint, a.createSession)
	log.Debugw("register handler", "endpoint", SessionStatusEndpoint, "method", "GET")
	a.router.Get(SessionStatusEndpoint, a.sessionStatus)
	log.Debugw("register handler", "endpoint", SessionReceiptEndpoint, "method", "GET")
	a.router.Get(SessionReceiptEndpoint, a.sessionReceipt)

	// snark conversions
	log.Debugw("register handler", "endpoint", SnarkCreateEndpoint, "method", "POST")
	a.router.Post(SnarkCreateEndpoint, a.createSnark)
	log.Debugw("register handler", "endpoint", SnarkStatusEndpoint, "method", "GET")
	a.router.Get(SnarkStatusEndpoint, a.snarkStatus)
	log.Debugw("register handler", "endpoint", SnarkReceiptEndpoint, "method", "GET")
	a.router.Get(SnarkReceiptEndpoint, a.snarkReceipt)

	if a.metrics != nil {
		log.Debugw("register handler", "endpoint", MetricsEndpoint, "method", "GET")
		a.router.Method(http.MethodGet, MetricsEndpoint, a.metrics.Handler())
	}
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Risc0-Version"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(loggingMiddleware(DefaultLoggingConfig()))
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.Timeout(requestTimeout))
	a.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrResourceNotFound.Withf("%s %s", r.Method, r.URL.Path).Write(w)
	})

	a.registerHandlers()
}
