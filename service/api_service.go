package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/vocdoni/bonsai-local/api"
	"github.com/vocdoni/bonsai-local/log"
)

// ShutdownTimeout bounds how long Stop waits for open requests.
var ShutdownTimeout = 10 * time.Second

// APIService represents a service that manages the HTTP API server.
type APIService struct {
	API    *api.API
	mu     sync.Mutex
	server *http.Server
	done   chan struct{}
	host   string
	port   int
}

// NewAPI creates a new APIService instance. A port of zero picks a free
// port on Start.
func NewAPI(conf *api.Config, host string, port int, disableLogging bool) (*APIService, error) {
	if disableLogging {
		api.DisabledLogging = disableLogging
		log.Debugw("API logging is disabled")
	}
	a, err := api.New(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create API: %w", err)
	}
	return &APIService{API: a, host: host, port: port}, nil
}

// Start begins the API server. It returns an error if the service
// is already running or if it fails to listen.
func (as *APIService) Start(ctx context.Context) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.server != nil {
		return fmt.Errorf("service already running")
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(as.host, strconv.Itoa(as.port)))
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}
	as.port = ln.Addr().(*net.TCPAddr).Port
	as.server = &http.Server{
		Handler:           as.API,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	as.done = make(chan struct{})
	go func(srv *http.Server, done chan struct{}) {
		defer close(done)
		log.Infow("starting API server", "host", as.host, "port", as.port)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw(err, "API server stopped")
		}
	}(as.server, as.done)
	return nil
}

// Stop gracefully halts the API server.
func (as *APIService) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()
	if as.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := as.server.Shutdown(ctx); err != nil {
		log.Warnw("API server shutdown", "error", err.Error())
	}
	<-as.done
	as.server = nil
}

// HostPort returns the host and port of the API server.
func (as *APIService) HostPort() (string, int) {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.host, as.port
}

// URL returns the base URL clients should use.
func (as *APIService) URL() string {
	host, port := as.HostPort()
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}
