// Package client is a Go client of the bonsai-local REST API. It follows
// the upload, create, poll and fetch flow of the remote proving service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vocdoni/bonsai-local/api"
	"github.com/vocdoni/bonsai-local/jobs"
	"github.com/vocdoni/bonsai-local/log"
	"github.com/vocdoni/bonsai-local/snark"
	"github.com/vocdoni/bonsai-local/types"
)

const (
	// DefaultPollInterval is the wait between two status requests.
	DefaultPollInterval = 500 * time.Millisecond
	defaultTimeout      = 30 * time.Second
)

// ErrJobFailed is returned by the Wait methods when the job failed. The
// job's failure message is appended.
var ErrJobFailed = errors.New("job failed")

// Client talks to a bonsai-local server.
type Client struct {
	url          string
	apiKey       string
	http         *http.Client
	pollInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithAPIKey sets the X-API-Key header sent with every request. The local
// server accepts any key.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithPollInterval sets the wait between two status requests.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// New creates a client for the server at rawURL.
func New(rawURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", rawURL)
	}
	c := &Client{
		url:          strings.TrimSuffix(u.String(), "/"),
		http:         &http.Client{Timeout: defaultTimeout},
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// request sends a request to uri, which is either a server path or an
// absolute URL handed out by the server.
func (c *Client) request(ctx context.Context, method, uri string, body []byte, contentType string) (*http.Response, error) {
	target := uri
	if strings.HasPrefix(uri, "/") {
		target = c.url + uri
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, uri, err)
	}
	return resp, nil
}

// decodeError turns a non 2xx response into an api.Error when possible.
func decodeError(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response body: %w", err)
	}
	apiErr := api.Error{}
	if jsonErr := json.Unmarshal(body, &apiErr); jsonErr != nil || apiErr.Code == 0 {
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	apiErr.HTTPstatus = resp.StatusCode
	return apiErr
}

// doJSON sends req as JSON (if not nil) and decodes the answer into res.
func (c *Client) doJSON(ctx context.Context, method, uri string, req, res any) error {
	var body []byte
	contentType := ""
	if req != nil {
		var err error
		if body, err = json.Marshal(req); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		contentType = "application/json"
	}
	resp, err := c.request(ctx, method, uri, body, contentType)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if res == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// upload sends raw bytes and returns the digest the server assigned.
func (c *Client) upload(ctx context.Context, method, uri string, data []byte) (types.Digest, error) {
	resp, err := c.request(ctx, method, uri, data, "application/octet-stream")
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}
	res := &api.UploadResponse{}
	if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	// never trust a digest we can check ourselves
	if want := types.DigestOf(data); res.Digest != want {
		return "", fmt.Errorf("server digest %s does not match %s", res.Digest, want)
	}
	return res.Digest, nil
}

// Ping checks the server is alive.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.request(ctx, http.MethodGet, api.PingEndpoint, nil, "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// Version returns the server versions.
func (c *Client) Version(ctx context.Context) (*api.VersionResponse, error) {
	res := &api.VersionResponse{}
	if err := c.doJSON(ctx, http.MethodGet, api.VersionEndpoint, nil, res); err != nil {
		return nil, err
	}
	return res, nil
}

// UploadImage uploads an image and returns its digest.
func (c *Client) UploadImage(ctx context.Context, image []byte) (types.Digest, error) {
	return c.upload(ctx, http.MethodPost, api.ImagesEndpoint, image)
}

// UploadImageID uploads an image under a client chosen id. If the id is
// already taken nothing is uploaded and exists is true.
func (c *Client) UploadImageID(ctx context.Context, imageID string, image []byte) (digest types.Digest, exists bool, err error) {
	uri := api.EndpointWithParam(api.ImageUploadEndpoint, api.ImageIDURLParam, imageID)
	resp, err := c.request(ctx, http.MethodGet, uri, nil, "")
	if err != nil {
		return "", false, err
	}
	defer func() { _ = resp.Body.Close() }()
	switch resp.StatusCode {
	case http.StatusNoContent:
		return "", true, nil
	case http.StatusOK:
	default:
		return "", false, decodeError(resp)
	}
	res := &api.ImageUploadResponse{}
	if err := json.NewDecoder(resp.Body).Decode(res); err != nil {
		return "", false, fmt.Errorf("failed to decode upload URL: %w", err)
	}
	digest, err = c.upload(ctx, http.MethodPut, res.URL, image)
	return digest, false, err
}

// UploadInput reserves an input upload, fills it and returns the digest.
func (c *Client) UploadInput(ctx context.Context, input []byte) (types.Digest, error) {
	res := &api.InputUploadResponse{}
	if err := c.doJSON(ctx, http.MethodGet, api.InputUploadEndpoint, nil, res); err != nil {
		return "", err
	}
	return c.upload(ctx, http.MethodPut, res.URL, input)
}

// CreateSession starts proving image over input. Both are digests, or an
// image id and an input upload id.
func (c *Client) CreateSession(ctx context.Context, image, input string) (string, error) {
	res := &api.CreateResponse{}
	if err := c.doJSON(ctx, http.MethodPost, api.SessionCreateEndpoint,
		&api.SessionCreateRequest{Img: image, Input: input}, res); err != nil {
		return "", err
	}
	return res.UUID, nil
}

// SessionStatus returns the current status of a session.
func (c *Client) SessionStatus(ctx context.Context, id string) (*api.SessionStatusResponse, error) {
	res := &api.SessionStatusResponse{}
	uri := api.EndpointWithParam(api.SessionStatusEndpoint, api.JobIDURLParam, id)
	if err := c.doJSON(ctx, http.MethodGet, uri, nil, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SessionReceipt returns the encoded receipt of a succeeded session.
func (c *Client) SessionReceipt(ctx context.Context, id string) ([]byte, error) {
	return c.Download(ctx, api.EndpointWithParam(api.SessionReceiptEndpoint, api.JobIDURLParam, id))
}

// CreateSnark starts converting the receipt of a session.
func (c *Client) CreateSnark(ctx context.Context, sessionID string) (string, error) {
	return c.createSnark(ctx, &api.SnarkCreateRequest{SessionID: sessionID})
}

// CreateSnarkFromReceipt starts converting an uploaded receipt.
func (c *Client) CreateSnarkFromReceipt(ctx context.Context, receipt types.Digest) (string, error) {
	return c.createSnark(ctx, &api.SnarkCreateRequest{Receipt: receipt.String()})
}

func (c *Client) createSnark(ctx context.Context, req *api.SnarkCreateRequest) (string, error) {
	res := &api.CreateResponse{}
	if err := c.doJSON(ctx, http.MethodPost, api.SnarkCreateEndpoint, req, res); err != nil {
		return "", err
	}
	return res.UUID, nil
}

// SnarkStatus returns the current status of a conversion.
func (c *Client) SnarkStatus(ctx context.Context, id string) (*api.SnarkStatusResponse, error) {
	res := &api.SnarkStatusResponse{}
	uri := api.EndpointWithParam(api.SnarkStatusEndpoint, api.JobIDURLParam, id)
	if err := c.doJSON(ctx, http.MethodGet, uri, nil, res); err != nil {
		return nil, err
	}
	return res, nil
}

// SnarkReceipt returns the SNARK receipt of a succeeded conversion.
func (c *Client) SnarkReceipt(ctx context.Context, id string) (*snark.Receipt, error) {
	data, err := c.Download(ctx, api.EndpointWithParam(api.SnarkReceiptEndpoint, api.JobIDURLParam, id))
	if err != nil {
		return nil, err
	}
	return snark.Decode(data)
}

// Download fetches raw bytes from a server path or a URL returned by the
// server, such as a receipt URL.
func (c *Client) Download(ctx context.Context, uri string) ([]byte, error) {
	resp, err := c.request(ctx, http.MethodGet, uri, nil, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}
	return io.ReadAll(resp.Body)
}

// WaitSession polls a session until it reaches a terminal state. A failed
// session returns its status together with ErrJobFailed. On error the last
// status seen, if any, is returned.
func (c *Client) WaitSession(ctx context.Context, id string) (*api.SessionStatusResponse, error) {
	var status *api.SessionStatusResponse
	err := c.poll(ctx, func() (string, string, error) {
		current, err := c.SessionStatus(ctx, id)
		if err != nil {
			return "", "", err
		}
		status = current
		return status.Status, status.ErrorMsg, nil
	})
	return status, err
}

// WaitSnark polls a conversion until it reaches a terminal state.
func (c *Client) WaitSnark(ctx context.Context, id string) (*api.SnarkStatusResponse, error) {
	var status *api.SnarkStatusResponse
	err := c.poll(ctx, func() (string, string, error) {
		current, err := c.SnarkStatus(ctx, id)
		if err != nil {
			return "", "", err
		}
		status = current
		return status.Status, status.ErrorMsg, nil
	})
	return status, err
}

// poll calls fetch until it reports a terminal state.
func (c *Client) poll(ctx context.Context, fetch func() (state, msg string, err error)) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		wire, msg, err := fetch()
		if err != nil {
			return err
		}
		state, err := jobs.ParseState(wire)
		if err != nil {
			return fmt.Errorf("unexpected job status: %w", err)
		}
		switch state {
		case jobs.Succeeded:
			return nil
		case jobs.Failed:
			return fmt.Errorf("%w: %s", ErrJobFailed, msg)
		}
		log.Debugw("waiting for job", "status", wire)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
