// HTTP/JSON implementation of Client against the platform's REST surface.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mandimitra/go-sync-core/internal/domain"
)

// HeaderIdempotencyKey is the request header carrying the idempotency key on
// every Submit, matching the server's duplicate-discard contract.
const HeaderIdempotencyKey = "Idempotency-Key"

// maxErrBody bounds how much of an error response is kept as the reason.
const maxErrBody = 4 << 10

// HTTPClient talks to the remote API over HTTP/JSON. Every call honors the
// context deadline supplied by the caller; the client sets none of its own.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient returns a client rooted at baseURL (no trailing slash needed).
func NewHTTPClient(baseURL string, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		log:     log.With().Str("component", "remote").Logger(),
	}
}

// Submit delivers one mutation as POST /v1/sync/{operationType}. A 2xx is an
// ack; a 4xx is a permanent rejection; anything else is transient.
func (c *HTTPClient) Submit(ctx context.Context, op domain.OperationType, idempotencyKey string, payload []byte) error {
	u := c.baseURL + "/v1/sync/" + url.PathEscape(string(op))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderIdempotencyKey, idempotencyKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and transport failures are transient by contract.
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("op", string(op)).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("submit")

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &RejectionError{Status: resp.StatusCode, Reason: readReason(resp)}
	default:
		return fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}
}

// Fetch retrieves the server value for a cache key via
// GET /v1/data/{category}/{key}.
func (c *HTTPClient) Fetch(ctx context.Context, category domain.Category, key string) ([]byte, error) {
	u := c.baseURL + "/v1/data/" + url.PathEscape(string(category)) + "/" + url.PathEscape(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
		}
		return body, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, &RejectionError{Status: resp.StatusCode, Reason: readReason(resp)}
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode)
	}
}

// readReason extracts a bounded, single-line failure reason from an error
// response.
func readReason(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	reason := strings.TrimSpace(string(body))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return strings.Join(strings.Fields(reason), " ")
}
