package planet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/ironsheep/minepoly/internal/geo"
)

// DefaultBaseURL is the Basemaps API root.
const DefaultBaseURL = "https://api.planet.com/basemaps/v1"

const (
	defaultTimeout    = 5 * time.Minute
	defaultMaxRetries = 5
	maxPages          = 1000
)

var (
	// ErrMosaicNotFound is returned when no mosaic carries the requested name.
	ErrMosaicNotFound = errors.New("mosaic not found")
	// ErrNoDownloadLink is returned when a tile has no download reference.
	ErrNoDownloadLink = errors.New("tile has no download link")
)

// StatusError is an unexpected HTTP status from the provider.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Code, redact(e.URL))
}

// Temporary reports whether the request is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// Client is a Basemaps API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	http       *http.Client
	newBackOff func() backoff.BackOff
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithBackOff sets the retry policy. f is called once per request since
// backoff policies are stateful.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Client) { c.newBackOff = f }
}

// WithLogger sets the logger used for retry notices.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// DefaultBackOff is exponential backoff capped at maxRetries attempts.
func DefaultBackOff(maxRetries uint64) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = time.Second
		b.MaxElapsedTime = 2 * time.Minute
		return backoff.WithMaxRetries(b, maxRetries)
	}
}

// NewClient creates a client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		http:       &http.Client{Timeout: defaultTimeout},
		newBackOff: DefaultBackOff(defaultMaxRetries),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type mosaicsResponse struct {
	Mosaics []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"mosaics"`
}

// MosaicID resolves a mosaic name to its id.
func (c *Client) MosaicID(ctx context.Context, name string) (string, error) {
	u := c.baseURL + "/mosaics?" + url.Values{"name__is": {name}}.Encode()

	resp, err := getJSON[mosaicsResponse](ctx, c, u)
	if err != nil {
		return "", fmt.Errorf("failed to look up mosaic %s: %w", name, err)
	}
	if len(resp.Mosaics) == 0 || resp.Mosaics[0].ID == "" {
		return "", fmt.Errorf("%w: %s", ErrMosaicNotFound, name)
	}
	return resp.Mosaics[0].ID, nil
}

type quadsPage struct {
	Items []struct {
		ID    string    `json:"id"`
		BBox  []float64 `json:"bbox"`
		Links struct {
			Download string `json:"download"`
		} `json:"_links"`
	} `json:"items"`
	Links struct {
		Next string `json:"_next"`
	} `json:"_links"`
}

// Quads lists the tiles of a mosaic intersecting bbox, following
// pagination. Tiles without a download link are kept: they still shape the
// mosaic geometry.
func (c *Client) Quads(ctx context.Context, mosaicID string, bbox geo.BoundingBox) ([]geo.TileDescriptor, error) {
	q := url.Values{"bbox": {bbox.CSV()}, "minimal": {"false"}}
	next := fmt.Sprintf("%s/mosaics/%s/quads?%s", c.baseURL, url.PathEscape(mosaicID), q.Encode())

	var tiles []geo.TileDescriptor
	seen := make(map[string]bool)
	for page := 0; next != "" && !seen[next]; page++ {
		if page == maxPages {
			return nil, fmt.Errorf("too many quad pages for %s", bbox.CSV())
		}
		seen[next] = true

		resp, err := getJSON[quadsPage](ctx, c, next)
		if err != nil {
			return nil, fmt.Errorf("failed to list quads: %w", err)
		}
		for _, it := range resp.Items {
			b, err := geo.BoundingBoxFromSlice(it.BBox)
			if err != nil {
				c.logger.Warn("Skipping quad with invalid bbox", zap.String("quad", it.ID), zap.Error(err))
				continue
			}
			tiles = append(tiles, geo.TileDescriptor{ID: it.ID, BBox: b, DownloadRef: it.Links.Download})
		}
		next = resp.Links.Next
	}
	return tiles, nil
}

// getJSON fetches u and decodes the body into a T, retrying transient
// failures. A body that does not decode counts as transient. Every attempt
// decodes into a fresh value.
func getJSON[T any](ctx context.Context, c *Client, u string) (T, error) {
	var out T
	op := func() error {
		resp, err := c.do(ctx, u)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var v T
		if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		out = v
		return nil
	}
	err := c.retry(ctx, u, op)
	return out, err
}

// do issues an authenticated GET and classifies the status code. The
// caller owns the body of a successful response.
func (c *Client) do(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		serr := &StatusError{Code: resp.StatusCode, URL: u}
		if serr.Temporary() {
			return nil, serr
		}
		return nil, backoff.Permanent(serr)
	}
	return resp, nil
}

func (c *Client) retry(ctx context.Context, u string, op backoff.Operation) error {
	notify := func(err error, wait time.Duration) {
		c.logger.Debug("Retrying provider request",
			zap.String("url", redact(u)), zap.Duration("wait", wait), zap.Error(err))
	}
	return backoff.RetryNotify(op, backoff.WithContext(c.newBackOff(), ctx), notify)
}

// Download fetches ref into path unless path already exists. It reports
// whether the download was skipped. The body is streamed into a temporary
// file and renamed into place once complete.
func (c *Client) Download(ctx context.Context, ref, path string) (skipped bool, err error) {
	if ref == "" {
		return false, ErrNoDownloadLink
	}
	if st, err := os.Stat(path); err == nil && st.Size() > 0 {
		return true, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create tile directory: %w", err)
	}

	op := func() error {
		resp, err := c.do(ctx, ref)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create temp file: %w", err))
		}
		defer os.Remove(tmp.Name())

		if _, err := io.Copy(tmp, resp.Body); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to read tile body: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to write tile: %w", err))
		}
		if err := os.Rename(tmp.Name(), path); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to move tile into place: %w", err))
		}
		return nil
	}
	if err := c.retry(ctx, ref, op); err != nil {
		return false, fmt.Errorf("failed to download %s: %w", filepath.Base(path), err)
	}
	return false, nil
}

// redact strips query parameters, which may carry the API key.
func redact(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
