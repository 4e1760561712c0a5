package segment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/png" // Register PNG format decoder
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/ironsheep/minepoly/internal/detection"
)

// HTTPClient sends chips to a model server. The request body is the chip
// as PNG; the response is either a PNG mask (decoded per Encoding) or JSON
// logits:
//
//	{"width": 512, "height": 512, "logits": [...]}
//
// Logits are thresholded with sigmoid(logit) >= Threshold.
type HTTPClient struct {
	URL       string
	Encoding  Encoding
	Threshold float64
	Client    *http.Client
	Logger    *zap.Logger
	// BackOff returns a fresh retry policy per request.
	BackOff func() backoff.BackOff
}

type logitsResponse struct {
	Width  int       `json:"width"`
	Height int       `json:"height"`
	Logits []float32 `json:"logits"`
}

// NewHTTPClient creates a client with a 2 minute timeout and up to 3
// retries.
func NewHTTPClient(url string, enc Encoding, threshold float64, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		URL:       url,
		Encoding:  enc,
		Threshold: threshold,
		Client:    &http.Client{Timeout: 2 * time.Minute},
		Logger:    logger,
		BackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
		},
	}
}

// Segment posts chip to the model server.
func (c *HTTPClient) Segment(ctx context.Context, id int64, chip image.Image) (*detection.Mask, error) {
	var body bytes.Buffer
	if err := imaging.Encode(&body, chip, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode chip: %w", err)
	}

	var mask *detection.Mask
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body.Bytes()))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "image/png")
		req.Header.Set("X-Candidate-ID", strconv.FormatInt(id, 10))

		resp, err := c.Client.Do(req)
		if err != nil {
			return fmt.Errorf("model request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			err := fmt.Errorf("model server returned status %d", resp.StatusCode)
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return err
			}
			return backoff.Permanent(err)
		}

		mask, err = c.decode(resp)
		return err
	}

	notify := func(err error, wait time.Duration) {
		if c.Logger != nil {
			c.Logger.Debug("Retrying model request", zap.Int64("id", id), zap.Duration("wait", wait), zap.Error(err))
		}
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(c.BackOff(), ctx), notify); err != nil {
		return nil, fmt.Errorf("failed to segment %d: %w", id, err)
	}
	return mask, nil
}

func (c *HTTPClient) decode(resp *http.Response) (*detection.Mask, error) {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var lr logitsResponse
		if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
			return nil, fmt.Errorf("failed to decode logits: %w", err)
		}
		m, err := detection.MaskFromLogits(lr.Logits, lr.Width, lr.Height, c.Threshold)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		return m, nil
	}

	img, _, err := image.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode mask: %w", err)
	}
	return Decode(img, c.Encoding, c.Threshold), nil
}
