package segment

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/ironsheep/minepoly/internal/imaging"
)

// createClassMap returns a size x size class map with a filled square.
func createClassMap(size, x1, y1, x2, y2 int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := y1; y < y2; y++ {
		for x := x1; x < x2; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{"", EncodingClass, false},
		{"class", EncodingClass, false},
		{"probability", EncodingProbability, false},
		{"logits", "", true},
	}
	for _, tt := range tests {
		got, err := ParseEncoding(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseEncoding(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := imaging.SavePNG(filepath.Join(dir, "42.png"), createClassMap(16, 2, 2, 6, 6, 1)); err != nil {
		t.Fatalf("failed to write mask: %v", err)
	}

	d := &Directory{Dir: dir, Encoding: EncodingClass}
	m, err := d.Segment(context.Background(), 42, nil)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if m.Count() != 16 {
		t.Errorf("foreground: got %d, want 16", m.Count())
	}

	if _, err := d.Segment(context.Background(), 7, nil); !errors.Is(err, ErrNoPrediction) {
		t.Errorf("missing mask: got %v, want ErrNoPrediction", err)
	}
}

func TestDirectoryProbability(t *testing.T) {
	dir := t.TempDir()
	img := createClassMap(8, 0, 0, 4, 8, 200)
	for y := 0; y < 8; y++ {
		img.SetGray(5, y, color.Gray{Y: 100})
	}
	if err := imaging.SavePNG(filepath.Join(dir, "1.png"), img); err != nil {
		t.Fatalf("failed to write mask: %v", err)
	}

	d := &Directory{Dir: dir, Encoding: EncodingProbability, Threshold: 0.5}
	m, err := d.Segment(context.Background(), 1, nil)
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if m.Count() != 32 {
		t.Errorf("foreground: got %d, want 32", m.Count())
	}
}

func fastRetry() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
}

func TestHTTPClientPNG(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("X-Candidate-ID") != "42" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, err := png.Decode(r.Body); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		png.Encode(w, createClassMap(32, 0, 0, 10, 10, 1))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, EncodingClass, 0.5, zap.NewNop())
	c.BackOff = fastRetry
	m, err := c.Segment(context.Background(), 42, image.NewNRGBA(image.Rect(0, 0, 32, 32)))
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if m.Width != 32 || m.Count() != 100 {
		t.Errorf("mask: %dx%d with %d foreground", m.Width, m.Height, m.Count())
	}
}

func TestHTTPClientLogits(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(logitsResponse{Width: 2, Height: 2, Logits: []float32{-3, 0.5, 2, -0.1}})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, EncodingClass, 0.5, zap.NewNop())
	c.BackOff = fastRetry
	m, err := c.Segment(context.Background(), 1, image.NewNRGBA(image.Rect(0, 0, 2, 2)))
	if err != nil {
		t.Fatalf("Segment failed: %v", err)
	}
	if m.Count() != 2 || !m.At(1, 0) || !m.At(0, 1) {
		t.Errorf("unexpected mask %v", m.Pix)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
}

func TestHTTPClientPermanentError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, EncodingClass, 0.5, zap.NewNop())
	c.BackOff = fastRetry
	if _, err := c.Segment(context.Background(), 1, image.NewNRGBA(image.Rect(0, 0, 2, 2))); err == nil {
		t.Fatal("Segment should fail")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("4xx should not be retried, got %d calls", calls)
	}
}
