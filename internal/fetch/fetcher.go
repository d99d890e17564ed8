// Package fetch retrieves raw export payloads from local files or HTTP.
//
// It returns bytes only. Deciding what shape those bytes have is the
// schema package's job.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// maxPayloadBytes caps how much of a single export is read.
const maxPayloadBytes = 64 << 20

// ErrPayloadUnavailable is matched by *PayloadUnavailableError.
var ErrPayloadUnavailable = errors.New("payload unavailable")

// PayloadUnavailableError reports a source that could not be retrieved.
type PayloadUnavailableError struct {
	Source string
	Status int // HTTP status, 0 for transport and file errors
	Err    error
}

func (e *PayloadUnavailableError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.Source, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *PayloadUnavailableError) Unwrap() error { return e.Err }

func (e *PayloadUnavailableError) Is(target error) bool {
	return target == ErrPayloadUnavailable
}

// Fetcher reads payloads. HTTP requests share one rate limiter; file reads
// are not limited.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// NewFetcher creates a Fetcher. rps <= 0 disables rate limiting.
func NewFetcher(timeout time.Duration, rps float64) *Fetcher {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, 1),
		userAgent: "mentions/1.0 (+https://github.com/abelbrown/mentions)",
	}
}

// Fetch returns the raw bytes of src. Every failure is a
// *PayloadUnavailableError.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &PayloadUnavailableError{Source: src.Name, Err: err}
	}

	var (
		data []byte
		err  error
	)
	if src.IsRemote() {
		data, err = f.fetchHTTP(ctx, src)
	} else {
		data, err = readFile(src.Path())
	}
	if err != nil {
		var pe *PayloadUnavailableError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &PayloadUnavailableError{Source: src.Name, Err: err}
	}
	return data, nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, src Source) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Location, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &PayloadUnavailableError{
			Source: src.Name,
			Status: resp.StatusCode,
			Err:    errors.New(resp.Status),
		}
	}
	return readLimited(resp.Body)
}

func readFile(path string) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return readLimited(fh)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxPayloadBytes {
		return nil, fmt.Errorf("payload larger than %d bytes", maxPayloadBytes)
	}
	return data, nil
}

// IsRemote reports whether the source is fetched over HTTP.
func (s Source) IsRemote() bool {
	l := strings.ToLower(s.Location)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

// Path returns the filesystem path of a local source, stripping a file://
// scheme if present.
func (s Source) Path() string {
	if strings.HasPrefix(s.Location, "file://") {
		if u, err := url.Parse(s.Location); err == nil {
			return filepath.FromSlash(u.Path)
		}
	}
	return s.Location
}
