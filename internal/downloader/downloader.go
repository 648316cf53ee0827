// Package downloader fetches remote binary artifacts with bounded retries.
package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"qbank/internal/config"
	"qbank/internal/logger"
)

// MaxArtifactBytes bounds how much of a response body is read.
const MaxArtifactBytes = 256 << 20

var pdfMagic = []byte("%PDF")

// Download errors.
var (
	ErrDownloadFailed       = errors.New("download failed")
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrTooSmall             = errors.New("payload too small")
	ErrNotPDF               = errors.New("payload is not a PDF")
	ErrTooLarge             = errors.New("payload too large")
)

// Options tune validation of a single download.
type Options struct {
	// MinBytes overrides the policy minimum when positive.
	MinBytes  int64
	ExpectPDF bool
}

// Result describes a completed download.
type Result struct {
	Data     []byte
	Attempts int
	Duration time.Duration
}

// Downloader issues GET requests with a per-request timeout and exponential backoff.
type Downloader struct {
	client   *http.Client
	log      *logger.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	policy   config.RetryPolicy
	timeout  time.Duration
	maxBytes int64
}

// New creates a downloader using the given retry policy.
func New(policy config.RetryPolicy, log *logger.Logger) *Downloader {
	return NewWithClient(&http.Client{}, policy, log)
}

// NewWithClient creates a downloader around a caller-supplied HTTP client.
// Timeouts are enforced per request through the context, not the client.
func NewWithClient(client *http.Client, policy config.RetryPolicy, log *logger.Logger) *Downloader {
	if log == nil {
		log = logger.Discard()
	}

	return &Downloader{
		client:   client,
		log:      log,
		sleep:    sleepCtx,
		policy:   policy,
		timeout:  policy.GetTimeout(),
		maxBytes: MaxArtifactBytes,
	}
}

// Download fetches url and returns the validated payload.
func (d *Downloader) Download(ctx context.Context, url string, opts Options) ([]byte, error) {
	res, err := d.DownloadWithMetrics(ctx, url, opts)
	if err != nil {
		return nil, err
	}

	return res.Data, nil
}

// DownloadWithMetrics fetches url, retrying up to MaxAttempts times with a delay of
// initial * 2^(attempt-1) between attempts. It fails only after the last attempt,
// carrying the last error.
func (d *Downloader) DownloadWithMetrics(ctx context.Context, url string, opts Options) (*Result, error) {
	start := time.Now()
	maxAttempts := max(d.policy.MaxAttempts, 1)

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		data, err := d.attempt(ctx, url, opts)
		if err == nil {
			d.log.Debug("download complete", "url", url, "attempt", attempt, "bytes", len(data))

			return &Result{Data: data, Attempts: attempt, Duration: time.Since(start)}, nil
		}

		lastErr = err
		d.log.Warn("download attempt failed", "url", url, "attempt", attempt, "max_attempts", maxAttempts, "error", err)

		if ctx.Err() != nil {
			break
		}

		if attempt < maxAttempts {
			if err := d.sleep(ctx, d.policy.GetRetryDelay(attempt)); err != nil {
				lastErr = err

				break
			}
		}
	}

	return nil, fmt.Errorf("%w: %s: %w", ErrDownloadFailed, url, lastErr)
}

func (d *Downloader) attempt(ctx context.Context, url string, opts Options) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	d.setHeaders(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if int64(len(data)) > d.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, d.maxBytes)
	}

	if err := d.validate(data, opts); err != nil {
		return nil, err
	}

	return data, nil
}

func (d *Downloader) validate(data []byte, opts Options) error {
	minBytes := d.policy.MinBytes
	if opts.MinBytes > 0 {
		minBytes = opts.MinBytes
	}

	if int64(len(data)) < minBytes {
		return fmt.Errorf("%w: %d bytes, want at least %d", ErrTooSmall, len(data), minBytes)
	}

	if opts.ExpectPDF && !bytes.HasPrefix(data, pdfMagic) {
		return ErrNotPDF
	}

	return nil
}

// IsAccessible issues a HEAD request under the same timeout discipline and
// reports whether the resource answered with a 2xx or 3xx status.
func (d *Downloader) IsAccessible(ctx context.Context, url string) bool {
	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, url, http.NoBody)
	if err != nil {
		return false
	}

	d.setHeaders(req)

	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Debug("accessibility check failed", "url", url, "error", err)

		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

func (d *Downloader) setHeaders(req *http.Request) {
	if d.policy.UserAgent != "" {
		req.Header.Set("User-Agent", d.policy.UserAgent)
	}

	req.Header.Set("Accept", "application/pdf,application/octet-stream;q=0.9,*/*;q=0.8")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
