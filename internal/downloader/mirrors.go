package downloader

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Mirror errors.
var (
	ErrNoMirrors           = errors.New("no mirrors available")
	ErrAllMirrorsExhausted = errors.New("all mirrors exhausted")
)

// MirrorAttempt records the outcome of one mirror after its retries.
type MirrorAttempt struct {
	URL      string
	Error    string
	Attempts int
	Duration time.Duration
	Success  bool
}

// MirrorResult is the payload of the first mirror that answered, with the
// log of every mirror tried before it.
type MirrorResult struct {
	Data []byte
	URL  string
	Log  []MirrorAttempt
}

// DownloadFirst tries urls in order, each under the full retry policy, and
// returns the first valid payload. A cancelled context stops the walk.
func (d *Downloader) DownloadFirst(ctx context.Context, urls []string, opts Options) (*MirrorResult, error) {
	if len(urls) == 0 {
		return nil, ErrNoMirrors
	}

	out := &MirrorResult{}

	var errs []error

	for i, url := range urls {
		res, err := d.DownloadWithMetrics(ctx, url, opts)
		if err == nil {
			out.Log = append(out.Log, MirrorAttempt{URL: url, Attempts: res.Attempts, Duration: res.Duration, Success: true})
			out.Data = res.Data
			out.URL = url

			if i > 0 {
				d.log.Info("downloaded from mirror", "url", url, "mirror", i)
			}

			return out, nil
		}

		out.Log = append(out.Log, MirrorAttempt{URL: url, Error: err.Error()})
		errs = append(errs, err)

		if ctx.Err() != nil {
			break
		}
	}

	return out, fmt.Errorf("%w: %d tried: %w", ErrAllMirrorsExhausted, len(out.Log), errors.Join(errs...))
}
