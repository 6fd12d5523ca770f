package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/raphaelgruber/ragbot/internal/metrics"
)

// FetchOptions configures document downloads.
type FetchOptions struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
	// Timeout bounds a single download attempt.
	Timeout time.Duration
}

func (o FetchOptions) retryOptions(ctx context.Context) []retry.Option {
	attempts := o.Attempts
	if attempts == 0 {
		attempts = 3
	}
	maxDelay := o.MaxDelay
	if maxDelay == 0 {
		maxDelay = 10 * time.Second
	}
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(o.Delay),
		retry.MaxDelay(maxDelay),
		retry.LastErrorOnly(true),
	}
}

// FetchResult reports the outcome for one URL.
type FetchResult struct {
	URL    string
	Path   string
	Cached bool
	Err    error
}

// Fetcher downloads source documents into a local directory.
type Fetcher struct {
	client  *http.Client
	dir     string
	opts    FetchOptions
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewFetcher creates a fetcher writing into dir. client and collector may be nil.
func NewFetcher(dir string, client *http.Client, opts FetchOptions, collector *metrics.Collector, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, dir: dir, opts: opts, metrics: collector, logger: logger}
}

// FileName derives the local file name for a document URL.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		return "", fmt.Errorf("url %q has no file name", rawURL)
	}
	if isArxivID(name) {
		name += ".pdf"
	}
	return name, nil
}

// isArxivID matches names like 1706.03762 whose "extension" is numeric.
func isArxivID(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	if ext == "" {
		return false
	}
	for _, r := range ext {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FetchAll downloads every URL that is not already present. Failures are
// reported per URL; one bad URL does not stop the others.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []FetchResult {
	results := make([]FetchResult, 0, len(urls))
	for _, u := range urls {
		results = append(results, f.Fetch(ctx, u))
	}
	return results
}

// Fetch downloads one URL into the fetcher's directory unless the file exists.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) FetchResult {
	res := FetchResult{URL: rawURL}

	name, err := FileName(rawURL)
	if err != nil {
		res.Err = err
		return res
	}
	res.Path = filepath.Join(f.dir, name)

	if info, err := os.Stat(res.Path); err == nil && info.Size() > 0 {
		f.logger.Info("already downloaded", "file", res.Path)
		res.Cached = true
		return res
	}

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		res.Err = fmt.Errorf("create data dir: %w", err)
		return res
	}

	start := time.Now()
	err = retry.Do(func() error {
		return f.download(ctx, rawURL, res.Path)
	}, append(f.opts.retryOptions(ctx), retry.OnRetry(func(n uint, err error) {
		f.logger.Warn("download failed, retrying", "url", rawURL, "attempt", n+1, "error", err)
	}))...)
	f.metrics.Observe(metrics.OpFetch, time.Since(start), err)
	if err != nil {
		res.Err = fmt.Errorf("download %s: %w", rawURL, err)
		return res
	}

	f.logger.Info("downloaded", "url", rawURL, "file", res.Path, "duration_ms", time.Since(start).Milliseconds())
	return res
}

// download writes the response body to a temp file and renames it into place.
// Client errors (4xx) are not retried.
func (f *Fetcher) download(ctx context.Context, rawURL, dest string) error {
	if f.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Unrecoverable(statusErr)
		}
		return statusErr
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("create temp file: %w", err))
	}
	tmpName := tmp.Name()

	_, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write body: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return retry.Unrecoverable(fmt.Errorf("move into place: %w", err))
	}
	return nil
}
