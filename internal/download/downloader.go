// Package download streams release artifacts to disk while sampling transfer progress.
package download

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultInterval is the progress sampling period.
	DefaultInterval = 20 * time.Millisecond

	// PartSuffix marks an in-flight download next to its destination.
	PartSuffix = ".part"

	defaultUserAgent = "MeMate-Launcher/dev"
	defaultTimeout   = 30 * time.Second
)

// Task is one artifact transfer.
type Task struct {
	SourceURL         string
	DestinationPath   string
	ExpectedSizeBytes int64 // -1 when the server does not declare a length
}

// Progress is a snapshot of a running transfer.
type Progress struct {
	Written int64
	Total   int64 // -1 when unknown
}

// Fraction reports Written/Total in [0, 1]. ok is false when the total is unknown.
func (p Progress) Fraction() (f float64, ok bool) {
	if p.Total <= 0 {
		return 0, false
	}
	f = float64(p.Written) / float64(p.Total)
	if f > 1 {
		f = 1
	}
	return f, true
}

func (p Progress) String() string {
	if p.Total < 0 {
		return humanize.Bytes(uint64(p.Written))
	}
	return fmt.Sprintf("%s / %s", humanize.Bytes(uint64(p.Written)), humanize.Bytes(uint64(p.Total)))
}

// HTTPDownloader downloads files over HTTP
type HTTPDownloader struct {
	client    *http.Client
	interval  time.Duration
	userAgent string
}

// Option configures an HTTPDownloader.
type Option func(*HTTPDownloader)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(d *HTTPDownloader) {
		if c != nil {
			d.client = c
		}
	}
}

// WithInterval sets the progress sampling period.
func WithInterval(interval time.Duration) Option {
	return func(d *HTTPDownloader) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

// WithUserAgent sets the User-Agent header sent with each request.
func WithUserAgent(ua string) Option {
	return func(d *HTTPDownloader) {
		if ua != "" {
			d.userAgent = ua
		}
	}
}

// WithConnectTimeout bounds dialing, the TLS handshake and waiting for response headers.
// The body transfer itself is not capped.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(d *HTTPDownloader) {
		if timeout > 0 {
			d.client = &http.Client{Transport: newTransport(timeout)}
		}
	}
}

// NewHTTPDownloader creates a new HTTP downloader
func NewHTTPDownloader(opts ...Option) *HTTPDownloader {
	d := &HTTPDownloader{
		client:    &http.Client{Transport: newTransport(defaultTimeout)},
		interval:  DefaultInterval,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func newTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
	}
}

// Fetch downloads url to dst and returns the number of bytes written.
//
// The body is streamed into dst+".part" and renamed onto dst only after the
// whole body arrived, so a failed transfer never leaves a file at dst.
// onProgress, when non-nil, is called from a sampling goroutine while the
// transfer runs and once more with the final count; calls never overlap.
func (d *HTTPDownloader) Fetch(ctx context.Context, url, dst string, onProgress func(Progress)) (int64, error) {
	logger := log.WithFields(log.Fields{
		"component": "download",
		"url":       url,
		"path":      dst,
	})
	logger.Debug("starting download")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &TransferError{URL: url, Path: dst, Err: fmt.Errorf("failed to create HTTP request: %w", err)}
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &TransferError{URL: url, Path: dst, Err: fmt.Errorf("failed to perform HTTP request: %w", err)}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warnf("error closing response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, &TransferError{URL: url, Path: dst, Err: fmt.Errorf("unexpected HTTP status: %d", resp.StatusCode)}
	}

	task := Task{SourceURL: url, DestinationPath: dst, ExpectedSizeBytes: resp.ContentLength}
	n, err := d.transfer(task, resp.Body, onProgress)
	if err != nil {
		return n, &TransferError{URL: url, Path: dst, Err: err}
	}

	logger.Infof("downloaded %s", humanize.Bytes(uint64(n)))
	return n, nil
}

func (d *HTTPDownloader) transfer(task Task, body io.Reader, onProgress func(Progress)) (n int64, err error) {
	part := task.DestinationPath + PartSuffix
	out, err := os.OpenFile(part, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file %q: %w", part, err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			if rerr := os.Remove(part); rerr != nil && !os.IsNotExist(rerr) {
				log.Warnf("failed to remove partial download %q: %v", part, rerr)
			}
		}
	}()

	var written atomic.Int64
	s := startSampler(&written, task.ExpectedSizeBytes, d.interval, onProgress)
	_, copyErr := io.Copy(&countingWriter{w: out, n: &written}, body)
	s.stop()

	n = written.Load()
	if copyErr != nil {
		return n, fmt.Errorf("failed to write response body to file: %w", copyErr)
	}
	if task.ExpectedSizeBytes >= 0 && n != task.ExpectedSizeBytes {
		return n, fmt.Errorf("short body: got %d of %d bytes", n, task.ExpectedSizeBytes)
	}
	if err := out.Sync(); err != nil {
		return n, fmt.Errorf("failed to sync %q: %w", part, err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("failed to close %q: %w", part, err)
	}
	if err := os.Rename(part, task.DestinationPath); err != nil {
		return n, fmt.Errorf("failed to move download into place: %w", err)
	}

	if onProgress != nil {
		onProgress(Progress{Written: n, Total: n})
	}
	return n, nil
}

type countingWriter struct {
	w io.Writer
	n *atomic.Int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n.Add(int64(n))
	return n, err
}

// sampler periodically reports a transfer counter until stopped.
type sampler struct {
	done chan struct{}
	wg   sync.WaitGroup
}

func startSampler(counter *atomic.Int64, total int64, interval time.Duration, emit func(Progress)) *sampler {
	s := &sampler{done: make(chan struct{})}
	if emit == nil {
		return s
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := int64(-1)
		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				cur := counter.Load()
				if cur == last {
					continue
				}
				last = cur
				emit(Progress{Written: cur, Total: total})
			}
		}
	}()
	return s
}

// stop halts the sampler and waits for its goroutine to exit.
func (s *sampler) stop() {
	close(s.done)
	s.wg.Wait()
}
