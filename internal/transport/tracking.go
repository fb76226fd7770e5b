// Package transport holds the HTTP collaborators of a playback session: the
// tracking beacon client and the remote creative loader.
package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"ad-orchestrator/internal/platform/metrics"

	retry "github.com/avast/retry-go/v5"
)

// TrackingOptions tunes a TrackingClient.
type TrackingOptions struct {
	Attempts   uint          // total attempts per URI; 0 means 3
	RetryDelay time.Duration // fixed delay between attempts; 0 means 500ms
	Timeout    time.Duration // per-request timeout; 0 means 5s
}

// TrackingClient delivers tracking beacons with HTTP GET. Fire never blocks
// the caller; failures are retried a bounded number of times, then logged
// and dropped.
type TrackingClient struct {
	client  *http.Client
	log     *slog.Logger
	metrics *metrics.Metrics
	opts    TrackingOptions

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTrackingClient returns a TrackingClient. client, log and m may be nil.
func NewTrackingClient(client *http.Client, log *slog.Logger, m *metrics.Metrics, opts TrackingOptions) *TrackingClient {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if opts.Attempts == 0 {
		opts.Attempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TrackingClient{
		client:  client,
		log:     log,
		metrics: m,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Fire implements orchestrator.TrackingSink.
func (c *TrackingClient) Fire(uri string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.deliver(uri); err != nil {
			c.log.Warn("tracking dropped", slog.String("uri", uri), slog.String("error", err.Error()))
			if c.metrics != nil {
				c.metrics.IncTrackingDropped()
			}
			return
		}
		c.log.Debug("tracking delivered", slog.String("uri", uri))
		if c.metrics != nil {
			c.metrics.IncTrackingFired()
		}
	}()
}

// Wait blocks until every fired beacon has been delivered or dropped.
func (c *TrackingClient) Wait() {
	c.wg.Wait()
}

// Close abandons pending retries and waits for in-flight beacons.
func (c *TrackingClient) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *TrackingClient) deliver(uri string) error {
	return retry.New(
		retry.Attempts(c.opts.Attempts),
		retry.Delay(c.opts.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(c.ctx),
	).Do(func() error {
		return c.get(uri)
	})
}

func (c *TrackingClient) get(uri string) error {
	ctx, cancel := context.WithTimeout(c.ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("build tracking request: %w", err))
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tracking %s: unexpected status %d", uri, resp.StatusCode)
	}
	return nil
}
