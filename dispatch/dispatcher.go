// Package dispatch moves queued records to the transport. A pass claims
// everything currently queued, sends each record once, and schedules failed
// records for re-insertion after an exponential backoff. Records that keep
// failing past the retry ceiling are dropped.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mabletask/tracker/clock"
	"mabletask/tracker/models"
	"mabletask/tracker/queue"
	"mabletask/tracker/transport"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultTimeout    = 10 * time.Second
)

type Options struct {
	MaxRetries int           // failed sends a record may be retried after
	BaseDelay  time.Duration // backoff before the first retry; doubles each time
	Timeout    time.Duration // bound on a single transmission attempt
}

func DefaultOptions() Options {
	return Options{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		Timeout:    DefaultTimeout,
	}
}

// Stats summarizes one pass.
type Stats struct {
	Sent     int
	Retrying int
	Dropped  int
	Requeued int // claimed but returned unsent because the pass was cancelled
}

func (s Stats) Empty() bool { return s == Stats{} }

type Dispatcher struct {
	visits    *queue.Bounded[*models.VisitRecord]
	pixels    *queue.Bounded[*models.PixelEvent]
	transport transport.Transport
	clock     clock.Clock
	enabled   func() bool
	logger    *slog.Logger
	opts      Options

	mu      sync.Mutex
	active  bool // a normal pass is in flight
	closed  bool
	drained chan struct{} // closed when the pass in flight at Close ends
	wg      sync.WaitGroup
}

// New wires a dispatcher over the two queues. enabled is consulted when a
// backoff expires; a nil enabled means always enabled.
func New(
	visits *queue.Bounded[*models.VisitRecord],
	pixels *queue.Bounded[*models.PixelEvent],
	t transport.Transport,
	clk clock.Clock,
	enabled func() bool,
	logger *slog.Logger,
	opts Options,
) *Dispatcher {
	if clk == nil {
		clk = clock.Real()
	}
	if enabled == nil {
		enabled = func() bool { return true }
	}
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultOptions()
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = def.BaseDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	return &Dispatcher{
		visits:    visits,
		pixels:    pixels,
		transport: t,
		clock:     clk,
		enabled:   enabled,
		logger:    logger.With("component", "dispatch"),
		opts:      opts,
	}
}

// Backoff returns the delay before re-inserting a record that has already
// been retried retryCount times: BaseDelay * 2^retryCount.
func (d *Dispatcher) Backoff(retryCount int) time.Duration {
	return d.opts.BaseDelay << uint(retryCount)
}

// Request starts a normal pass in the background unless one is already
// running, in which case the request is absorbed by the running pass.
func (d *Dispatcher) Request() {
	if !d.acquire() {
		return
	}
	go func() {
		defer d.release()
		d.pass(context.Background(), "scheduled")
	}()
}

// Dispatch runs a normal pass on the calling goroutine. It reports false
// without doing anything if another normal pass is in flight.
func (d *Dispatcher) Dispatch(ctx context.Context) (Stats, bool) {
	if !d.acquire() {
		return Stats{}, false
	}
	defer d.release()
	return d.pass(ctx, "normal"), true
}

// Flush runs a forced pass regardless of any pass in flight. ctx bounds the
// whole pass; records not yet attempted when it ends go back to the queue front.
func (d *Dispatcher) Flush(ctx context.Context) Stats {
	return d.pass(ctx, "forced")
}

// Active reports whether a normal pass is in flight.
func (d *Dispatcher) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Wait blocks until background passes started by Request have finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Close stops Request and Dispatch from starting new passes and waits, until
// ctx ends, for the one in flight. Backoff timers still re-insert their records.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	if !d.active {
		d.mu.Unlock()
		return nil
	}
	if d.drained == nil {
		d.drained = make(chan struct{})
	}
	drained := d.drained
	d.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) acquire() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.active {
		return false
	}
	d.active = true
	d.wg.Add(1)
	return true
}

func (d *Dispatcher) release() {
	d.mu.Lock()
	d.active = false
	if d.drained != nil {
		close(d.drained)
		d.drained = nil
	}
	d.mu.Unlock()
	d.wg.Done()
}

func (d *Dispatcher) pass(ctx context.Context, kind string) Stats {
	visits := d.visits.Drain()
	pixels := d.pixels.Drain()
	if len(visits) == 0 && len(pixels) == 0 {
		return Stats{}
	}

	var stats Stats
	for i, v := range visits {
		if ctx.Err() != nil {
			stats.Requeued += requeue(d.visits, visits[i:])
			stats.Requeued += requeue(d.pixels, pixels)
			d.logPass(kind, stats, ctx.Err())
			return stats
		}
		d.sendVisit(ctx, v, &stats)
	}
	for i, p := range pixels {
		if ctx.Err() != nil {
			stats.Requeued += requeue(d.pixels, pixels[i:])
			d.logPass(kind, stats, ctx.Err())
			return stats
		}
		d.sendPixel(ctx, p, &stats)
	}
	d.logPass(kind, stats, nil)
	return stats
}

func (d *Dispatcher) logPass(kind string, stats Stats, err error) {
	attrs := []any{
		"pass", kind,
		"sent", stats.Sent,
		"retrying", stats.Retrying,
		"dropped", stats.Dropped,
	}
	if err != nil {
		d.logger.Warn("Dispatch pass cut short", append(attrs, "requeued", stats.Requeued, "error", err)...)
		return
	}
	d.logger.Debug("Dispatch pass complete", attrs...)
}

func (d *Dispatcher) sendVisit(ctx context.Context, v *models.VisitRecord, stats *Stats) {
	err := d.attempt(ctx, func(ctx context.Context) error {
		return d.transport.SendVisit(ctx, v)
	})
	if err == nil {
		stats.Sent++
		return
	}
	if v.RetryCount >= d.opts.MaxRetries {
		stats.Dropped++
		d.logger.Error("Error sending visit, dropping after max retries",
			"event_id", v.EventID, "url", v.URL, "retry_count", v.RetryCount, "error", err)
		return
	}

	prev := v.MarkRetry(d.clock.Now())
	delay := d.Backoff(prev)
	stats.Retrying++
	d.logger.Warn("Error sending visit, will retry",
		"event_id", v.EventID, "retry_count", v.RetryCount, "delay", delay, "error", err)

	d.clock.AfterFunc(delay, func() {
		if !d.visits.PushFront(v) {
			d.logger.Warn("Visit queue full, retried visit dropped", "event_id", v.EventID)
		}
		d.retryDue()
	})
}

func (d *Dispatcher) sendPixel(ctx context.Context, p *models.PixelEvent, stats *Stats) {
	err := d.attempt(ctx, func(ctx context.Context) error {
		return d.transport.SendPixel(ctx, p)
	})
	if err == nil {
		stats.Sent++
		return
	}
	if p.RetryCount >= d.opts.MaxRetries {
		stats.Dropped++
		d.logger.Error("Error sending pixel event, dropping after max retries",
			"event_id", p.EventID, "event_name", p.EventName, "retry_count", p.RetryCount, "error", err)
		return
	}

	prev := p.MarkRetry(d.clock.Now())
	delay := d.Backoff(prev)
	stats.Retrying++
	d.logger.Warn("Error sending pixel event, will retry",
		"event_id", p.EventID, "event_name", p.EventName, "retry_count", p.RetryCount, "delay", delay, "error", err)

	d.clock.AfterFunc(delay, func() {
		if !d.pixels.PushFront(p) {
			d.logger.Warn("Pixel queue full, retried event dropped", "event_id", p.EventID)
		}
		d.retryDue()
	})
}

// retryDue runs after a backoff re-inserted a record. The immediate
// re-attempt only happens while tracking is enabled; otherwise the record
// waits for the next regular pass.
func (d *Dispatcher) retryDue() {
	if !d.enabled() {
		return
	}
	d.Request()
}

// attempt bounds one transmission by Timeout and turns a transport panic into
// an ordinary failure.
func (d *Dispatcher) attempt(ctx context.Context, send func(context.Context) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("transport panic: %v", r)
		}
	}()
	return send(ctx)
}

// requeue puts unsent records back at the front in their original order.
func requeue[T any](q *queue.Bounded[T], rest []T) int {
	n := 0
	for i := len(rest) - 1; i >= 0; i-- {
		if q.PushFront(rest[i]) {
			n++
		}
	}
	return n
}
