// Package checkpoint keeps an on-disk snapshot of an in-memory store fresh.
//
// Writes are debounced: every Request restarts a quiescence timer, and only
// when the timer fires is a snapshot taken and written. Writes are
// single-flight with one trailing retry: a checkpoint requested while a write
// is running is remembered and performed once the running write finishes,
// using the state at that moment rather than the state when it was requested.
package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/sirupsen/logrus"
)

// DefaultWindow is the quiescence period used when none is configured.
const DefaultWindow = time.Second

// SnapshotFunc returns the current serialized state.
type SnapshotFunc func(ctx context.Context) ([]byte, error)

// Sink persists a serialized snapshot.
type Sink interface {
	Write(ctx context.Context, data []byte) error
}

// Options configures a Checkpointer.
type Options struct {
	Window  time.Duration
	Clock   quartz.Clock
	Logger  logrus.FieldLogger
	Metrics *Metrics
}

// Checkpointer schedules and performs snapshot writes.
type Checkpointer struct {
	snapshot SnapshotFunc
	sink     Sink
	window   time.Duration
	clock    quartz.Clock
	log      logrus.FieldLogger
	metrics  *Metrics

	mu       sync.Mutex
	idle     *sync.Cond
	timer    *quartz.Timer
	gen      uint64
	inFlight bool
	pending  bool
	closed   bool

	// writeMu serializes sink writes between the async path and Flush.
	writeMu sync.Mutex
}

// New creates a Checkpointer that writes snapshot() output to sink.
func New(snapshot SnapshotFunc, sink Sink, opts Options) *Checkpointer {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Clock == nil {
		opts.Clock = quartz.NewReal()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}

	c := &Checkpointer{
		snapshot: snapshot,
		sink:     sink,
		window:   opts.Window,
		clock:    opts.Clock,
		log:      opts.Logger.WithField("component", "checkpoint"),
		metrics:  opts.Metrics,
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Request schedules a checkpoint after the quiescence window. A call made
// while a checkpoint is already scheduled restarts the window. It never
// blocks on I/O.
func (c *Checkpointer) Request() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
		c.metrics.Debounced.Inc()
	}
	c.gen++
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.window, func() { c.fire(gen) }, "checkpoint", "debounce")
}

func (c *Checkpointer) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		// Superseded by a later Request whose timer will fire instead.
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()

	c.Now()
}

// Now performs a checkpoint immediately unless one is already running, in
// which case it marks a trailing checkpoint and returns at once.
func (c *Checkpointer) Now() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.inFlight {
		c.pending = true
		c.metrics.Coalesced.Inc()
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.mu.Unlock()

	for {
		_ = c.write(context.Background())

		c.mu.Lock()
		if !c.pending || c.closed {
			c.pending = false
			c.inFlight = false
			c.idle.Broadcast()
			c.mu.Unlock()
			return
		}
		c.pending = false
		c.mu.Unlock()
	}
}

// Flush cancels any scheduled checkpoint and writes the current state
// synchronously. It is meant for shutdown.
func (c *Checkpointer) Flush(ctx context.Context) error {
	c.mu.Lock()
	c.stopTimerLocked()
	c.mu.Unlock()

	return c.write(ctx)
}

// Close stops scheduling, waits for a running checkpoint to finish and
// performs a final Flush. Requests made after Close are ignored.
func (c *Checkpointer) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.stopTimerLocked()
	for c.inFlight {
		c.idle.Wait()
	}
	c.mu.Unlock()

	return c.Flush(ctx)
}

func (c *Checkpointer) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

// write takes a fresh snapshot and hands it to the sink. Failures are logged
// and counted; the in-memory state stays authoritative.
func (c *Checkpointer) write(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	start := c.clock.Now()
	data, err := c.snapshot(ctx)
	if err != nil {
		c.metrics.Writes.WithLabelValues(resultError).Inc()
		c.log.WithError(err).Error("checkpoint snapshot failed")
		return err
	}

	if err := c.sink.Write(ctx, data); err != nil {
		c.metrics.Writes.WithLabelValues(resultError).Inc()
		c.log.WithError(err).WithField("bytes", len(data)).Error("checkpoint write failed")
		return err
	}

	elapsed := c.clock.Since(start)
	c.metrics.Writes.WithLabelValues(resultOK).Inc()
	c.metrics.Duration.Observe(elapsed.Seconds())
	c.metrics.Bytes.Set(float64(len(data)))
	c.log.WithFields(logrus.Fields{
		"bytes":    len(data),
		"duration": elapsed,
	}).Debug("checkpoint written")
	return nil
}
