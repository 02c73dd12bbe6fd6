package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Sink receives flushed event batches from a Dispatcher.
type Sink interface {
	Flush(ctx context.Context, events []Event) error
}

// DispatcherConfig controls batching behaviour.
type DispatcherConfig struct {
	FlushInterval time.Duration // Timer-based flush
	MaxBatchSize  int           // Max events per batch
	MaxBatchBytes int64         // Max estimated bytes per batch
}

func (c *DispatcherConfig) applyDefaults() {
	if c.FlushInterval <= 0 {
		c.FlushInterval = 2 * time.Second
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 64
	}
	if c.MaxBatchBytes <= 0 {
		c.MaxBatchBytes = 1048576
	}
}

// Dispatcher buffers audit events and flushes them to a sink in batches
// based on timers and size/byte thresholds. It implements Recorder so the
// ledger engines can emit into it directly.
type Dispatcher struct {
	mu sync.Mutex

	flushInterval time.Duration
	maxBatchSize  int
	maxBatchBytes int64

	buffer      []Event
	bufferBytes int64

	flushTimer *time.Timer
	stopCh     chan struct{}

	sink Sink
}

// NewDispatcher creates a dispatcher flushing into sink.
func NewDispatcher(cfg DispatcherConfig, sink Sink) *Dispatcher {
	cfg.applyDefaults()

	return &Dispatcher{
		flushInterval: cfg.FlushInterval,
		maxBatchSize:  cfg.MaxBatchSize,
		maxBatchBytes: cfg.MaxBatchBytes,
		buffer:        make([]Event, 0, cfg.MaxBatchSize),
		stopCh:        make(chan struct{}),
		sink:          sink,
	}
}

// Record buffers a single event. Returns an error if a threshold flush
// fails or if the dispatcher is stopped.
func (d *Dispatcher) Record(ctx context.Context, ev Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-d.stopCh:
		return fmt.Errorf("dispatcher is stopped")
	default:
	}

	if len(d.buffer) == 0 {
		d.startFlushTimer()
	}

	d.buffer = append(d.buffer, ev)
	d.bufferBytes += estimateSize(ev)

	shouldFlush := false
	reason := ""

	if len(d.buffer) >= d.maxBatchSize {
		shouldFlush = true
		reason = "max_batch_size"
	} else if d.bufferBytes >= d.maxBatchBytes {
		shouldFlush = true
		reason = "max_batch_bytes"
	}

	if shouldFlush {
		return d.flushLocked(ctx, reason)
	}

	return nil
}

// Flush flushes any buffered events immediately. Safe to call
// concurrently.
func (d *Dispatcher) Flush(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.buffer) == 0 {
		return nil
	}

	return d.flushLocked(ctx, "manual_flush")
}

// Stop shuts the dispatcher down and flushes any pending events.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-d.stopCh:
		// Already stopped
		return nil
	default:
		close(d.stopCh)
	}

	if d.flushTimer != nil {
		d.flushTimer.Stop()
	}

	if len(d.buffer) > 0 {
		return d.flushLocked(ctx, "shutdown")
	}

	return nil
}

// flushLocked hands the current buffer to the sink. Must be called with
// the lock held.
func (d *Dispatcher) flushLocked(ctx context.Context, reason string) error {
	if len(d.buffer) == 0 {
		if d.flushTimer != nil {
			d.flushTimer.Stop()
			d.flushTimer = nil
		}
		return nil
	}

	batch := d.buffer

	log.Debug().
		Int("event_count", len(batch)).
		Int64("bytes", d.bufferBytes).
		Str("reason", reason).
		Msg("Flushing audit batch")

	err := d.sink.Flush(ctx, batch)

	d.buffer = make([]Event, 0, d.maxBatchSize)
	d.bufferBytes = 0
	d.flushTimer = nil

	return err
}

// startFlushTimer starts or restarts the flush timer. Must be called
// with the lock held.
func (d *Dispatcher) startFlushTimer() {
	if d.flushTimer != nil {
		d.flushTimer.Stop()
	}

	d.flushTimer = time.AfterFunc(d.flushInterval, func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		select {
		case <-d.stopCh:
			return
		default:
		}

		if len(d.buffer) > 0 {
			if err := d.flushLocked(context.Background(), "timer"); err != nil {
				log.Error().Err(err).Msg("Failed to flush audit batch on timer")
				// Continue - events for the failed batch are dropped
			}
		}
	})
}

// estimateSize approximates the JSON size of an event without encoding
// it. Fixed fields dominate; only the memo varies meaningfully.
func estimateSize(ev Event) int64 {
	return int64(256 + len(ev.Memo))
}
