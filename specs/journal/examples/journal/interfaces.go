// Package journal provides example interfaces for the audit journal
// This is a reference showing the key interfaces
package journal

import (
	"context"
	"time"
)

// Event is the unit the journal persists. The real type lives in the
// audit package; recorders and shippers never inspect it beyond the ID,
// which observers use to deduplicate re-shipped records.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
}

// Journal provides durable event persistence with async shipping
type Journal interface {
	// Record appends event to disk (synchronous, with per-record checksum)
	// Returns error if the disk write fails
	Record(ctx context.Context, event Event) error

	// Start begins the async shipper goroutine
	// The shipper continuously retries failed sends with exponential backoff
	Start(ctx context.Context, shipper Shipper) error

	// Flush ships everything currently unshipped, synchronously
	Flush(ctx context.Context) error

	// Stop flushes pending events and stops the async shipper
	Stop(ctx context.Context) error

	// Archive compresses the journal file and moves it to the archive
	// directory. Uses zstd compression
	Archive(ctx context.Context) error
}

// Shipper delivers events to an observer
// This interface decouples the journal from the transport mechanism
type Shipper interface {
	// Ship transmits events to the observer
	// Returns error if the send fails (the journal will retry)
	Ship(ctx context.Context, events []Event) error
}

// Config configures journal behaviour
type Config struct {
	// Dir is the directory for active journal files
	Dir string

	// ArchiveDir is the directory for compressed archives
	ArchiveDir string

	// RetentionDays is how long to keep archived journals
	RetentionDays int

	// ShipInterval is how often the async shipper checks for unshipped
	// events
	ShipInterval time.Duration

	// ShipTries bounds retry attempts within one ship cycle
	ShipTries uint

	// RetryBackoff configures the delay between attempts in a cycle
	RetryBackoff BackoffConfig
}

// BackoffConfig configures exponential backoff retry
type BackoffConfig struct {
	// InitialInterval is the first retry delay (e.g., 1 second)
	InitialInterval time.Duration

	// MaxInterval is the maximum retry delay (e.g., 30 seconds)
	MaxInterval time.Duration
}

// Example usage:
//
//   cfg := journal.DefaultConfig()
//   cfg.Dir = "~/.treasury/journal"
//   cfg.ArchiveDir = "~/.treasury/archive"
//
//   jrnl, err := journal.Open(cfg, "treasury")
//   defer jrnl.Stop(ctx)
//
//   shipper := journal.NewHTTPShipper(url, token, 10*time.Second)
//   jrnl.Start(ctx, shipper)
//
//   // Engines write through the batching dispatcher
//   dispatcher := audit.NewDispatcher(audit.DispatcherConfig{
//       FlushInterval: 2 * time.Second,
//       MaxBatchSize:  50,
//   }, jrnl.Sink())
