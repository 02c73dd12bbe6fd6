// Package journal persists audit events in an append-only file with
// per-record checksums, ships them to an observer in the background and
// compresses finished journals into an archive.
//
// A journal survives process crashes: on reopen the index is rebuilt by
// scanning the file, and a torn tail left by an interrupted write is
// truncated away. Shipped status lives only in the index, so a reopened
// journal re-ships everything it holds; observers deduplicate on the
// event ID.
package journal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tallystack/treasury/internal/audit"
)

// Shipper delivers journal events to an observer. Errors are retried by
// the async shipper.
type Shipper interface {
	Ship(ctx context.Context, events []audit.Event) error
}

// Config configures journal behaviour.
type Config struct {
	// Dir is the directory for active journal files.
	Dir string

	// ArchiveDir is the directory for compressed archives.
	ArchiveDir string

	// RetentionDays is how long to keep archived journals.
	RetentionDays int

	// ShipInterval is how often the async shipper checks for unshipped
	// events.
	ShipInterval time.Duration

	// ShipTries bounds the retry attempts within one ship cycle. Records
	// that exhaust their tries are picked up again on the next cycle.
	ShipTries uint

	// RetryBackoff configures the delay between attempts in a cycle.
	RetryBackoff BackoffConfig
}

// BackoffConfig configures exponential backoff retry.
type BackoffConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Dir:           filepath.Join(homeDir, ".treasury", "journal"),
		ArchiveDir:    filepath.Join(homeDir, ".treasury", "archive"),
		RetentionDays: 30,
		ShipInterval:  1 * time.Second,
		ShipTries:     5,
		RetryBackoff: BackoffConfig{
			InitialInterval: 1 * time.Second,
			MaxInterval:     30 * time.Second,
		},
	}
}

// Journal is a single append-only audit file. It implements
// audit.Recorder so engines can write into it directly.
type Journal struct {
	mu      sync.RWMutex
	cfg     *Config
	name    string
	file    *os.File
	index   *journalIndex
	shipper *asyncShipper

	nextSequence int64
	path         string
	isStarted    bool
}

// Open opens or creates the journal named name under cfg.Dir.
func Open(cfg *Config, name string) (*Journal, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	if err := os.MkdirAll(cfg.ArchiveDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	j := &Journal{
		cfg:          cfg,
		name:         name,
		path:         filepath.Join(cfg.Dir, fmt.Sprintf("%s.journal", name)),
		index:        newJournalIndex(),
		nextSequence: 1,
	}

	if err := j.openOrCreate(); err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	log.Info().
		Str("journal", name).
		Str("path", j.path).
		Int("records", j.index.Count()).
		Msg("Journal opened")

	return j, nil
}

// openOrCreate opens an existing journal file or creates a new one with
// a header.
func (j *Journal) openOrCreate() error {
	fileExists := false
	if _, err := os.Stat(j.path); err == nil {
		fileExists = true
	}

	var err error
	j.file, err = os.OpenFile(j.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	if !fileExists {
		if err := j.writeHeader(); err != nil {
			j.file.Close()
			return fmt.Errorf("failed to write header: %w", err)
		}
		return nil
	}

	if err := j.loadIndex(); err != nil {
		j.file.Close()
		return fmt.Errorf("failed to load index: %w", err)
	}

	log.Debug().
		Str("journal", j.name).
		Int("records", j.index.Count()).
		Int("pending", j.index.CountPending()).
		Msg("Loaded existing journal")

	return nil
}

// Record implements audit.Recorder.
func (j *Journal) Record(ctx context.Context, ev audit.Event) error {
	return j.Append(ctx, ev)
}

// Append writes one event to disk with fsync.
func (j *Journal) Append(_ context.Context, ev audit.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return fmt.Errorf("journal is closed")
	}

	// Seek explicitly: readRecordAt moves the shared cursor.
	offset, err := j.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to get file position: %w", err)
	}

	sequence := j.nextSequence
	j.nextSequence++

	length, err := j.appendRecord(sequence, ev)
	if err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}

	// Fsync for durability
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to fsync: %w", err)
	}

	j.index.Add(journalRecord{
		sequence:  sequence,
		offset:    offset,
		length:    length,
		status:    RecordPending,
		timestamp: time.Now().UnixMilli(),
	})

	return nil
}

// Sink returns an audit.Sink that appends each flushed batch to the
// journal, so a Dispatcher can batch writes ahead of it.
func (j *Journal) Sink() audit.Sink {
	return journalSink{j}
}

type journalSink struct {
	j *Journal
}

func (s journalSink) Flush(ctx context.Context, events []audit.Event) error {
	for _, ev := range events {
		if err := s.j.Append(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// Start begins the async shipper goroutine.
func (j *Journal) Start(ctx context.Context, shipper Shipper) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.isStarted {
		return fmt.Errorf("journal already started")
	}

	j.shipper = newAsyncShipper(j, shipper, j.cfg)
	go j.shipper.shipLoop(ctx)
	j.isStarted = true

	log.Info().Str("journal", j.name).Msg("Journal shipper started")

	return nil
}

// Flush blocks until every record has shipped or ctx expires.
func (j *Journal) Flush(ctx context.Context) error {
	j.mu.RLock()
	if j.shipper != nil {
		j.shipper.triggerShip()
	}
	j.mu.RUnlock()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		j.mu.RLock()
		unshipped := j.index.CountPending() + j.index.CountFailed()
		hasShipper := j.shipper != nil
		j.mu.RUnlock()

		if unshipped == 0 {
			return nil
		}

		if hasShipper {
			j.mu.RLock()
			if j.shipper != nil {
				j.shipper.triggerShip()
			}
			j.mu.RUnlock()
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return fmt.Errorf("flush cancelled: %d events still unshipped: %w", unshipped, ctx.Err())
		}
	}
}

// Stop stops the async shipper and closes the file. Records that have
// not shipped stay in the file and are re-shipped on the next open.
func (j *Journal) Stop(_ context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.shipper != nil {
		j.shipper.stop()
		j.shipper = nil
	}

	if j.file != nil {
		if err := j.file.Close(); err != nil {
			return fmt.Errorf("failed to close file: %w", err)
		}
		j.file = nil
	}

	log.Info().
		Str("journal", j.name).
		Int("total_records", j.index.Count()).
		Int("shipped", j.index.CountShipped()).
		Int("pending", j.index.CountPending()).
		Msg("Journal stopped")

	return nil
}

// Archive compresses the journal file into archiveDir and removes the
// original. The journal must be stopped first.
func (j *Journal) Archive(_ context.Context, archiveDir string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file != nil {
		return fmt.Errorf("journal must be stopped before archiving")
	}

	if archiveDir == "" {
		archiveDir = j.cfg.ArchiveDir
	}

	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := archiveJournal(j.path, archiveDir, j.name); err != nil {
		return fmt.Errorf("failed to archive journal: %w", err)
	}

	log.Info().
		Str("journal", j.name).
		Str("archive_dir", archiveDir).
		Msg("Journal archived")

	return nil
}

// readRecordAt reads the event stored at the given offset.
func (j *Journal) readRecordAt(offset int64) (audit.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.file == nil {
		return audit.Event{}, fmt.Errorf("journal is closed")
	}

	return readRecordAt(j.file, offset)
}
