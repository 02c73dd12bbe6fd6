package journal

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"github.com/tallystack/treasury/internal/audit"
)

// asyncShipper delivers journal records in the background with bounded
// retries per cycle.
type asyncShipper struct {
	journal *Journal
	target  Shipper
	cfg     *Config

	stopCh chan struct{}
	doneCh chan struct{}
	shipCh chan struct{}
}

func newAsyncShipper(journal *Journal, target Shipper, cfg *Config) *asyncShipper {
	return &asyncShipper{
		journal: journal,
		target:  target,
		cfg:     cfg,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		shipCh:  make(chan struct{}, 1), // Buffered so trigger doesn't block
	}
}

// shipLoop periodically tries to deliver unshipped records.
func (s *asyncShipper) shipLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.ShipInterval)
	defer ticker.Stop()

	log.Debug().
		Str("journal", s.journal.name).
		Dur("ship_interval", s.cfg.ShipInterval).
		Msg("Journal shipper loop started")

	for {
		select {
		case <-ticker.C:
			s.tryShip(ctx)

		case <-s.shipCh:
			s.tryShip(ctx)

		case <-s.stopCh:
			s.tryShip(ctx) // Final attempt
			return

		case <-ctx.Done():
			return
		}
	}
}

// tryShip delivers all unshipped records, retrying with exponential
// backoff up to cfg.ShipTries within this cycle. Records that exhaust
// their tries are marked failed and picked up again next cycle.
func (s *asyncShipper) tryShip(ctx context.Context) {
	unshipped := s.journal.index.GetUnshipped()
	if len(unshipped) == 0 {
		return
	}

	events, validRecords := s.readRecords(unshipped)
	if len(events) == 0 {
		return
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = s.cfg.RetryBackoff.InitialInterval
	expo.MaxInterval = s.cfg.RetryBackoff.MaxInterval

	notify := func(err error, next time.Duration) {
		log.Warn().
			Err(err).
			Str("journal", s.journal.name).
			Int("event_count", len(events)).
			Dur("next_retry", next).
			Msg("Failed to ship journal events, will retry")
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.target.Ship(ctx, events)
	},
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(s.cfg.ShipTries),
		backoff.WithNotify(notify),
	)

	if err != nil {
		s.journal.index.MarkFailed(validRecords)
		log.Warn().
			Err(err).
			Str("journal", s.journal.name).
			Int("marked_failed", len(validRecords)).
			Msg("Ship cycle exhausted retries")
		return
	}

	s.journal.index.MarkShipped(validRecords)

	log.Debug().
		Str("journal", s.journal.name).
		Int("event_count", len(events)).
		Msg("Shipped journal events")
}

// readRecords loads events for the given record metadata, skipping any
// record that fails to read back.
func (s *asyncShipper) readRecords(records []journalRecord) ([]audit.Event, []journalRecord) {
	events := make([]audit.Event, 0, len(records))
	validRecords := make([]journalRecord, 0, len(records))

	for _, rec := range records {
		ev, err := s.journal.readRecordAt(rec.offset)
		if err != nil {
			log.Warn().
				Err(err).
				Str("journal", s.journal.name).
				Int64("sequence", rec.sequence).
				Int64("offset", rec.offset).
				Msg("Failed to read journal record, skipping")
			continue
		}

		events = append(events, ev)
		validRecords = append(validRecords, rec)
	}

	return events, validRecords
}

// triggerShip asks the loop to attempt delivery immediately.
func (s *asyncShipper) triggerShip() {
	select {
	case s.shipCh <- struct{}{}:
	default:
		// A trigger is already queued
	}
}

// stop signals the shipper to stop and waits briefly for it to finish.
func (s *asyncShipper) stop() {
	close(s.stopCh)
	select {
	case <-s.doneCh:
	case <-time.After(5 * time.Second):
		log.Warn().Str("journal", s.journal.name).Msg("Journal shipper stop timeout")
	}
}
