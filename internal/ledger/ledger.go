// Package ledger holds the money-moving engines: the tagged treasury
// ledger, the payroll batch runner and the two-phase swap engine.
//
// The engines own sequencing and compensation. Real value moves only
// through a custody.Vault; what the engines persist in the stores is
// bookkeeping over that value, and every composite operation either
// completes or unwinds the custody legs it already performed.
package ledger

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tallystack/treasury/internal/audit"
	"github.com/tallystack/treasury/internal/telemetry"
)

// emit records an audit event best-effort. The money has already moved
// when an event is emitted, so recorder failures are counted and logged
// rather than surfaced to the caller.
func emit(ctx context.Context, rec audit.Recorder, ev audit.Event) {
	if rec == nil {
		return
	}

	m := telemetry.GetMetrics()

	if err := rec.Record(ctx, ev); err != nil {
		m.AuditEventsDroppedTotal.Add(ctx, 1)
		log.Error().
			Err(err).
			Str("kind", string(ev.Kind)).
			Str("audit_id", ev.ID).
			Msg("Failed to record audit event")
		return
	}

	m.AuditEventsRecordedTotal.Add(ctx, 1)
}
