package audit

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// Recorder accepts audit events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// LogRecorder writes each event as one structured log line.
type LogRecorder struct{}

func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

func (r *LogRecorder) Record(_ context.Context, ev Event) error {
	evt := log.Info().
		Str("audit_id", ev.ID).
		Str("kind", string(ev.Kind)).
		Time("at", ev.Timestamp)

	switch ev.Kind {
	case KindTransfer:
		evt = evt.
			Str("sender", string(ev.Sender)).
			Str("recipient", string(ev.Recipient)).
			Str("asset", string(ev.Asset)).
			Uint64("amount", ev.Amount)
	case KindPayroll:
		evt = evt.
			Str("employer", string(ev.Employer)).
			Str("employee", string(ev.Employee)).
			Str("asset", string(ev.Asset)).
			Uint64("amount", ev.Amount).
			Str("memo", ev.Memo)
	case KindTreasury:
		evt = evt.
			Str("org", string(ev.Org)).
			Str("from_tag", string(ev.FromTag)).
			Str("to_tag", string(ev.ToTag)).
			Str("asset", string(ev.Asset)).
			Uint64("amount", ev.Amount)
	case KindSwap:
		evt = evt.
			Str("user", string(ev.User)).
			Str("in_asset", string(ev.InAsset)).
			Str("out_asset", string(ev.OutAsset)).
			Uint64("amount_in", ev.AmountIn).
			Uint64("amount_out", ev.AmountOut).
			Uint64("rate", ev.Rate).
			Uint64("fee", ev.Fee)
	}

	evt.Msg("audit event")

	return nil
}

// Multi fans each event out to every recorder in order. All recorders
// are attempted even when one fails; the errors are joined.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, ev Event) error {
	var errs []error

	for _, r := range m {
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Discard drops every event. Useful in tests.
type Discard struct{}

func (Discard) Record(context.Context, Event) error { return nil }
