package telemetry

import (
	"context"
	"time"

	"github.com/invoiced/backend/internal/domain/numbering"
	"go.opentelemetry.io/otel/attribute"
)

// NumberingMetrics records the numbering lifecycle. It implements
// numbering.Observer.
//
// Metrics:
//   - numbering_reservations_total: reserved numbers per object type
//   - numbering_releases_total: released numbers; outcome is restored or gap
//   - numbering_burned_total: candidates lost to a duplicate
//   - numbering_lock_timeouts_total: reservations that failed to get the lock
//   - numbering_lock_wait_seconds: time spent acquiring the sequence lock
//
// Tenant ids are not used as attributes to keep cardinality bounded.
type NumberingMetrics struct {
	reservations *Counter
	releases     *Counter
	burned       *Counter
	lockTimeouts *Counter
	lockWait     *Histogram
}

// NewNumberingMetrics registers the numbering instruments on mp
func NewNumberingMetrics(mp *MeterProvider) (*NumberingMetrics, error) {
	meter := mp.Meter("invoiced/numbering")
	m := &NumberingMetrics{}
	var err error

	if m.reservations, err = NewCounter(meter, "numbering_reservations_total", "Document numbers reserved", "{number}"); err != nil {
		return nil, err
	}
	if m.releases, err = NewCounter(meter, "numbering_releases_total", "Reserved numbers handed back after a failed save", "{number}"); err != nil {
		return nil, err
	}
	if m.burned, err = NewCounter(meter, "numbering_burned_total", "Reserved numbers lost to a duplicate", "{number}"); err != nil {
		return nil, err
	}
	if m.lockTimeouts, err = NewCounter(meter, "numbering_lock_timeouts_total", "Sequence lock acquisitions that timed out", "{timeout}"); err != nil {
		return nil, err
	}
	if m.lockWait, err = NewHistogram(meter, "numbering_lock_wait_seconds", "Time spent acquiring the sequence lock", LockWaitBuckets); err != nil {
		return nil, err
	}
	return m, nil
}

// Reserved implements numbering.Observer
func (m *NumberingMetrics) Reserved(ctx context.Context, key numbering.Key) {
	m.reservations.Inc(ctx, AttrObjectType.String(string(key.ObjectType)))
}

// Released implements numbering.Observer
func (m *NumberingMetrics) Released(ctx context.Context, key numbering.Key, restored bool) {
	outcome := "gap"
	if restored {
		outcome = "restored"
	}
	m.releases.Inc(ctx, AttrObjectType.String(string(key.ObjectType)), AttrOutcome.String(outcome))
}

// Burned implements numbering.Observer
func (m *NumberingMetrics) Burned(ctx context.Context, key numbering.Key) {
	m.burned.Inc(ctx, AttrObjectType.String(string(key.ObjectType)))
}

// LockWait implements numbering.Observer
func (m *NumberingMetrics) LockWait(ctx context.Context, key numbering.Key, wait time.Duration, acquired bool) {
	attrs := []attribute.KeyValue{AttrObjectType.String(string(key.ObjectType))}
	m.lockWait.RecordDuration(ctx, wait, attrs...)
	if !acquired {
		m.lockTimeouts.Inc(ctx, attrs...)
	}
}

var _ numbering.Observer = (*NumberingMetrics)(nil)
