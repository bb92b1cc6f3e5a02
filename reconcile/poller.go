package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/bitfsorg/libvoicemail-go/logging"
)

// Poll defaults.
const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 2 * time.Minute
)

// Poller runs reconciliation passes on a fixed interval until its context is
// cancelled. A pass in flight at cancellation runs to completion but its
// result is not delivered.
type Poller struct {
	Reconciler *Reconciler
	Source     Source
	Interval   time.Duration
	Timeout    time.Duration

	// Deliver receives the result of every completed pass. May be nil.
	Deliver func(*Result)

	Log logging.Logger
}

// Run polls immediately and then every Interval. Failed passes are logged
// and retried on the next tick. It returns ctx.Err() when cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if p.Reconciler == nil || p.Source == nil {
		return errors.New("reconcile: poller needs a reconciler and a source")
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	log := logging.OrNop(p.Log)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		res, err := p.once(ctx)
		switch {
		case ctx.Err() != nil:
			log.Debug(ctx, "discarding pass result after cancellation")
			return ctx.Err()
		case err != nil:
			log.Warn(ctx, "reconciliation pass failed", "error", err)
		case p.Deliver != nil:
			p.Deliver(res)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// once runs a pass detached from ctx's cancellation, bounded by Timeout.
func (p *Poller) once(ctx context.Context) (*Result, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return p.Reconciler.Pass(passCtx, p.Source)
}
