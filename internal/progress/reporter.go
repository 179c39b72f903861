// Package progress implements the debounced, monotonic progress reporter:
// a small value scoped to one in-flight phase execution that owns the
// workspace/version context, emits phase markers, and runs a periodic
// keepalive ping while the phase is running.
package progress

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsfleet/workspace-worker/internal/account"
	"github.com/opsfleet/workspace-worker/internal/domain"
	"github.com/opsfleet/workspace-worker/internal/retry"
)

const (
	keepaliveInterval = 5 * time.Second
	updateBudget      = 5 * time.Second
)

// RetryRecorder is the optional metrics hook invoked once per retried
// control-plane update call.
type RetryRecorder interface {
	RecordRetry()
}

// Reporter reports progress for exactly one (workspace, phase) execution.
// It is not safe for concurrent use by more than one phase at a time for
// the same workspace, matching the "at most one job per workspace" gate
// upstream.
type Reporter struct {
	client    account.Client
	workspace string
	version   *domain.Version
	log       zerolog.Logger
	metrics   RetryRecorder

	last int // last rounded percent actually emitted, -1 until first report

	stopKeepalive context.CancelFunc
	keepaliveDone chan struct{}
}

// New builds a Reporter for one workspace. Call StartKeepalive at phase
// entry and StopKeepalive on every exit path (success, error, or
// cancellation). metrics may be nil.
func New(client account.Client, workspace string, version *domain.Version, log zerolog.Logger, metrics RetryRecorder) *Reporter {
	return &Reporter{
		client:    client,
		workspace: workspace,
		version:   version,
		log:       log,
		metrics:   metrics,
		last:      -1,
	}
}

// Marker emits a named phase marker (e.g. "<phase>-started", "<phase>-done")
// at the given progress, bypassing the monotonic-dedup check since markers
// are one-shot structural events rather than routine progress ticks.
func (r *Reporter) Marker(ctx context.Context, event domain.Event, pct int) {
	r.send(ctx, event, pct)
	if pct > r.last {
		r.last = pct
	}
}

// Report emits event=progress with the rounded percent, but only if it is
// above the last emitted value. This is the flood-prevention rule:
// repeated identical percentages are not re-sent, and a lower value is
// dropped so reported progress never goes backwards within the phase.
func (r *Reporter) Report(ctx context.Context, pct int) {
	if pct <= r.last {
		return
	}
	r.send(ctx, domain.EventProgress, pct)
	r.last = pct
}

func (r *Reporter) send(ctx context.Context, event domain.Event, pct int) {
	_, err := retry.UntilTimeout(ctx, updateBudget, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.client.UpdateWorkspaceInfo(ctx, r.workspace, event, r.version, pct, "")
	}, func(attempt int, err error) {
		r.log.Debug().Int("attempt", attempt).Err(err).Str("event", string(event)).Msg("retrying progress update")
		if r.metrics != nil {
			r.metrics.RecordRetry()
		}
	})
	if err != nil {
		r.log.Warn().Err(err).Str("event", string(event)).Msg("progress update failed, swallowing")
	}
}

// StartKeepalive launches a ticker that sends event=ping with the
// last-reported progress every 5s until StopKeepalive is called. It must be
// cleared on every exit path to avoid leaking goroutines/timers across
// shutdown.
func (r *Reporter) StartKeepalive(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.stopKeepalive = cancel
	r.keepaliveDone = make(chan struct{})

	go func() {
		defer close(r.keepaliveDone)
		t := time.NewTicker(keepaliveInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				pct := r.last
				if pct < 0 {
					pct = 0
				}
				r.send(ctx, domain.EventPing, pct)
			}
		}
	}()
}

// StopKeepalive cancels the keepalive ticker and waits for it to exit. Safe
// to call even if StartKeepalive was never called.
func (r *Reporter) StopKeepalive() {
	if r.stopKeepalive == nil {
		return
	}
	r.stopKeepalive()
	<-r.keepaliveDone
	r.stopKeepalive = nil
}
