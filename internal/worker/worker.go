// Package worker implements the control loop: the handshake, the job
// poller, the concurrency gate, and dispatch into the lifecycle table.
// Phase execution itself lives in internal/phases; this package only owns
// fetching work and bounding concurrency around it.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsfleet/workspace-worker/internal/account"
	"github.com/opsfleet/workspace-worker/internal/domain"
	"github.com/opsfleet/workspace-worker/internal/lifecycle"
)

// Metrics is the subset of instrumentation the control loop updates
// directly; phase-level metrics are recorded by the dispatcher wrapper
// installed via Config.OnDispatch/OnOutcome.
type Metrics interface {
	SetRunningTasks(n int)
	RecordRetry()
}

// Config configures a Worker.
type Config struct {
	Account account.Client
	Table   lifecycle.Table
	Identity domain.Identity

	WaitTimeout time.Duration
	Metrics     Metrics
	Log         zerolog.Logger

	// OnDispatch/OnOutcome, if set, are called around each dispatched job
	// for phase-level metrics; the phase name is derived from ws.Mode.
	OnDispatch func(ws domain.WorkspaceInfo)
	OnOutcome  func(ws domain.WorkspaceInfo, duration time.Duration, ok bool)
}

// Worker owns the control loop: handshake once, then an unbounded loop of
// (poll, gate, dispatch) until cancellation.
type Worker struct {
	cfg    Config
	gate   *gate
	wakeup *wakeupSignal

	loopWG sync.WaitGroup

	inFlightMu sync.Mutex
	inFlight   map[string]context.CancelFunc
}

// New builds a Worker. Call Run to start the control loop; Run blocks until
// ctx is cancelled.
func New(cfg Config) *Worker {
	w := &Worker{cfg: cfg, wakeup: newWakeupSignal(), inFlight: make(map[string]context.CancelFunc)}
	w.gate = newGate(cfg.Identity.Limit, w.wakeup.fire)
	return w
}

// Run performs the handshake, then the poll/gate/dispatch loop, blocking
// until ctx is cancelled and any jobs still in flight when cancellation
// arrived have completed naturally; they are not interrupted.
func (w *Worker) Run(ctx context.Context) error {
	if err := handshake(ctx, w.cfg.Account, w.cfg.Identity, w.cfg.Log, w.cfg.Metrics); err != nil {
		return err
	}
	w.cfg.Log.Info().Msg("handshake accepted, entering poll loop")

	w.loopWG.Add(1)
	go func() {
		defer w.loopWG.Done()
		w.pollLoop(ctx)
	}()

	<-ctx.Done()
	w.loopWG.Wait()
	return nil
}

// RunningTasks reports the current in-flight job count.
func (w *Worker) RunningTasks() int { return w.gate.runningTasks() }

func (w *Worker) pollLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if !w.gate.acquire(ctx.Done()) {
			return // cancelled while waiting for a slot
		}

		ws, err := w.getPending(ctx)
		if err != nil {
			w.cfg.Log.Error().Err(err).Msg("getPendingWorkspace failed, treating as no work")
			w.gate.release()
			w.idleSleep(ctx)
			continue
		}
		if ws == nil {
			w.gate.release()
			w.idleSleep(ctx)
			continue
		}

		w.dispatch(ctx, *ws)
	}
}

// getPending is the job poller's single call to the control-plane. Errors
// are logged and treated as "nothing to do"; they must never terminate the
// loop.
func (w *Worker) getPending(ctx context.Context) (*domain.WorkspaceInfo, error) {
	return w.cfg.Account.GetPendingWorkspace(ctx, w.cfg.Identity.Region, w.cfg.Identity.Version, w.cfg.Identity.Operation)
}

// idleSleep waits waitTimeout, interruptibly: a fresh wakeup fires as soon
// as a slot frees up, so the poller does not wait out the full timeout
// when there is capacity to try again sooner.
func (w *Worker) idleSleep(ctx context.Context) {
	wake := w.wakeup.install()
	t := time.NewTimer(w.cfg.WaitTimeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	case <-wake:
	}
}

// dispatch runs the job asynchronously so the poller can fetch the next
// one immediately; the gate slot is released unconditionally on every exit
// path from the handler.
func (w *Worker) dispatch(ctx context.Context, ws domain.WorkspaceInfo) {
	// The job context keeps ctx's values but not its cancellation: a job
	// already in flight runs to completion after shutdown begins.
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	w.inFlightMu.Lock()
	w.inFlight[ws.Workspace] = cancel
	w.inFlightMu.Unlock()

	if w.cfg.Metrics != nil {
		w.cfg.Metrics.SetRunningTasks(w.gate.runningTasks())
	}
	if w.cfg.OnDispatch != nil {
		w.cfg.OnDispatch(ws)
	}

	// Counted in loopWG so Run waits for this job before returning.
	w.loopWG.Add(1)
	go func() {
		defer w.loopWG.Done()
		start := time.Now()
		ok := false
		defer func() {
			cancel()
			w.inFlightMu.Lock()
			delete(w.inFlight, ws.Workspace)
			w.inFlightMu.Unlock()

			w.gate.release()
			if w.cfg.Metrics != nil {
				w.cfg.Metrics.SetRunningTasks(w.gate.runningTasks())
			}
			if w.cfg.OnOutcome != nil {
				w.cfg.OnOutcome(ws, time.Since(start), ok)
			}
		}()

		// The dispatcher catch-all: a phase handler failing must never
		// reach back into the control loop. Phase handlers already
		// route failures to errorHandler internally; this recover is
		// the last line of defense against a genuinely unexpected panic
		// so one poisoned workspace can never halt the fleet.
		defer func() {
			if r := recover(); r != nil {
				w.cfg.Log.Error().Interface("panic", r).Str("workspace", ws.Workspace).Msg("phase handler panicked, contained")
				ok = false
			}
		}()

		ok = w.cfg.Table.Dispatch(jobCtx, ws)
	}()
}
