package worker

import "sync"

// wakeupSignal is a one-shot rendezvous: install arms a fresh channel,
// fire closes it (idempotently), and after it fires the handle resets to a
// no-op default so a stray late fire after the sleep already resolved has
// no effect on the next sleep cycle.
type wakeupSignal struct {
	mu sync.Mutex
	ch chan struct{}
}

func newWakeupSignal() *wakeupSignal {
	return &wakeupSignal{ch: make(chan struct{})}
}

// install replaces the current handle with a fresh one and returns the
// channel to wait on.
func (w *wakeupSignal) install() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ch = make(chan struct{})
	return w.ch
}

// fire resolves the currently installed handle, if any. Firing twice
// between installs is a no-op on the second call.
func (w *wakeupSignal) fire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ch:
		// already fired
	default:
		close(w.ch)
	}
}
