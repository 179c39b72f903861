package worker

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate_AcquireReleaseWithinLimit(t *testing.T) {
	g := newGate(2, nil)
	done := make(chan struct{})

	require.True(t, g.acquire(done))
	require.True(t, g.acquire(done))
	assert.Equal(t, 2, g.runningTasks())

	g.release()
	assert.Equal(t, 1, g.runningTasks())
}

func TestGate_SerializesAtLimitOne(t *testing.T) {
	g := newGate(1, nil)
	done := make(chan struct{})

	require.True(t, g.acquire(done))

	acquired := make(chan struct{})
	go func() {
		g.acquire(done)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while limit=1 is held")
	case <-time.After(50 * time.Millisecond):
	}

	g.release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire should unblock after release")
	}
}

// TestGate_HandoffPreservesRunningCount guards 0 <= runningTasks <= limit
// across a release that hands its slot directly to a parked waiter: the
// hand-off must not let running dip below the number of jobs actually in
// flight.
func TestGate_HandoffPreservesRunningCount(t *testing.T) {
	g := newGate(2, nil)
	done := make(chan struct{})

	require.True(t, g.acquire(done)) // A
	require.True(t, g.acquire(done)) // B
	assert.Equal(t, 2, g.runningTasks())

	acquiredC := make(chan struct{})
	go func() {
		g.acquire(done) // C, parked
		close(acquiredC)
	}()

	select {
	case <-acquiredC:
		t.Fatal("C should be parked while both slots are held")
	case <-time.After(50 * time.Millisecond):
	}

	g.release() // A finishes; hand-off to the parked C

	select {
	case <-acquiredC:
	case <-time.After(time.Second):
		t.Fatal("C should acquire once A releases")
	}

	// B and C are now in flight: running must still read 2, not 1 — a
	// third acquire here must block rather than being wrongly admitted.
	assert.Equal(t, 2, g.runningTasks())

	acquiredD := make(chan struct{})
	go func() {
		g.acquire(done) // D
		close(acquiredD)
	}()

	select {
	case <-acquiredD:
		t.Fatal("D must not be admitted while B and C are still in flight at limit=2")
	case <-time.After(50 * time.Millisecond):
	}

	g.release()
	<-acquiredD
}

func TestGate_ReleaseFiresWakeup(t *testing.T) {
	var fired sync.WaitGroup
	fired.Add(1)
	g := newGate(1, func() { fired.Done() })
	done := make(chan struct{})

	g.acquire(done)
	g.release()

	waitDone := make(chan struct{})
	go func() { fired.Wait(); close(waitDone) }()

	select {
	case <-waitDone:
	case <-time.After(time.Second):
		t.Fatal("release should have fired wakeup")
	}
}

func TestGate_AcquireAbortsOnCancellation(t *testing.T) {
	g := newGate(1, nil)
	done := make(chan struct{})
	require.True(t, g.acquire(done))

	cancelled := make(chan struct{})
	close(cancelled)

	assert.False(t, g.acquire(cancelled))
}

func TestWakeupSignal_FireThenReinstall(t *testing.T) {
	w := newWakeupSignal()
	ch1 := w.install()
	w.fire()

	select {
	case <-ch1:
	default:
		t.Fatal("fire should resolve the installed handle")
	}

	ch2 := w.install()
	select {
	case <-ch2:
		t.Fatal("a fresh install must not already be fired")
	default:
	}
}
