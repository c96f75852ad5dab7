package usbhost

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseNotifierWaitChangeSuccess(t *testing.T) {
	b := newBaseNotifier(false)
	b.signalNotify()

	status, err := b.WaitChange(100)
	require.NoError(t, err)
	assert.Equal(t, WaitSuccess, status)
}

func TestBaseNotifierWaitChangeTimeout(t *testing.T) {
	b := newBaseNotifier(false)
	status, err := b.WaitChange(10)
	require.NoError(t, err)
	assert.Equal(t, WaitTimeout, status)
}

func TestBaseNotifierInterruptWaitWins(t *testing.T) {
	b := newBaseNotifier(false)
	b.signalNotify()
	require.NoError(t, b.InterruptWait())

	status, err := b.WaitChange(InfiniteTimeout)
	require.NoError(t, err)
	// Both channels are ready; a pending interrupt takes precedence.
	assert.Equal(t, WaitInterrupted, status)
}

func TestBaseNotifierInitialSignaled(t *testing.T) {
	b := newBaseNotifier(true)
	status, err := b.WaitChange(0)
	require.NoError(t, err)
	assert.Equal(t, WaitSuccess, status)

	// Consumed: a second immediate wait finds nothing pending.
	status, err = b.WaitChange(0)
	require.NoError(t, err)
	assert.Equal(t, WaitTimeout, status)
}

func TestHasPendingChange(t *testing.T) {
	b := newBaseNotifier(false)
	assert.False(t, b.HasPendingChange())

	b.signalNotify()
	assert.True(t, b.HasPendingChange())
	assert.False(t, b.HasPendingChange())
}

// fakeArmer lets tests control exactly when a debounce timer "fires",
// without a real clock dependency.
type fakeArmer struct {
	mu      sync.Mutex
	fire    func()
	failNow bool
}

func (a *fakeArmer) arm(_ time.Duration, fire func()) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failNow {
		return nil, errors.New("simulated arm failure")
	}
	a.fire = fire
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.fire = nil
	}, nil
}

func (a *fakeArmer) trigger() {
	a.mu.Lock()
	f := a.fire
	a.mu.Unlock()
	if f != nil {
		f()
	}
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	arm := &fakeArmer{}
	calls := 0
	d := newDebouncer(500*time.Millisecond, func() { calls++ }, arm.arm)

	for i := 0; i < 10; i++ {
		d.Notify()
	}
	assert.Equal(t, 0, calls)

	arm.trigger()
	assert.Equal(t, 1, calls)
}

func TestDebouncerFallbackFiresSynchronouslyOnArmFailure(t *testing.T) {
	arm := &fakeArmer{failNow: true}
	calls := 0
	d := newDebouncer(500*time.Millisecond, func() { calls++ }, arm.arm)

	d.Notify()
	assert.Equal(t, 1, calls)
}

func TestDebouncerStopCancelsPendingTimer(t *testing.T) {
	arm := &fakeArmer{}
	calls := 0
	d := newDebouncer(500*time.Millisecond, func() { calls++ }, arm.arm)

	d.Notify()
	d.Stop()
	arm.trigger()
	assert.Equal(t, 0, calls)
}

func TestBroadcastNotifierModeBStartsUnsignaled(t *testing.T) {
	n := newBroadcastNotifier(10*time.Millisecond, nil)
	defer n.Close()

	status, err := n.WaitChange(0)
	require.NoError(t, err)
	assert.Equal(t, WaitTimeout, status)
}

func TestMonitorNotifierModeAStartsSignaled(t *testing.T) {
	mon := newFakeMonitorClient()
	n, err := newMonitorNotifier(mon)
	require.NoError(t, err)
	defer n.Close()

	status, err := n.WaitChange(0)
	require.NoError(t, err)
	assert.Equal(t, WaitSuccess, status)
}
