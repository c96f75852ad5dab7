package usbhost

import (
	"sync"
	"time"
)

// WaitStatus is wait_change's result.
type WaitStatus int

const (
	WaitSuccess WaitStatus = iota
	WaitInterrupted
	WaitTimeout
)

// InfiniteTimeout is the sentinel timeout value that maps to the OS's
// infinite wait constant.
const InfiniteTimeout = -1

// Notifier delivers a debounced or Monitor-signaled change notification to
// a single wait_change-style blocking call, plus an interrupt_wait
// primitive to unblock it. Mode A (Monitor-signaled event) and Mode B (OS
// broadcast with debounce) are both Notifier implementations selected once
// at construction; callers see only this interface.
type Notifier interface {
	WaitChange(timeoutMillis int) (WaitStatus, error)
	HasPendingChange() bool
	InterruptWait() error
	Close()
}

// baseNotifier implements the event/interrupt wait pair shared by both
// modes over buffered channels: level-signaled until consumed, exactly
// like the auto-reset OS events the original design uses.
type baseNotifier struct {
	notifyCh    chan struct{}
	interruptCh chan struct{}
}

func newBaseNotifier(initialSignaled bool) *baseNotifier {
	b := &baseNotifier{
		notifyCh:    make(chan struct{}, 1),
		interruptCh: make(chan struct{}, 1),
	}
	if initialSignaled {
		b.notifyCh <- struct{}{}
	}
	return b
}

func (b *baseNotifier) signalNotify() {
	select {
	case b.notifyCh <- struct{}{}:
	default:
	}
}

func (b *baseNotifier) InterruptWait() error {
	select {
	case b.interruptCh <- struct{}{}:
	default:
	}
	return nil
}

func (b *baseNotifier) WaitChange(timeoutMillis int) (WaitStatus, error) {
	var timeout <-chan time.Time
	if timeoutMillis != InfiniteTimeout {
		timer := time.NewTimer(time.Duration(timeoutMillis) * time.Millisecond)
		defer timer.Stop()
		timeout = timer.C
	}

	// Signals already pending win over the timeout, and an interrupt wins
	// over a change notification.
	select {
	case <-b.interruptCh:
		return WaitInterrupted, nil
	default:
	}
	select {
	case <-b.notifyCh:
		return WaitSuccess, nil
	default:
	}

	select {
	case <-b.interruptCh:
		return WaitInterrupted, nil
	case <-b.notifyCh:
		return WaitSuccess, nil
	case <-timeout:
		return WaitTimeout, nil
	}
}

// HasPendingChange is a non-blocking peek, added back per the original's
// commented-out USBLibWaitChange(0): it is wait_change with a zero timeout,
// so like a real zero-timeout wait it consumes a pending notification.
func (b *baseNotifier) HasPendingChange() bool {
	status, _ := b.WaitChange(0)
	return status == WaitSuccess
}

// timerArmer arms a one-shot timer that calls fire after d, returning a
// cancel function. The real Windows implementation backs this with
// CreateTimerQueueTimer; tests and the default implementation use
// time.AfterFunc, which never fails to arm.
type timerArmer func(d time.Duration, fire func()) (cancel func(), err error)

func defaultArmer() timerArmer {
	return func(d time.Duration, fire func()) (func(), error) {
		t := time.AfterFunc(d, fire)
		return func() { t.Stop() }, nil
	}
}

// debouncer coalesces a burst of Notify calls into a single fire() call
// after quiet elapses with no further calls, mirroring Mode B's
// delete-then-rearm one-shot timer strategy. If arming the timer fails,
// fire is invoked synchronously as a best-effort fallback that may deliver
// an un-debounced event.
type debouncer struct {
	mu     sync.Mutex
	cancel func()
	quiet  time.Duration
	fire   func()
	arm    timerArmer
}

func newDebouncer(quiet time.Duration, fire func(), arm timerArmer) *debouncer {
	if arm == nil {
		arm = defaultArmer()
	}
	return &debouncer{quiet: quiet, fire: fire, arm: arm}
}

func (d *debouncer) Notify() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.cancel() // may be asynchronously pending; that is acceptable
	}

	cancel, err := d.arm(d.quiet, d.fire)
	if err != nil {
		d.cancel = nil
		d.fire()
		return
	}
	d.cancel = cancel
}

func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

// monitorNotifier is Mode A: the Monitor signals the notify event directly
// on every topology change it observes.
type monitorNotifier struct {
	*baseNotifier
}

func newMonitorNotifier(mon monitorClient) (*monitorNotifier, error) {
	b := newBaseNotifier(true) // initial-signaled true in Mode A
	if err := mon.SetNotifyEvent(0); err != nil {
		return nil, newError(KindIO, "failed to register notify event with monitor", err)
	}
	return &monitorNotifier{baseNotifier: b}, nil
}

func (n *monitorNotifier) Close() {}

// broadcastNotifier is Mode B: a message-pump thread (real implementation
// in notify_windows.go) calls OnBroadcast on every DEVNODES_CHANGED
// broadcast; bursts are coalesced by the debouncer before the notify event
// is ever signaled.
type broadcastNotifier struct {
	*baseNotifier
	deb *debouncer
}

func newBroadcastNotifier(quiet time.Duration, arm timerArmer) *broadcastNotifier {
	b := newBaseNotifier(false) // initial-signaled false in Mode B
	n := &broadcastNotifier{baseNotifier: b}
	n.deb = newDebouncer(quiet, b.signalNotify, arm)
	return n
}

// OnBroadcast re-arms the debounce timer on a device-change broadcast.
func (n *broadcastNotifier) OnBroadcast() {
	n.deb.Notify()
}

func (n *broadcastNotifier) Close() {
	n.deb.Stop()
}
