//go:build windows

package usbhost

import (
	"sync"
	"time"

	"github.com/vmbridge/usbhost/internal/config"
	"github.com/vmbridge/usbhost/internal/logger"
)

type initState int

const (
	stateUninitialized initState = iota
	stateInitializing
	stateReady
)

// GlobalState is the process-wide singleton backing the package's public
// operations, mirroring the original library's single init/term pair: the
// library has exactly one instance regardless of how many callers use it.
type GlobalState struct {
	mu    sync.Mutex
	state initState
	log   logger.Interface

	hc       hubController
	lister   captureLister
	mon      monitorClient
	opener   captureDeviceOpener
	notifier Notifier

	cleanups []func()
}

var global = &GlobalState{}

// Init brings the library from UNINITIALIZED to ready. It is idempotent:
// calling it again while already initialized is a no-op. On any failure
// partway through, every resource already acquired is released in reverse
// order and the state reverts to UNINITIALIZED.
func Init(cfg config.Config, log logger.Interface) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.state == stateReady {
		return nil
	}
	if log == nil {
		log = logger.Nop()
	}
	global.state = stateInitializing

	var cleanups []func()
	unwind := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		global.state = stateUninitialized
	}

	hc, err := newWindowsHubController()
	if err != nil {
		unwind()
		return newError(KindIO, "failed to open host controller enumerator", err)
	}

	mon, err := newWindowsMonitorClient(cfg.MonitorDevice, cfg.MonitorServiceName)
	if err != nil {
		unwind()
		return newError(KindNotFound, "failed to connect to monitor device", err)
	}
	cleanups = append(cleanups, mon.Close)

	version, err := mon.GetVersion()
	if err != nil {
		unwind()
		return newError(KindIO, "failed to query monitor version", err)
	}
	if !versionCompatible(version) {
		unwind()
		return newError(KindVersionMismatch, "monitor protocol version is incompatible", nil)
	}

	lister, err := newWindowsCaptureLister()
	if err != nil {
		unwind()
		return newError(KindIO, "failed to open capture device enumerator", err)
	}

	opener := newWindowsCaptureDeviceOpener()

	var notifier Notifier
	if cfg.DisableOSNotify {
		notifier, err = newWindowsMonitorNotifier(mon)
	} else {
		notifier, err = newWindowsBroadcastNotifier(time.Duration(cfg.DebounceMillis) * time.Millisecond)
	}
	if err != nil {
		unwind()
		return err
	}
	cleanups = append(cleanups, notifier.Close)

	global.log = log
	global.hc = hc
	global.mon = mon
	global.lister = lister
	global.opener = opener
	global.notifier = notifier
	global.cleanups = cleanups
	global.state = stateReady
	return nil
}

// Term releases every resource acquired by Init in reverse order. It is
// idempotent: calling it while not initialized is a no-op.
func Term() {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.state != stateReady {
		return
	}
	for i := len(global.cleanups) - 1; i >= 0; i-- {
		global.cleanups[i]()
	}
	global.state = stateUninitialized
	global.hc = nil
	global.mon = nil
	global.lister = nil
	global.opener = nil
	global.notifier = nil
	global.cleanups = nil
	global.log = nil
}

func (g *GlobalState) snapshot() (hubController, captureLister, monitorClient, captureDeviceOpener, Notifier, logger.Interface, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != stateReady {
		return nil, nil, nil, nil, nil, nil, newError(KindUninitialized, "usbhost is not initialized", nil)
	}
	return g.hc, g.lister, g.mon, g.opener, g.notifier, g.log, nil
}

// GetDevices runs the Topology Walker, the Captured-Device Lister, and the
// Device-State Reconciler, returning the merged device list.
func GetDevices() ([]*HostDevice, error) {
	hc, lister, mon, opener, _, log, err := global.snapshot()
	if err != nil {
		return nil, err
	}

	devices := walkTopology(hc, log)

	captured, err := lister.ListCaptured()
	if err != nil {
		log.Warn("failed to list captured devices", "error", err)
		captured = nil
	}

	reconcileDeviceState(devices, captured, opener, mon, log)
	return devices, nil
}

// AddFilter installs a capture filter in the Monitor, logging the filter's
// identifying strings first.
func AddFilter(f Filter) (FilterHandle, error) {
	_, _, mon, _, _, log, err := global.snapshot()
	if err != nil {
		return 0, err
	}
	log.Info("adding filter", "manufacturer", f.Manufacturer, "product", f.Product, "serial", f.Serial)
	return mon.AddFilter(f)
}

// RemoveFilter removes a previously installed capture filter.
func RemoveFilter(h FilterHandle) error {
	_, _, mon, _, _, _, err := global.snapshot()
	if err != nil {
		return err
	}
	return mon.RemoveFilter(h)
}

// RunFilters re-evaluates every installed filter against the currently
// connected devices.
func RunFilters() error {
	_, _, mon, _, _, _, err := global.snapshot()
	if err != nil {
		return err
	}
	return mon.RunFilters()
}

// WaitChange blocks until a topology change is signaled, the wait is
// interrupted, or timeoutMillis elapses (InfiniteTimeout for no timeout).
func WaitChange(timeoutMillis int) (WaitStatus, error) {
	_, _, _, _, notifier, _, err := global.snapshot()
	if err != nil {
		return WaitTimeout, err
	}
	return notifier.WaitChange(timeoutMillis)
}

// InterruptWait unblocks a concurrent WaitChange call.
func InterruptWait() error {
	_, _, _, _, notifier, _, err := global.snapshot()
	if err != nil {
		return err
	}
	return notifier.InterruptWait()
}

// HasPendingChange is a non-blocking peek at whether a change notification
// is already pending.
func HasPendingChange() (bool, error) {
	_, _, _, _, notifier, _, err := global.snapshot()
	if err != nil {
		return false, err
	}
	return notifier.HasPendingChange(), nil
}
