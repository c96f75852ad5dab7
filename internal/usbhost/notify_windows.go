//go:build windows

package usbhost

import (
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsMonitorNotifier is the real Mode A notifier: it hands the Monitor
// a genuine OS event handle via SET_NOTIFY_EVENT and forwards every signal
// onto the shared baseNotifier machinery from notify.go.
type windowsMonitorNotifier struct {
	*monitorNotifier
	event windows.Handle
	stop  chan struct{}
}

func newWindowsMonitorNotifier(mon monitorClient) (*windowsMonitorNotifier, error) {
	ev, err := windows.CreateEvent(nil, 0, 0, nil)
	if err != nil {
		return nil, newError(KindIO, "failed to create notify event", err)
	}

	base := newBaseNotifier(true) // initial-signaled true in Mode A
	if err := mon.SetNotifyEvent(uintptr(ev)); err != nil {
		windows.CloseHandle(ev)
		return nil, newError(KindIO, "failed to register notify event with monitor", err)
	}

	n := &windowsMonitorNotifier{
		monitorNotifier: &monitorNotifier{baseNotifier: base},
		event:           ev,
		stop:            make(chan struct{}),
	}
	go n.pump()
	return n, nil
}

func (n *windowsMonitorNotifier) pump() {
	for {
		select {
		case <-n.stop:
			return
		default:
		}
		ret, err := windows.WaitForSingleObject(n.event, 500)
		if err != nil {
			return
		}
		if ret == windows.WAIT_OBJECT_0 {
			n.signalNotify()
		}
	}
}

func (n *windowsMonitorNotifier) Close() {
	close(n.stop)
	windows.CloseHandle(n.event)
}

// Mode B: a hidden message-only window receiving WM_DEVICECHANGE broadcasts,
// debounced through the shared broadcastNotifier from notify.go.

const (
	wmDeviceChange      = 0x0219
	dbtDevnodesChanged  = 0x0007
	hwndMessage         = ^uintptr(2) // HWND_MESSAGE, as an LPARAM-sized value
	cwUseDefault        = -2147483648
	wsExTopMost         = 0
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procRegisterClassExW    = user32.NewProc("RegisterClassExW")
	procCreateWindowExW     = user32.NewProc("CreateWindowExW")
	procDestroyWindow       = user32.NewProc("DestroyWindow")
	procDefWindowProcW      = user32.NewProc("DefWindowProcW")
	procGetMessageW         = user32.NewProc("GetMessageW")
	procTranslateMessage    = user32.NewProc("TranslateMessage")
	procDispatchMessageW    = user32.NewProc("DispatchMessageW")
	procPostMessageW        = user32.NewProc("PostMessageW")
)

const wmClose = 0x0010

type wndClassExW struct {
	size       uint32
	style      uint32
	wndProc    uintptr
	clsExtra   int32
	wndExtra   int32
	instance   windows.Handle
	icon       windows.Handle
	cursor     windows.Handle
	background windows.Handle
	menuName   *uint16
	className  *uint16
	iconSm     windows.Handle
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

type windowsBroadcastNotifier struct {
	*broadcastNotifier
	hwnd uintptr
	done chan struct{}
}

// newWindowsBroadcastNotifier creates the hidden message window on a
// dedicated locked OS thread (window handles are thread-affine) and starts
// its message pump. A synthetic broadcast is queued immediately after the
// window exists, the Mode B startup handshake: changes that happened before
// the window was registered would otherwise never be observed.
func newWindowsBroadcastNotifier(quiet time.Duration) (*windowsBroadcastNotifier, error) {
	n := &windowsBroadcastNotifier{
		broadcastNotifier: newBroadcastNotifier(quiet, nil),
		done:              make(chan struct{}),
	}

	ready := make(chan error, 1)
	go n.pump(ready)
	if err := <-ready; err != nil {
		return nil, err
	}

	n.OnBroadcast() // startup handshake
	return n, nil
}

func (n *windowsBroadcastNotifier) pump(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	className, _ := windows.UTF16PtrFromString("VMBridgeUSBHostNotifyWindow")

	var wc wndClassExW
	wc.size = uint32(unsafe.Sizeof(wc))
	wc.wndProc = windows.NewCallback(n.wndProc)
	wc.className = className

	if ret, _, _ := procRegisterClassExW.Call(uintptr(unsafe.Pointer(&wc))); ret == 0 {
		ready <- newError(KindIO, "RegisterClassEx failed", nil)
		return
	}

	hwnd, _, _ := procCreateWindowExW.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		0,
		0, 0, 0, 0, 0,
		hwndMessage,
		0, 0, 0,
	)
	if hwnd == 0 {
		ready <- newError(KindIO, "CreateWindowEx failed", nil)
		return
	}
	n.hwnd = hwnd
	ready <- nil

	var m msg
	for {
		r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), hwnd, 0, 0)
		if int32(r) <= 0 {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
	procDestroyWindow.Call(hwnd)
	close(n.done)
}

func (n *windowsBroadcastNotifier) wndProc(hwnd uintptr, message uint32, wParam, lParam uintptr) uintptr {
	if message == wmDeviceChange && wParam == dbtDevnodesChanged {
		n.OnBroadcast()
		return 1
	}
	if message == wmClose {
		procDestroyWindow.Call(hwnd)
		return 0
	}
	ret, _, _ := procDefWindowProcW.Call(hwnd, uintptr(message), wParam, lParam)
	return ret
}

func (n *windowsBroadcastNotifier) Close() {
	n.broadcastNotifier.Close()
	if n.hwnd != 0 {
		procPostMessageW.Call(n.hwnd, wmClose, 0, 0)
		<-n.done
	}
}
