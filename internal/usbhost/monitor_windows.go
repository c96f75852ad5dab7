//go:build windows

package usbhost

import (
	"encoding/binary"
	"unicode/utf16"

	"github.com/kardianos/service"
	"golang.org/x/sys/windows"
)

// Monitor control device ioctls: an opaque collaborator behind a single
// control device, not a member of the standard USB hub ioctl family, so it
// gets its own FILE_DEVICE value rather than FILE_DEVICE_USB.
const (
	fileDeviceMonitor = 0x00008010

	monitorGetVersion     = 0x800
	monitorGetDevice      = 0x801
	monitorAddFilter      = 0x802
	monitorRemoveFilter   = 0x803
	monitorRunFilters     = 0x804
	monitorSetNotifyEvent = 0x805
)

var (
	ioctlMonitorGetVersion     = ctlCode(fileDeviceMonitor, monitorGetVersion, methodBuffered, fileAnyAccess)
	ioctlMonitorGetDevice      = ctlCode(fileDeviceMonitor, monitorGetDevice, methodBuffered, fileAnyAccess)
	ioctlMonitorAddFilter      = ctlCode(fileDeviceMonitor, monitorAddFilter, methodBuffered, fileAnyAccess)
	ioctlMonitorRemoveFilter   = ctlCode(fileDeviceMonitor, monitorRemoveFilter, methodBuffered, fileAnyAccess)
	ioctlMonitorRunFilters     = ctlCode(fileDeviceMonitor, monitorRunFilters, methodBuffered, fileAnyAccess)
	ioctlMonitorSetNotifyEvent = ctlCode(fileDeviceMonitor, monitorSetNotifyEvent, methodBuffered, fileAnyAccess)
)

// windowsMonitorClient implements monitorClient by opening the Monitor
// control device path from configuration and issuing its ioctls. If the
// open fails once, the Monitor service is started and the open is retried
// exactly once (spec 4 item 1: "auto-start retry-of-one").
type windowsMonitorClient struct {
	handle windows.Handle
}

func newWindowsMonitorClient(devicePath, serviceName string) (*windowsMonitorClient, error) {
	return newWindowsMonitorClientWithController(devicePath, serviceName, kardianosServiceController{})
}

func newWindowsMonitorClientWithController(devicePath, serviceName string, ctl ServiceController) (*windowsMonitorClient, error) {
	h, err := openDevicePath(devicePath)
	if err != nil {
		if startErr := ctl.Start(serviceName); startErr != nil {
			return nil, newError(KindNotFound, "monitor device unavailable and service start failed", startErr)
		}
		h, err = openDevicePath(devicePath)
		if err != nil {
			return nil, newError(KindNotFound, "monitor device unavailable after service start retry", err)
		}
	}
	return &windowsMonitorClient{handle: windows.Handle(h)}, nil
}

// kardianosServiceController starts an installed Windows service by name via
// the service control manager, reusing the same kardianos/service dependency
// cmd/usbhostd already carries for its own lifecycle.
type kardianosServiceController struct{}

func (kardianosServiceController) Start(name string) error {
	svc, err := service.New(noopServiceProgram{}, &service.Config{Name: name})
	if err != nil {
		return err
	}
	return svc.Start()
}

// noopServiceProgram is a placeholder service.Interface: kardianosServiceController
// only ever calls Service.Start (an SCM control operation), never Run, so the
// program's own Start/Stop are never invoked.
type noopServiceProgram struct{}

func (noopServiceProgram) Start(s service.Service) error { return nil }
func (noopServiceProgram) Stop(s service.Service) error  { return nil }

func (m *windowsMonitorClient) ioctl(ioctl uint32, in []byte, out []byte) (uint32, error) {
	var returned uint32
	var inPtr, outPtr *byte
	if len(in) > 0 {
		inPtr = &in[0]
	}
	if len(out) > 0 {
		outPtr = &out[0]
	}
	err := windows.DeviceIoControl(m.handle, ioctl, inPtr, uint32(len(in)), outPtr, uint32(len(out)), &returned, nil)
	return returned, err
}

func (m *windowsMonitorClient) GetVersion() (monitorVersion, error) {
	out := make([]byte, 8)
	if _, err := m.ioctl(ioctlMonitorGetVersion, nil, out); err != nil {
		return monitorVersion{}, newError(KindIO, "monitor GET_VERSION failed", err)
	}
	return monitorVersion{
		Major: binary.LittleEndian.Uint32(out[0:4]),
		Minor: binary.LittleEndian.Uint32(out[4:8]),
	}, nil
}

func (m *windowsMonitorClient) GetDevice(captureHandle uint64) (monitorDeviceInfo, error) {
	in := make([]byte, 8)
	binary.LittleEndian.PutUint64(in, captureHandle)
	out := make([]byte, 4)
	if _, err := m.ioctl(ioctlMonitorGetDevice, in, out); err != nil {
		return monitorDeviceInfo{}, newError(KindIO, "monitor GET_DEVICE failed", err)
	}
	state := DeviceState(binary.LittleEndian.Uint32(out))
	if !isValidDeviceState(state) {
		return monitorDeviceInfo{}, newError(KindMalformed, "monitor reported an unrecognized device state", nil)
	}
	return monitorDeviceInfo{State: state}, nil
}

func (m *windowsMonitorClient) AddFilter(f Filter) (FilterHandle, error) {
	in := encodeFilter(f)
	out := make([]byte, 8)
	if _, err := m.ioctl(ioctlMonitorAddFilter, in, out); err != nil {
		return 0, newError(KindIO, "monitor ADD_FILTER failed", err)
	}
	return FilterHandle(binary.LittleEndian.Uint64(out)), nil
}

func (m *windowsMonitorClient) RemoveFilter(h FilterHandle) error {
	in := make([]byte, 8)
	binary.LittleEndian.PutUint64(in, uint64(h))
	if _, err := m.ioctl(ioctlMonitorRemoveFilter, in, nil); err != nil {
		return newError(KindIO, "monitor REMOVE_FILTER failed", err)
	}
	return nil
}

func (m *windowsMonitorClient) RunFilters() error {
	if _, err := m.ioctl(ioctlMonitorRunFilters, nil, nil); err != nil {
		return newError(KindIO, "monitor RUN_FILTERS failed", err)
	}
	return nil
}

func (m *windowsMonitorClient) SetNotifyEvent(eventHandle uintptr) error {
	in := make([]byte, 8)
	binary.LittleEndian.PutUint64(in, uint64(eventHandle))
	if _, err := m.ioctl(ioctlMonitorSetNotifyEvent, in, nil); err != nil {
		return newError(KindIO, "monitor SET_NOTIFY_EVENT failed", err)
	}
	return nil
}

func (m *windowsMonitorClient) Close() {
	windows.CloseHandle(m.handle)
}

// encodeFilter serializes a Filter into the Monitor's ADD_FILTER wire
// format: each matchable field as (mode uint8, value) with Serial/Product/
// Manufacturer as length-prefixed UTF-16.
func encodeFilter(f Filter) []byte {
	buf := make([]byte, 0, 128)

	putString := func(s string, mode MatchMode) {
		buf = append(buf, byte(mode))
		u16 := utf16.Encode([]rune(s))
		lenBuf := make([]byte, 2)
		binary.LittleEndian.PutUint16(lenBuf, uint16(len(u16)))
		buf = append(buf, lenBuf...)
		for _, c := range u16 {
			b := make([]byte, 2)
			binary.LittleEndian.PutUint16(b, c)
			buf = append(buf, b...)
		}
	}

	putNumeric := func(v uint32, mode MatchMode) {
		buf = append(buf, byte(mode))
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		buf = append(buf, b...)
	}

	putString(f.Manufacturer, f.ManufacturerMode)
	putString(f.Product, f.ProductMode)
	putString(f.Serial, f.SerialMode)
	putNumeric(uint32(f.VendorID), f.VendorIDMode)
	putNumeric(uint32(f.ProductIDVal), f.ProductIDMode)
	putNumeric(uint32(f.Revision), f.RevisionMode)
	putNumeric(uint32(f.Class), f.ClassMode)
	rangeBuf := make([]byte, 8)
	binary.LittleEndian.PutUint32(rangeBuf[0:], f.RangeLow)
	binary.LittleEndian.PutUint32(rangeBuf[4:], f.RangeHigh)
	buf = append(buf, rangeBuf...)

	return buf
}
