//go:build windows

package usbhost

import (
	"encoding/binary"
	"unsafe"

	"golang.org/x/sys/windows"
)

// captureDeviceInterfaceGUID identifies the capture driver's device
// interface class, exposed by every device currently bound to it.
var captureDeviceInterfaceGUID = windows.GUID{
	Data1: 0x873fdf3e,
	Data2: 0x9209,
	Data3: 0x4d67,
	Data4: [8]byte{0x8c, 0x61, 0x6d, 0xe9, 0x2c, 0x8b, 0xa9, 0x20},
}

const (
	digcfPresent         = 0x00000002
	digcfDeviceInterface = 0x00000010
	spdrpDriver          = 0x00000009
)

// Capture driver ioctls, a separate FILE_DEVICE family from both the hub
// stack (FILE_DEVICE_USB) and the Monitor control device.
const (
	fileDeviceCapture = 0x00008011

	captureGetVersion    = 0x900
	captureIsOperational = 0x901
	captureGetDevice     = 0x902
)

var (
	ioctlCaptureGetVersion    = ctlCode(fileDeviceCapture, captureGetVersion, methodBuffered, fileAnyAccess)
	ioctlCaptureIsOperational = ctlCode(fileDeviceCapture, captureIsOperational, methodBuffered, fileAnyAccess)
	ioctlCaptureGetDevice     = ctlCode(fileDeviceCapture, captureGetDevice, methodBuffered, fileAnyAccess)
)

// expectedCaptureMajor/Minor are the capture driver protocol versions this
// probe was written against, following the same major-exact/minor-at-least
// rule as the Monitor's own version handshake (versionCompatible).
const (
	expectedCaptureMajor = 6
	expectedCaptureMinor = 0
)

var (
	setupapi                            = windows.NewLazySystemDLL("setupapi.dll")
	procSetupDiGetClassDevsW            = setupapi.NewProc("SetupDiGetClassDevsW")
	procSetupDiEnumDeviceInterfaces     = setupapi.NewProc("SetupDiEnumDeviceInterfaces")
	procSetupDiGetDeviceInterfaceDetailW = setupapi.NewProc("SetupDiGetDeviceInterfaceDetailW")
	procSetupDiGetDeviceRegistryPropertyW = setupapi.NewProc("SetupDiGetDeviceRegistryPropertyW")
	procSetupDiDestroyDeviceInfoList    = setupapi.NewProc("SetupDiDestroyDeviceInfoList")
)

type spDeviceInterfaceData struct {
	Size     uint32
	GUID     windows.GUID
	Flags    uint32
	Reserved uintptr
}

type spDevInfoData struct {
	Size      uint32
	ClassGUID windows.GUID
	DevInst   uint32
	Reserved  uintptr
}

// windowsCaptureLister implements captureLister via SetupDiGetClassDevs
// over the capture driver's device interface GUID, using the same
// SetupAPI calling convention as the rest of this codebase's device
// enumeration paths.
type windowsCaptureLister struct {
	probe capturedDeviceProbe
}

func newWindowsCaptureLister() (*windowsCaptureLister, error) {
	return &windowsCaptureLister{probe: probeCaptureDevice}, nil
}

func (l *windowsCaptureLister) ListCaptured() ([]capturedRecord, error) {
	devInfo, _, err := procSetupDiGetClassDevsW.Call(
		uintptr(unsafe.Pointer(&captureDeviceInterfaceGUID)),
		0, 0,
		digcfPresent|digcfDeviceInterface,
	)
	if devInfo == uintptr(windows.InvalidHandle) {
		return nil, newError(KindIO, "SetupDiGetClassDevs failed", err)
	}
	defer procSetupDiDestroyDeviceInfoList.Call(devInfo)

	var records []capturedRecord
	for index := uint32(0); ; index++ {
		var ifaceData spDeviceInterfaceData
		ifaceData.Size = uint32(unsafe.Sizeof(ifaceData))

		ret, _, _ := procSetupDiEnumDeviceInterfaces.Call(
			devInfo, 0,
			uintptr(unsafe.Pointer(&captureDeviceInterfaceGUID)),
			uintptr(index),
			uintptr(unsafe.Pointer(&ifaceData)),
		)
		if ret == 0 {
			break
		}

		var devInfoData spDevInfoData
		devInfoData.Size = uint32(unsafe.Sizeof(devInfoData))

		path := getDeviceInterfaceDetail(devInfo, &ifaceData, &devInfoData)
		if path == "" {
			continue
		}

		driverKey := getDriverKeyProperty(devInfo, &devInfoData)

		accepted, err := l.probe(path)
		if err != nil || !accepted {
			continue
		}

		records = append(records, capturedRecord{DevicePath: path, DriverKey: driverKey})
	}

	return records, nil
}

func getDeviceInterfaceDetail(devInfo uintptr, ifaceData *spDeviceInterfaceData, devInfoData *spDevInfoData) string {
	var requiredSize uint32
	procSetupDiGetDeviceInterfaceDetailW.Call(
		devInfo, uintptr(unsafe.Pointer(ifaceData)),
		0, 0, uintptr(unsafe.Pointer(&requiredSize)), 0,
	)
	if requiredSize == 0 {
		return ""
	}

	detail := make([]byte, requiredSize)
	if unsafe.Sizeof(uintptr(0)) == 8 {
		*(*uint32)(unsafe.Pointer(&detail[0])) = 8
	} else {
		*(*uint32)(unsafe.Pointer(&detail[0])) = 6
	}

	ret, _, _ := procSetupDiGetDeviceInterfaceDetailW.Call(
		devInfo, uintptr(unsafe.Pointer(ifaceData)),
		uintptr(unsafe.Pointer(&detail[0])), uintptr(requiredSize),
		0, uintptr(unsafe.Pointer(devInfoData)),
	)
	if ret == 0 {
		return ""
	}

	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(&detail[4])))
}

func getDriverKeyProperty(devInfo uintptr, devInfoData *spDevInfoData) string {
	buf := make([]uint16, 512)
	var requiredSize uint32
	ret, _, _ := procSetupDiGetDeviceRegistryPropertyW.Call(
		devInfo, uintptr(unsafe.Pointer(devInfoData)),
		spdrpDriver, 0,
		uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)*2),
		uintptr(unsafe.Pointer(&requiredSize)),
	)
	if ret == 0 {
		return ""
	}
	return windows.UTF16ToString(buf)
}

// probeCaptureDevice runs the version handshake and a liveness query
// against a candidate capture device path: both must succeed before it is
// accepted into the captured list (spec's acceptance rule for 4.4).
func probeCaptureDevice(devicePath string) (bool, error) {
	h, err := openDevicePath(devicePath)
	if err != nil {
		return false, nil
	}
	defer windows.CloseHandle(windows.Handle(h))

	version := make([]byte, 8)
	if _, err := rawDeviceIoControl(h, ioctlCaptureGetVersion, nil, version); err != nil {
		return false, nil
	}
	major := binary.LittleEndian.Uint32(version[0:4])
	minor := binary.LittleEndian.Uint32(version[4:8])
	if major != expectedCaptureMajor || minor < expectedCaptureMinor {
		return false, nil
	}

	operational := make([]byte, 4)
	if _, err := rawDeviceIoControl(h, ioctlCaptureIsOperational, nil, operational); err != nil {
		return false, nil
	}
	if binary.LittleEndian.Uint32(operational) == 0 {
		return false, nil
	}

	return true, nil
}

// windowsCaptureDeviceOpener implements captureDeviceOpener by opening the
// capture device path and issuing its GET_DEVICE ioctl; the per-device
// identifier passed on to the Monitor is the opaque handle decoded from that
// ioctl's response, valid only while the capture device stays open.
type windowsCaptureDeviceOpener struct{}

func newWindowsCaptureDeviceOpener() *windowsCaptureDeviceOpener {
	return &windowsCaptureDeviceOpener{}
}

// Open opens the capture device path and issues its GET_DEVICE ioctl, which
// yields the opaque per-device handle the Monitor expects plus the
// negotiated link speed (spec 4.5: "ioctl(capture, GET_DEVICE) # yields
// opaque device handle + hi-speed flag").
func (o *windowsCaptureDeviceOpener) Open(devicePath string) (uint64, bool, func(), error) {
	h, err := openDevicePath(devicePath)
	if err != nil {
		return 0, false, func() {}, newError(KindIO, "failed to open capture device", err)
	}
	close := func() { windows.CloseHandle(windows.Handle(h)) }

	out := make([]byte, 12) // opaque handle (8 bytes) + hi-speed flag (4 bytes)
	if _, err := rawDeviceIoControl(h, ioctlCaptureGetDevice, nil, out); err != nil {
		close()
		return 0, false, func() {}, newError(KindIO, "capture GET_DEVICE failed", err)
	}

	handle := binary.LittleEndian.Uint64(out[0:8])
	hiSpeed := binary.LittleEndian.Uint32(out[8:12]) != 0
	return handle, hiSpeed, close, nil
}
