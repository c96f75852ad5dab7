//go:build windows

package usbhost

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

// USB hub ioctls, built the same way usbioctl.h builds them: CTL_CODE over
// FILE_DEVICE_USB with METHOD_BUFFERED/FILE_ANY_ACCESS.
const (
	fileDeviceUSB   = 0x00000022
	methodBuffered  = 0
	fileAnyAccess   = 0

	usbGetNodeInformation                  = 258
	usbGetNodeConnectionInformationEx       = 274
	usbGetNodeConnectionName                = 261
	usbGetNodeConnectionDriverKeyName       = 265
	usbGetRootHubName                       = 260
	usbGetDescriptorFromNodeConnection      = 259
)

func ctlCode(deviceType, function, method, access uint32) uint32 {
	return (deviceType << 16) | (access << 14) | (function << 2) | method
}

var (
	ioctlGetNodeInformation             = ctlCode(fileDeviceUSB, usbGetNodeInformation, methodBuffered, fileAnyAccess)
	ioctlGetNodeConnectionInformationEx = ctlCode(fileDeviceUSB, usbGetNodeConnectionInformationEx, methodBuffered, fileAnyAccess)
	ioctlGetNodeConnectionName          = ctlCode(fileDeviceUSB, usbGetNodeConnectionName, methodBuffered, fileAnyAccess)
	ioctlGetNodeConnectionDriverKeyName = ctlCode(fileDeviceUSB, usbGetNodeConnectionDriverKeyName, methodBuffered, fileAnyAccess)
	ioctlGetRootHubName                 = ctlCode(fileDeviceUSB, usbGetRootHubName, methodBuffered, fileAnyAccess)
	ioctlGetDescriptorFromNodeConnection = ctlCode(fileDeviceUSB, usbGetDescriptorFromNodeConnection, methodBuffered, fileAnyAccess)
)

// windowsHubController implements hubController against the real hub
// driver stack via \\.\HCDn controller devices and the hub device paths
// returned from them.
type windowsHubController struct{}

func newWindowsHubController() (*windowsHubController, error) {
	return &windowsHubController{}, nil
}

func (w *windowsHubController) deviceIoControl(h Handle, ioctl uint32, in []byte, out []byte) (uint32, error) {
	return rawDeviceIoControl(h, ioctl, in, out)
}

// rawDeviceIoControl wraps windows.DeviceIoControl over a raw Handle, shared
// by every collaborator (hub controller, capture device probe) that issues a
// one-off ioctl without needing a full controller struct.
func rawDeviceIoControl(h Handle, ioctl uint32, in []byte, out []byte) (uint32, error) {
	var returned uint32
	var inPtr, outPtr *byte
	if len(in) > 0 {
		inPtr = &in[0]
	}
	if len(out) > 0 {
		outPtr = &out[0]
	}
	err := windows.DeviceIoControl(windows.Handle(h), ioctl, inPtr, uint32(len(in)), outPtr, uint32(len(out)), &returned, nil)
	return returned, err
}

func (w *windowsHubController) OpenController(index int) (Handle, bool, error) {
	path := fmt.Sprintf(`\\.\HCD%d`, index)
	h, err := openDevicePath(path)
	if err != nil {
		if errors.Is(err, windows.ERROR_FILE_NOT_FOUND) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return h, true, nil
}

func (w *windowsHubController) OpenHub(name string) (Handle, error) {
	return openDevicePath(name)
}

func (w *windowsHubController) Close(h Handle) {
	windows.CloseHandle(windows.Handle(h))
}

func openDevicePath(path string) (Handle, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}
	h, err := windows.CreateFile(p,
		windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		windows.OPEN_EXISTING,
		0,
		0)
	if err != nil {
		return 0, err
	}
	return Handle(h), nil
}

func (w *windowsHubController) GetRootHubName(controller Handle) (string, error) {
	call := func(in, out []byte) (uint32, error) { return w.deviceIoControl(controller, ioctlGetRootHubName, in, out) }
	probe := make([]byte, driverKeyHeaderSize)
	out, err := twoCallProbe(call, nil, len(probe), sizeOfActualLength)
	if err != nil {
		return "", err
	}
	return decodeNameBuffer(out), nil
}

func (w *windowsHubController) GetNodeInformation(hub Handle) (int, error) {
	out := make([]byte, 40)
	if _, err := w.deviceIoControl(hub, ioctlGetNodeInformation, out, out); err != nil {
		return 0, err
	}
	// USB_NODE_INFORMATION: NodeType(4) then a union whose hub branch leads
	// with USB_HUB_DESCRIPTOR.bNumberOfPorts at offset 6 (1-byte bLength
	// and bDescriptorType precede it inside the union).
	if len(out) < 7 {
		return 0, newError(KindMalformed, "node information response too short", nil)
	}
	return int(out[6]), nil
}

// USB_NODE_CONNECTION_INFORMATION_EX is a fixed 36-byte struct:
// ConnectionIndex(4) + DeviceDescriptor(18) + CurrentConfigurationValue(1)
// + Speed(1) + DeviceIsHub(1) + pad(1) + DeviceAddress(2) +
// NumberOfOpenPipes(4) + ConnectionStatus(4).
const (
	nodeConnectionInfoExSize        = 36
	nodeConnectionInfoExSpeedOffset = 4 + deviceDescriptorLength + 1
	nodeConnectionInfoExIsHubOffset = nodeConnectionInfoExSpeedOffset + 1
	nodeConnectionInfoExStatusOffset = 32
)

func (w *windowsHubController) GetConnectionInfo(hub Handle, port int) (ConnectionInfoEx, error) {
	in := make([]byte, 4)
	binary.LittleEndian.PutUint32(in, uint32(port))
	out := make([]byte, nodeConnectionInfoExSize)
	binary.LittleEndian.PutUint32(out, uint32(port))

	call := func(_, o []byte) (uint32, error) { return w.deviceIoControl(hub, ioctlGetNodeConnectionInformationEx, in, o) }
	_, err := call(in, out)
	if err != nil {
		return ConnectionInfoEx{}, err
	}

	dev, err := ParseDeviceDescriptor(out[4 : 4+deviceDescriptorLength])
	if err != nil {
		return ConnectionInfoEx{}, err
	}

	status := binary.LittleEndian.Uint32(out[nodeConnectionInfoExStatusOffset:])
	speed := out[nodeConnectionInfoExSpeedOffset]

	return ConnectionInfoEx{
		Connected: status == 1,
		IsHub:     out[nodeConnectionInfoExIsHubOffset] != 0,
		HighSpeed: speed == 2,
		Device:    dev,
	}, nil
}

func (w *windowsHubController) GetConnectionName(hub Handle, port int) (string, error) {
	in := make([]byte, 4)
	binary.LittleEndian.PutUint32(in, uint32(port))
	call := func(_, out []byte) (uint32, error) { return w.deviceIoControl(hub, ioctlGetNodeConnectionName, in, out) }
	probe := make([]byte, driverKeyHeaderSize+4)
	binary.LittleEndian.PutUint32(probe, uint32(port))
	out, err := twoCallProbe(call, in, len(probe), sizeOfActualLength)
	if err != nil {
		return "", err
	}
	return decodeNameBuffer(out), nil
}

func (w *windowsHubController) GetDriverKeyName(hub Handle, port int) (string, error) {
	in := make([]byte, 4)
	binary.LittleEndian.PutUint32(in, uint32(port))
	call := func(_, out []byte) (uint32, error) {
		return w.deviceIoControl(hub, ioctlGetNodeConnectionDriverKeyName, in, out)
	}
	probe := make([]byte, driverKeyHeaderSize+4)
	binary.LittleEndian.PutUint32(probe, uint32(port))
	out, err := twoCallProbe(call, in, len(probe), sizeOfActualLength)
	if err != nil {
		return "", err
	}
	return decodeNameBuffer(out), nil
}

func (w *windowsHubController) GetConfigurationDescriptor(hub Handle, port int, index int) (ConfigDescBlob, error) {
	header := make([]byte, 12)
	binary.LittleEndian.PutUint32(header, uint32(port))
	header[4] = descTypeConfiguration
	header[5] = byte(index)

	call := func(in, out []byte) (uint32, error) {
		return w.deviceIoControl(hub, ioctlGetDescriptorFromNodeConnection, in, out)
	}
	out, err := twoCallProbe(call, header, len(header)+configDescriptorHeaderLength, func(probe []byte) (int, error) {
		n, err := configSizeFromHeader(probe[len(header):])
		if err != nil {
			return 0, err
		}
		return len(header) + n, nil
	})
	if err != nil {
		return ConfigDescBlob{}, err
	}
	return NewConfigDescBlob(out[len(header):]), nil
}

func (w *windowsHubController) GetStringDescriptor(hub Handle, port int, index uint8, languageID uint16) ([]uint16, error) {
	header := make([]byte, 12)
	binary.LittleEndian.PutUint32(header, uint32(port))
	header[4] = descTypeString
	header[5] = index
	binary.LittleEndian.PutUint16(header[6:], languageID)

	call := func(in, out []byte) (uint32, error) {
		return w.deviceIoControl(hub, ioctlGetDescriptorFromNodeConnection, in, out)
	}
	out, err := twoCallProbe(call, header, len(header)+256, func(probe []byte) (int, error) {
		if len(probe) < len(header)+2 {
			return 0, newError(KindMalformed, "string descriptor probe too short", nil)
		}
		return len(header) + int(probe[len(header)]), nil
	})
	if err != nil {
		return nil, err
	}
	body := out[len(header):]
	if len(body) < 2 {
		return nil, newError(KindMalformed, "string descriptor body too short", nil)
	}
	return bytesToUTF16(body[2:]), nil
}

// decodeNameBuffer extracts the UTF-16 name string that follows the
// 8-byte ActualLength header common to the *_NAME ioctls.
func decodeNameBuffer(buf []byte) string {
	if len(buf) <= driverKeyHeaderSize {
		return ""
	}
	return utf16ToString(bytesToUTF16(buf[driverKeyHeaderSize:]))
}
