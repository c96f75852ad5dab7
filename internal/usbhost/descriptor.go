package usbhost

import "encoding/binary"

// Descriptor type codes from the USB 2.0 specification, table 9-5.
const (
	descTypeDevice        = 0x01
	descTypeConfiguration = 0x02
	descTypeString        = 0x03
	descTypeInterface     = 0x04
	descTypeEndpoint      = 0x05
)

const (
	deviceDescriptorLength           = 18
	configDescriptorHeaderLength     = 9
	interfaceDescriptorLength        = 9
	interfaceDescriptorExtendedLength = 11 // standard 9 bytes + trailing wNumClasses
)

// DeviceDescriptor is the standard 18-byte USB device descriptor.
type DeviceDescriptor struct {
	USBSpecLevel      uint16 // bcdUSB
	Class             uint8
	SubClass          uint8
	Protocol          uint8
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	Release           uint16 // bcdDevice
	ManufacturerIndex uint8
	ProductIndex      uint8
	SerialIndex       uint8
	NumConfigurations uint8
}

// ParseDeviceDescriptor parses the standard 18-byte device descriptor.
func ParseDeviceDescriptor(b []byte) (DeviceDescriptor, error) {
	if len(b) < deviceDescriptorLength {
		return DeviceDescriptor{}, newError(KindMalformed, "device descriptor too short", nil)
	}
	if b[1] != descTypeDevice {
		return DeviceDescriptor{}, newError(KindMalformed, "unexpected descriptor type for device descriptor", nil)
	}
	return DeviceDescriptor{
		USBSpecLevel:      binary.LittleEndian.Uint16(b[2:4]),
		Class:             b[4],
		SubClass:          b[5],
		Protocol:          b[6],
		MaxPacketSize0:    b[7],
		VendorID:          binary.LittleEndian.Uint16(b[8:10]),
		ProductID:         binary.LittleEndian.Uint16(b[10:12]),
		Release:           binary.LittleEndian.Uint16(b[12:14]),
		ManufacturerIndex: b[14],
		ProductIndex:      b[15],
		SerialIndex:       b[16],
		NumConfigurations: b[17],
	}, nil
}

// ConfigDescBlob owns the full configuration-descriptor byte allocation and
// exposes a read-only view over it. Per the buffer-ownership design note,
// this replaces the original's embedded-header pointer-arithmetic layout:
// there is no "matching free" to call, the caller just lets the value go
// out of scope.
type ConfigDescBlob struct {
	raw []byte
}

// NewConfigDescBlob wraps raw configuration-descriptor bytes (header plus
// every subordinate interface/endpoint descriptor) as a ConfigDescBlob.
func NewConfigDescBlob(raw []byte) ConfigDescBlob { return ConfigDescBlob{raw: raw} }

// Bytes returns the full descriptor chain, header included.
func (c ConfigDescBlob) Bytes() []byte { return c.raw }

// TotalLength returns the header's wTotalLength field.
func (c ConfigDescBlob) TotalLength() (uint16, error) {
	if len(c.raw) < configDescriptorHeaderLength {
		return 0, newError(KindMalformed, "configuration descriptor header too short", nil)
	}
	return binary.LittleEndian.Uint16(c.raw[2:4]), nil
}

// configSizeFromHeader is the sizeOf callback passed to twoCallProbe for
// get_configuration_descriptor: the probe buffer is the 9-byte standard
// header, and the full size is wTotalLength, which already counts that
// header. wTotalLength < 9 is malformed.
func configSizeFromHeader(probe []byte) (int, error) {
	if len(probe) < configDescriptorHeaderLength {
		return 0, newError(KindMalformed, "configuration descriptor header too short", nil)
	}
	if probe[1] != descTypeConfiguration {
		return 0, newError(KindMalformed, "unexpected descriptor type for configuration header", nil)
	}
	wTotalLength := binary.LittleEndian.Uint16(probe[2:4])
	if wTotalLength < configDescriptorHeaderLength {
		return 0, newError(KindMalformed, "wTotalLength smaller than header", nil)
	}
	return int(wTotalLength), nil
}

// rawDescriptor is one TLV entry from a configuration descriptor's chain:
// bLength, bDescriptorType, and the bytes following the two-byte common
// header up to bLength.
type rawDescriptor struct {
	Type uint8
	Body []byte // excludes the 2-byte bLength/bDescriptorType header
}

// walkConfigDescriptor walks the TLV chain in a configuration descriptor
// using an explicit bounds-checked cursor (never a typed pointer increment,
// per the configuration-blob-walking design note). visit is called once per
// descriptor found after the 9-byte configuration header; returning false
// stops the walk early without it being treated as malformation.
func walkConfigDescriptor(blob ConfigDescBlob, visit func(rawDescriptor) bool) error {
	raw := blob.Bytes()
	if len(raw) < configDescriptorHeaderLength {
		return newError(KindMalformed, "configuration descriptor header too short", nil)
	}

	cur := configDescriptorHeaderLength
	end := len(raw)
	const commonHeaderLen = 2

	for cur+commonHeaderLen <= end {
		bLength := int(raw[cur])
		bType := raw[cur+1]

		if bLength < commonHeaderLen {
			return newError(KindMalformed, "descriptor bLength smaller than common header", nil)
		}
		if cur+bLength > end {
			return newError(KindMalformed, "descriptor bLength overruns configuration blob", nil)
		}

		if !visit(rawDescriptor{Type: bType, Body: raw[cur+commonHeaderLen : cur+bLength]}) {
			return nil
		}

		cur += bLength
	}

	return nil
}

// InterfaceDescriptor is a USB interface descriptor. NumClasses is non-zero
// only for the known 11-byte extended form (standard 9 bytes plus a
// trailing wNumClasses field); interfaces of other unknown lengths are
// skipped by the walker entirely and never produce an InterfaceDescriptor.
type InterfaceDescriptor struct {
	InterfaceNumber      uint8
	AlternateSetting     uint8
	NumEndpoints         uint8
	InterfaceClass       uint8
	InterfaceSubClass    uint8
	InterfaceProtocol    uint8
	InterfaceStringIndex uint8
	NumClasses           uint16
}

// parseInterfaceDescriptor accepts the standard 9-byte body (7 bytes after
// the common 2-byte header) and the known 11-byte extended form (9 bytes
// after the common header, with a trailing wNumClasses). body is the
// descriptor's Body as produced by walkConfigDescriptor, i.e. excluding the
// 2-byte bLength/bDescriptorType header.
func parseInterfaceDescriptor(body []byte) (InterfaceDescriptor, bool) {
	const minBody = interfaceDescriptorLength - 2        // 7
	const extendedBody = interfaceDescriptorExtendedLength - 2 // 9
	if len(body) != minBody && len(body) != extendedBody {
		return InterfaceDescriptor{}, false
	}
	d := InterfaceDescriptor{
		InterfaceNumber:      body[0],
		AlternateSetting:     body[1],
		NumEndpoints:         body[2],
		InterfaceClass:       body[3],
		InterfaceSubClass:    body[4],
		InterfaceProtocol:    body[5],
		InterfaceStringIndex: body[6],
	}
	if len(body) == extendedBody {
		d.NumClasses = binary.LittleEndian.Uint16(body[7:9])
	}
	return d, true
}
