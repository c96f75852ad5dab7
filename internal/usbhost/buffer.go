package usbhost

import "encoding/binary"

// ioctlFunc issues one device-ioctl call: writes in, fills out, and reports
// how many bytes of out were actually written. Real implementations wrap
// DeviceIoControl; fakes used in tests hold canned responses.
type ioctlFunc func(in []byte, out []byte) (returned uint32, err error)

// twoCallProbe implements the universal two-call size-probe idiom named in
// the ioctl-helper design note: call once with a buffer of probeSize to
// learn the full required size via sizeOf, then call again with a buffer of
// that size. Every variable-length ioctl in this package routes through
// here instead of open-coding the pattern per call site.
func twoCallProbe(call ioctlFunc, in []byte, probeSize int, sizeOf func(probe []byte) (int, error)) ([]byte, error) {
	probe := make([]byte, probeSize)
	if _, err := call(in, probe); err != nil {
		return nil, newError(KindIO, "probe call failed", err)
	}

	full, err := sizeOf(probe)
	if err != nil {
		return nil, err
	}
	if full < probeSize {
		return nil, newError(KindMalformed, "reported size smaller than probe buffer", nil)
	}
	if full == probeSize {
		return probe, nil
	}

	buf := make([]byte, full)
	returned, err := call(in, buf)
	if err != nil {
		return nil, newError(KindIO, "fetch call failed", err)
	}
	if int(returned) < full {
		return nil, newError(KindMalformed, "short read on fetch call", nil)
	}
	return buf, nil
}

// driverKeyHeaderSize is the fixed header size used for the driverkey-name
// and connection-name ioctls: a ULONG ConnectionIndex + ULONG ActualLength preceding
// the variable-length UTF-16 payload.
const driverKeyHeaderSize = 8

// sizeOfActualLength reads the second ULONG of the standard
// USB_NODE_CONNECTION_DRIVERKEY_NAME-shaped header.
func sizeOfActualLength(probe []byte) (int, error) {
	if len(probe) < driverKeyHeaderSize {
		return 0, newError(KindMalformed, "header shorter than expected", nil)
	}
	return int(binary.LittleEndian.Uint32(probe[4:8])), nil
}

// utf16ToString decodes a NUL-terminated (or not) little-endian UTF-16
// buffer into a Go string.
func utf16ToString(u16 []uint16) string {
	// Trim a trailing NUL terminator if present.
	for len(u16) > 0 && u16[len(u16)-1] == 0 {
		u16 = u16[:len(u16)-1]
	}
	runes := make([]rune, 0, len(u16))
	for i := 0; i < len(u16); i++ {
		r := rune(u16[i])
		if r >= 0xD800 && r <= 0xDBFF && i+1 < len(u16) {
			low := rune(u16[i+1])
			if low >= 0xDC00 && low <= 0xDFFF {
				r = ((r - 0xD800) << 10) + (low - 0xDC00) + 0x10000
				i++
			}
		}
		runes = append(runes, r)
	}
	return string(runes)
}

func bytesToUTF16(b []byte) []uint16 {
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return u
}
