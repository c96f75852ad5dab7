package usbhost

// DeviceState classifies a HostDevice's capture eligibility and current
// disposition relative to the Monitor.
type DeviceState int

const (
	StateUnused DeviceState = iota
	StateUsedByHost
	StateUsedByHostCapturable
	StateHeldByProxy
	StateUsedByGuest
)

func (s DeviceState) String() string {
	switch s {
	case StateUnused:
		return "UNUSED"
	case StateUsedByHost:
		return "USED_BY_HOST"
	case StateUsedByHostCapturable:
		return "USED_BY_HOST_CAPTURABLE"
	case StateHeldByProxy:
		return "HELD_BY_PROXY"
	case StateUsedByGuest:
		return "USED_BY_GUEST"
	default:
		return "UNKNOWN"
	}
}

// DeviceSpeed is the negotiated USB link speed. The reconciler only ever
// distinguishes HIGH from FULL; LOW and UNKNOWN are carried for completeness
// but never assigned by the reconciler itself.
type DeviceSpeed int

const (
	SpeedUnknown DeviceSpeed = iota
	SpeedLow
	SpeedFull
	SpeedHigh
)

func (s DeviceSpeed) String() string {
	switch s {
	case SpeedLow:
		return "LOW"
	case SpeedFull:
		return "FULL"
	case SpeedHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// HostDevice is one enumerated physical USB device, after topology walking
// and (if applicable) reconciliation against the captured-device list.
type HostDevice struct {
	// Identity
	VendorID      uint16
	ProductID     uint16
	Release       uint16 // bcdDevice
	USBSpecLevel  uint16 // bcdUSB
	Class         uint8
	SubClass      uint8
	Protocol      uint8

	// Location
	Bus            uint8 // opaque on Windows; always 0
	Port           int
	HubDevicePath  string
	DriverKey      string // join key between topology and captured views

	// Strings (optional; "" when absent)
	Manufacturer string
	Product      string
	Serial       string
	SerialHash   uint64

	// State
	State DeviceState
	Speed DeviceSpeed

	// Address: the device path. The topology walker does not fill it in,
	// so it is empty until reconciliation. Once reconciled to a captured
	// device (in any state other than USED_BY_HOST), Address is rewritten
	// to the capture-device path and AltAddress takes the previous Address
	// value, which is empty for devices that came from the walker.
	Address    string
	AltAddress string
}

// StringEntry is a transient (string-index, language-id, raw UTF-16) record
// produced during descriptor collection; not part of the public surface.
type StringEntry struct {
	Index      uint8
	LanguageID uint16
	UTF16      []uint16
}

// Text decodes the entry's raw UTF-16 payload to a Go string.
func (e StringEntry) Text() string {
	return utf16ToString(e.UTF16)
}

// MatchMode describes how a Filter field should be compared against a
// candidate device. The library never interprets these itself; they are
// forwarded opaquely to the Monitor.
type MatchMode int

const (
	MatchIgnore MatchMode = iota
	MatchPresent
	MatchAbsent
	MatchExact
	MatchExpression
	MatchNumericRange
)

// Filter is an opaque caller-supplied match policy, forwarded to the
// Monitor via add_filter. The library does not interpret field semantics.
type Filter struct {
	Manufacturer     string
	ManufacturerMode MatchMode
	Product          string
	ProductMode      MatchMode
	Serial           string
	SerialMode       MatchMode

	VendorID      uint16
	VendorIDMode  MatchMode
	ProductIDVal  uint16
	ProductIDMode MatchMode
	Revision      uint16
	RevisionMode  MatchMode
	Class         uint8
	ClassMode     MatchMode

	// RangeLow/RangeHigh apply when *Mode == MatchNumericRange, to whichever
	// numeric field they are paired with by the caller's convention.
	RangeLow  uint32
	RangeHigh uint32
}

// FilterHandle is an opaque identifier returned by add_filter and consumed
// by remove_filter. The library stores nothing beyond forwarding the value.
type FilterHandle uint64
