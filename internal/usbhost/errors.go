package usbhost

import "fmt"

// Kind is the library's error taxonomy. Kinds, not types: callers switch on
// Kind rather than on concrete Go error types.
type Kind int

const (
	// KindUninitialized: public call before Init or after Term.
	KindUninitialized Kind = iota
	// KindVersionMismatch: Monitor protocol version incompatible.
	KindVersionMismatch
	// KindIO: ioctl/syscall failure, including "not connected" during reconciliation.
	KindIO
	// KindMalformed: descriptor length inconsistency.
	KindMalformed
	// KindOOM: allocation failure.
	KindOOM
	// KindTimeout: wait_change exceeded its timeout.
	KindTimeout
	// KindInterrupted: wait_change was woken by interrupt_wait.
	KindInterrupted
	// KindNotFound: Monitor control device absent even after a service-start retry.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUninitialized:
		return "UNINITIALIZED"
	case KindVersionMismatch:
		return "VERSION_MISMATCH"
	case KindIO:
		return "IO"
	case KindMalformed:
		return "MALFORMED"
	case KindOOM:
		return "OOM"
	case KindTimeout:
		return "TIMEOUT"
	case KindInterrupted:
		return "INTERRUPTED"
	case KindNotFound:
		return "NOT_FOUND"
	default:
		return "UNKNOWN"
	}
}

// Error wraps a Kind with a message and an optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("usbhost: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("usbhost: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, &Error{Kind: KindIO}) style comparisons by kind,
// with an *Error as the sentinel; callers more commonly use KindOf below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, returning ok=false if err is nil or not
// a library error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if err == nil {
		return 0, false
	}
	if castErr, ok := err.(*Error); ok {
		e = castErr
	} else if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
		return KindOf(unwrapper.Unwrap())
	} else {
		return 0, false
	}
	return e.Kind, true
}
