package usbhost

// capturedRecord is one device already bound to the capture driver
// interface class, as discovered by the Captured-Device Lister.
type capturedRecord struct {
	DevicePath string
	DriverKey  string
}

// captureLister enumerates devices bound to the capture driver via the OS
// device-information API. Real enumeration lives in captured_windows.go;
// tests supply a fakeCaptureLister instead.
type captureLister interface {
	ListCaptured() ([]capturedRecord, error)
}

// capturedDeviceProbe performs the version handshake and liveness query
// required before a candidate capture-class device interface is accepted
// into the captured list (spec 4.4: "both must succeed for the record to
// be accepted").
type capturedDeviceProbe func(devicePath string) (accepted bool, err error)

// fakeCaptureLister is an in-memory captureLister for reconciler tests.
type fakeCaptureLister struct {
	records []capturedRecord
	err     error
}

func (f *fakeCaptureLister) ListCaptured() ([]capturedRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}
