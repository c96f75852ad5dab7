package usbhost

// monitorVersion is the Monitor's reported protocol version.
type monitorVersion struct {
	Major uint32
	Minor uint32
}

// expectedMonitorMajor/Minor are the protocol versions this library was
// written against; version_handshake requires an exact major match and an
// at-least minor match.
const (
	expectedMonitorMajor = 6
	expectedMonitorMinor = 0
)

func versionCompatible(v monitorVersion) bool {
	return v.Major == expectedMonitorMajor && v.Minor >= expectedMonitorMinor
}

// monitorDeviceInfo is the Monitor's GET_DEVICE response for a capture
// device handle: its current capture state.
type monitorDeviceInfo struct {
	State DeviceState
}

// ServiceController starts an OS-managed service by name. It backs the
// Monitor auto-start-on-init retry: if the control device is absent, its
// service is started and the open retried exactly once before failing
// NOT_FOUND.
type ServiceController interface {
	Start(name string) error
}

// fakeServiceController is an in-memory ServiceController for init tests.
type fakeServiceController struct {
	startErr error
	started  []string
}

func (f *fakeServiceController) Start(name string) error {
	f.started = append(f.started, name)
	return f.startErr
}

// monitorClient is the thin ioctl wrapper around the kernel Monitor control
// device, abstracted so the reconciler and facade can be tested without a
// real Monitor present.
type monitorClient interface {
	GetVersion() (monitorVersion, error)
	GetDevice(captureHandle uint64) (monitorDeviceInfo, error)
	AddFilter(f Filter) (FilterHandle, error)
	RemoveFilter(h FilterHandle) error
	RunFilters() error
	SetNotifyEvent(eventHandle uintptr) error
	Close()
}

// fakeMonitorClient is an in-memory monitorClient for reconciler, facade,
// and Notifier tests.
type fakeMonitorClient struct {
	version        monitorVersion
	devices        map[uint64]monitorDeviceInfo
	filters        map[FilterHandle]Filter
	nextHandle     FilterHandle
	runFiltersErr  error
	getDeviceErr   error
}

func newFakeMonitorClient() *fakeMonitorClient {
	return &fakeMonitorClient{
		version: monitorVersion{Major: expectedMonitorMajor, Minor: expectedMonitorMinor},
		devices: make(map[uint64]monitorDeviceInfo),
		filters: make(map[FilterHandle]Filter),
	}
}

func (m *fakeMonitorClient) GetVersion() (monitorVersion, error) { return m.version, nil }

func (m *fakeMonitorClient) GetDevice(captureHandle uint64) (monitorDeviceInfo, error) {
	if m.getDeviceErr != nil {
		return monitorDeviceInfo{}, m.getDeviceErr
	}
	info, ok := m.devices[captureHandle]
	if !ok {
		return monitorDeviceInfo{}, newError(KindIO, "unknown capture handle", nil)
	}
	return info, nil
}

func (m *fakeMonitorClient) AddFilter(f Filter) (FilterHandle, error) {
	m.nextHandle++
	m.filters[m.nextHandle] = f
	return m.nextHandle, nil
}

func (m *fakeMonitorClient) RemoveFilter(h FilterHandle) error {
	delete(m.filters, h)
	return nil
}

func (m *fakeMonitorClient) RunFilters() error { return m.runFiltersErr }

func (m *fakeMonitorClient) SetNotifyEvent(eventHandle uintptr) error { return nil }

func (m *fakeMonitorClient) Close() {}
