package usbhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmbridge/usbhost/internal/logger"
)

type fakeOpener struct {
	handles map[string]uint64
	hiSpeed map[string]bool
	closed  []string
	err     error
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{handles: make(map[string]uint64), hiSpeed: make(map[string]bool)}
}

func (f *fakeOpener) Open(devicePath string) (uint64, bool, func(), error) {
	if f.err != nil {
		return 0, false, func() {}, f.err
	}
	h := f.handles[devicePath]
	return h, f.hiSpeed[devicePath], func() { f.closed = append(f.closed, devicePath) }, nil
}

func TestReconcileDeviceStatePromotesMatchedDevice(t *testing.T) {
	topology := []*HostDevice{
		{DriverKey: "DRIVER\\0001", Address: "topology-address", State: StateUsedByHostCapturable},
	}
	captured := []capturedRecord{
		{DevicePath: "\\\\.\\Capture0", DriverKey: "DRIVER\\0001"},
	}

	opener := newFakeOpener()
	opener.handles["\\\\.\\Capture0"] = 42
	opener.hiSpeed["\\\\.\\Capture0"] = true

	mon := newFakeMonitorClient()
	mon.devices[42] = monitorDeviceInfo{State: StateHeldByProxy}

	reconcileDeviceState(topology, captured, opener, mon, logger.Nop())

	dev := topology[0]
	assert.Equal(t, StateHeldByProxy, dev.State)
	assert.Equal(t, SpeedHigh, dev.Speed)
	assert.Equal(t, "\\\\.\\Capture0", dev.Address)
	assert.Equal(t, "topology-address", dev.AltAddress)
	assert.Equal(t, []string{"\\\\.\\Capture0"}, opener.closed)
}

func TestReconcileDeviceStateLeavesAddressWhenUsedByHost(t *testing.T) {
	topology := []*HostDevice{
		{DriverKey: "DRIVER\\0002", Address: "topology-address"},
	}
	captured := []capturedRecord{{DevicePath: "\\\\.\\Capture1", DriverKey: "DRIVER\\0002"}}

	opener := newFakeOpener()
	opener.handles["\\\\.\\Capture1"] = 7

	mon := newFakeMonitorClient()
	mon.devices[7] = monitorDeviceInfo{State: StateUsedByHost}

	reconcileDeviceState(topology, captured, opener, mon, logger.Nop())

	assert.Equal(t, "topology-address", topology[0].Address)
	assert.Empty(t, topology[0].AltAddress)
}

func TestReconcileDeviceStateNoMatchLeavesTopologyUntouched(t *testing.T) {
	topology := []*HostDevice{{DriverKey: "DRIVER\\OTHER", State: StateUnused}}
	captured := []capturedRecord{{DevicePath: "\\\\.\\Capture2", DriverKey: "DRIVER\\NOMATCH"}}

	opener := newFakeOpener()
	mon := newFakeMonitorClient()

	reconcileDeviceState(topology, captured, opener, mon, logger.Nop())

	assert.Equal(t, StateUnused, topology[0].State)
	assert.Empty(t, opener.closed)
}

func TestReconcileDeviceStateOpenFailureLeavesDeviceUntouched(t *testing.T) {
	topology := []*HostDevice{{DriverKey: "DRIVER\\0003", State: StateUsedByHostCapturable}}
	captured := []capturedRecord{{DevicePath: "\\\\.\\Capture3", DriverKey: "DRIVER\\0003"}}

	opener := newFakeOpener()
	opener.err = newError(KindIO, "simulated open failure", nil)
	mon := newFakeMonitorClient()

	reconcileDeviceState(topology, captured, opener, mon, logger.Nop())

	assert.Equal(t, StateUsedByHostCapturable, topology[0].State)
}

func TestIsValidDeviceState(t *testing.T) {
	assert.True(t, isValidDeviceState(StateUnused))
	assert.True(t, isValidDeviceState(StateUsedByGuest))
	assert.False(t, isValidDeviceState(DeviceState(99)))
}

func TestVersionCompatible(t *testing.T) {
	require.True(t, versionCompatible(monitorVersion{Major: expectedMonitorMajor, Minor: expectedMonitorMinor}))
	require.True(t, versionCompatible(monitorVersion{Major: expectedMonitorMajor, Minor: expectedMonitorMinor + 1}))
	require.False(t, versionCompatible(monitorVersion{Major: expectedMonitorMajor + 1, Minor: expectedMonitorMinor}))
}
