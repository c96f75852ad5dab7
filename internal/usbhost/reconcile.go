package usbhost

import "github.com/vmbridge/usbhost/internal/logger"

// captureDeviceOpener opens a capture-class device path and issues its
// GET_DEVICE ioctl, returning the opaque per-device handle the Monitor
// expects and whether the link negotiated high speed. The returned close
// function must not be called until after the Monitor has been queried:
// closing early invalidates the device-handle identifier.
type captureDeviceOpener interface {
	Open(devicePath string) (captureHandle uint64, hiSpeed bool, close func(), err error)
}

func isValidDeviceState(s DeviceState) bool {
	switch s {
	case StateUnused, StateUsedByHost, StateUsedByHostCapturable, StateHeldByProxy, StateUsedByGuest:
		return true
	default:
		return false
	}
}

// reconcileDeviceState implements the Device-State Reconciler: a nested
// join of the topology list against the captured list on driver registry
// key. For each match it opens the capture device, queries the Monitor for
// state while the handle is still open, and rewrites the topology record's
// state, speed, and address in place.
func reconcileDeviceState(topology []*HostDevice, captured []capturedRecord, opener captureDeviceOpener, mon monitorClient, log logger.Interface) {
	for _, cap := range captured {
		for _, dev := range topology {
			if dev.DriverKey != cap.DriverKey {
				continue
			}

			handle, hiSpeed, closeDevice, err := opener.Open(cap.DevicePath)
			if err != nil {
				log.Warn("failed to open capture device", "path", cap.DevicePath, "error", err)
				break
			}

			monInfo, err := mon.GetDevice(handle)
			if err != nil {
				log.Warn("failed to query monitor for device state", "path", cap.DevicePath, "error", err)
				closeDevice()
				break
			}

			if isValidDeviceState(monInfo.State) {
				dev.State = monInfo.State
			} else {
				log.Error("monitor reported an unrecognized device state", "path", cap.DevicePath, "state", int(monInfo.State))
			}

			if hiSpeed {
				dev.Speed = SpeedHigh
			} else {
				dev.Speed = SpeedFull
			}

			if dev.State != StateUsedByHost {
				dev.AltAddress = dev.Address
				dev.Address = cap.DevicePath
			}

			// The Monitor has already been queried; only now is it safe to
			// close the capture device handle.
			closeDevice()
			break
		}
	}
}
