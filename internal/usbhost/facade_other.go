//go:build !windows

package usbhost

import (
	"github.com/vmbridge/usbhost/internal/config"
	"github.com/vmbridge/usbhost/internal/logger"
)

// This library talks to Windows-only kernel drivers (the hub stack and the
// Monitor control device); on every other OS every operation reports
// UNINITIALIZED, matching the usbproxy package's own non-Windows stub pattern.

var errUnsupported = newError(KindUninitialized, "usbhost is only supported on windows", nil)

func Init(cfg config.Config, log logger.Interface) error { return errUnsupported }

func Term() {}

func GetDevices() ([]*HostDevice, error) { return nil, errUnsupported }

func AddFilter(f Filter) (FilterHandle, error) { return 0, errUnsupported }

func RemoveFilter(h FilterHandle) error { return errUnsupported }

func RunFilters() error { return errUnsupported }

func WaitChange(timeoutMillis int) (WaitStatus, error) { return WaitTimeout, errUnsupported }

func InterruptWait() error { return errUnsupported }

func HasPendingChange() (bool, error) { return false, errUnsupported }
