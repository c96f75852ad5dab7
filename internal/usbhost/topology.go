package usbhost

import (
	"fmt"

	"github.com/vmbridge/usbhost/internal/logger"
	"github.com/vmbridge/usbhost/internal/serial"
)

// maxHostControllers bounds the controller-probe loop: real hardware rarely
// exposes more than a handful of host controller devices, and spec names
// this loop as "hcd_index in 0..10".
const maxHostControllers = 10

// walkTopology performs the recursive descent over controllers, root hubs,
// hubs, and ports described in the Topology Walker component: per-port
// failures are logged and swallowed, per-hub failures abort only that
// subtree, and per-controller failures abort only that controller.
func walkTopology(hc hubController, log logger.Interface) []*HostDevice {
	var devices []*HostDevice

	for i := 0; i < maxHostControllers; i++ {
		controller, ok, err := hc.OpenController(i)
		if err != nil || !ok {
			continue
		}

		rootHubName, err := hc.GetRootHubName(controller)
		if err != nil {
			log.Warn("failed to get root hub name", "controller", i, "error", err)
			hc.Close(controller)
			continue
		}

		devices = append(devices, walkHub(hc, log, rootHubName, "")...)
		hc.Close(controller)
	}

	return devices
}

// walkHub opens a hub by name and walks every port, prepending discovered
// leaf devices to the result in port order (the original's "prepend"
// ordering is preserved; sibling order is otherwise implementation-defined
// per the recursive-enumeration design note).
func walkHub(hc hubController, log logger.Interface, hubName string, parentLabel string) []*HostDevice {
	hub, err := hc.OpenHub(hubName)
	if err != nil {
		log.Warn("failed to open hub", "hub", hubName, "error", err)
		return nil
	}
	defer hc.Close(hub)

	numPorts, err := hc.GetNodeInformation(hub)
	if err != nil {
		log.Warn("failed to get node information", "hub", hubName, "error", err)
		return nil
	}

	var devices []*HostDevice
	for port := 1; port <= numPorts; port++ {
		found := walkPort(hc, log, hub, hubName, port)
		devices = append(found, devices...)
	}
	return devices
}

// walkPort classifies a single (hub, port) as empty, a nested hub, or a leaf
// device, recursing into nested hubs and aggregating leaf devices into a
// HostDevice.
func walkPort(hc hubController, log logger.Interface, hub Handle, hubName string, port int) []*HostDevice {
	conn, err := hc.GetConnectionInfo(hub, port)
	if err != nil {
		log.WarnRateLimited(fmt.Sprintf("port-info:%s:%d", hubName, port), 0, "failed to get connection info", "hub", hubName, "port", port, "error", err)
		return nil
	}
	if !conn.Connected {
		return nil
	}

	if conn.IsHub {
		childName, err := hc.GetConnectionName(hub, port)
		if err != nil {
			log.Warn("failed to get child hub name", "hub", hubName, "port", port, "error", err)
			return nil
		}
		return walkHub(hc, log, childName, hubName)
	}

	driverKey, err := hc.GetDriverKeyName(hub, port)
	if err != nil {
		log.Warn("failed to get driver key name", "hub", hubName, "port", port, "error", err)
		return nil
	}

	cfg, err := hc.GetConfigurationDescriptor(hub, port, 0)
	if err != nil {
		log.Warn("failed to get configuration descriptor", "hub", hubName, "port", port, "error", err)
		return nil
	}

	fetch := func(index uint8, languageID uint16) ([]uint16, error) {
		return hc.GetStringDescriptor(hub, port, index, languageID)
	}
	strings, err := collectStrings(fetch, conn.Device, cfg)
	if err != nil {
		log.Warn("malformed configuration descriptor while collecting strings", "hub", hubName, "port", port, "error", err)
	}

	return []*HostDevice{populateDevice(conn, port, driverKey, hubName, strings)}
}

// populateDevice builds a HostDevice from a connection's descriptor and
// resolved strings, matching the original's population rules: bBus is
// always 0 on Windows, initial state is UNUSED when the driver key is
// empty and USED_BY_HOST_CAPTURABLE otherwise (reconciliation may later
// promote it further), and manufacturer/product/serial resolve to the
// first language that has an entry for that string index.
func populateDevice(conn ConnectionInfoEx, port int, driverKey, hubName string, strings []StringEntry) *HostDevice {
	dev := &HostDevice{
		VendorID:     conn.Device.VendorID,
		ProductID:    conn.Device.ProductID,
		Release:      conn.Device.Release,
		USBSpecLevel: conn.Device.USBSpecLevel,
		Class:        conn.Device.Class,
		SubClass:     conn.Device.SubClass,
		Protocol:     conn.Device.Protocol,
		Bus:          0,
		Port:         port,
		HubDevicePath: hubName,
		DriverKey:    driverKey,
		State:        StateUnused,
		Speed:        SpeedUnknown,
	}
	if driverKey != "" {
		dev.State = StateUsedByHostCapturable
	}

	dev.Manufacturer = firstLanguagePayload(strings, conn.Device.ManufacturerIndex)
	dev.Product = firstLanguagePayload(strings, conn.Device.ProductIndex)
	dev.Serial = firstLanguagePayload(strings, conn.Device.SerialIndex)
	dev.SerialHash = serial.Hash64(dev.Serial)

	return dev
}
