package usbhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmbridge/usbhost/internal/logger"
)

func deviceDescriptorBytes(vendor, product uint16, mfgIdx, prodIdx, serIdx uint8) []byte {
	b := make([]byte, deviceDescriptorLength)
	b[0] = deviceDescriptorLength
	b[1] = descTypeDevice
	b[8] = byte(vendor)
	b[9] = byte(vendor >> 8)
	b[10] = byte(product)
	b[11] = byte(product >> 8)
	b[14] = mfgIdx
	b[15] = prodIdx
	b[16] = serIdx
	b[17] = 1
	return b
}

func minimalConfigBlob() ConfigDescBlob {
	b := make([]byte, configDescriptorHeaderLength)
	b[0] = configDescriptorHeaderLength
	b[1] = descTypeConfiguration
	b[2] = configDescriptorHeaderLength
	return NewConfigDescBlob(b)
}

func TestWalkTopologyFindsLeafDevice(t *testing.T) {
	hc := newFakeHubController()
	hc.addController("\\\\.\\ROOT0")
	hc.addHub("\\\\.\\ROOT0", []fakePort{
		{
			Connected:  true,
			DriverKey:  "DRIVER\\0001",
			Descriptor: mustParse(t, deviceDescriptorBytes(0x1234, 0x5678, 1, 2, 3)),
			Config:     minimalConfigBlob(),
			Strings: map[fakeStringKey][]uint16{
				{Index: 0, LanguageID: 0}:    {0x0409},
				{Index: 1, LanguageID: 0x409}: []uint16{'A', 'c', 'm', 'e'},
				{Index: 2, LanguageID: 0x409}: []uint16{'W', 'i', 'd', 'g', 'e', 't'},
				{Index: 3, LanguageID: 0x409}: []uint16{'S', 'N', '1'},
			},
		},
	})

	devices := walkTopology(hc, logger.Nop())
	require.Len(t, devices, 1)
	d := devices[0]
	assert.Equal(t, uint16(0x1234), d.VendorID)
	assert.Equal(t, uint16(0x5678), d.ProductID)
	assert.Equal(t, "Acme", d.Manufacturer)
	assert.Equal(t, "Widget", d.Product)
	assert.Equal(t, "SN1", d.Serial)
	assert.Equal(t, StateUsedByHostCapturable, d.State)
	assert.NotZero(t, d.SerialHash)
}

func TestWalkTopologyEmptyDriverKeyIsUnused(t *testing.T) {
	hc := newFakeHubController()
	hc.addController("\\\\.\\ROOT0")
	hc.addHub("\\\\.\\ROOT0", []fakePort{
		{
			Connected:  true,
			DriverKey:  "",
			Descriptor: mustParse(t, deviceDescriptorBytes(1, 2, 0, 0, 0)),
			Config:     minimalConfigBlob(),
		},
	})

	devices := walkTopology(hc, logger.Nop())
	require.Len(t, devices, 1)
	assert.Equal(t, StateUnused, devices[0].State)
}

func TestWalkTopologyRecursesIntoNestedHub(t *testing.T) {
	hc := newFakeHubController()
	hc.addController("\\\\.\\ROOT0")
	hc.addHub("\\\\.\\ROOT0", []fakePort{
		{Connected: true, IsHub: true, ChildHubName: "\\\\.\\CHILD"},
	})
	hc.addHub("\\\\.\\CHILD", []fakePort{
		{
			Connected:  true,
			DriverKey:  "DRIVER\\NESTED",
			Descriptor: mustParse(t, deviceDescriptorBytes(9, 9, 0, 0, 0)),
			Config:     minimalConfigBlob(),
		},
	})

	devices := walkTopology(hc, logger.Nop())
	require.Len(t, devices, 1)
	assert.Equal(t, "DRIVER\\NESTED", devices[0].DriverKey)
}

func TestWalkTopologySkipsEmptyPort(t *testing.T) {
	hc := newFakeHubController()
	hc.addController("\\\\.\\ROOT0")
	hc.addHub("\\\\.\\ROOT0", []fakePort{
		{Connected: false},
	})

	devices := walkTopology(hc, logger.Nop())
	assert.Empty(t, devices)
}

func TestWalkTopologyNoControllersReturnsEmpty(t *testing.T) {
	hc := newFakeHubController()
	devices := walkTopology(hc, logger.Nop())
	assert.Empty(t, devices)
}

func mustParse(t *testing.T, b []byte) DeviceDescriptor {
	t.Helper()
	d, err := ParseDeviceDescriptor(b)
	require.NoError(t, err)
	return d
}
