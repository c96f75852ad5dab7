package usbhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeviceDescriptor(t *testing.T) {
	d, err := ParseDeviceDescriptor(deviceDescriptorBytes(0xCAFE, 0xBEEF, 1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, uint16(0xCAFE), d.VendorID)
	assert.Equal(t, uint16(0xBEEF), d.ProductID)
	assert.Equal(t, uint8(1), d.ManufacturerIndex)
}

func TestParseDeviceDescriptorRejectsShortBuffer(t *testing.T) {
	_, err := ParseDeviceDescriptor(make([]byte, 10))
	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, KindMalformed, kind)
}

func TestParseDeviceDescriptorRejectsWrongType(t *testing.T) {
	b := deviceDescriptorBytes(1, 2, 0, 0, 0)
	b[1] = descTypeConfiguration
	_, err := ParseDeviceDescriptor(b)
	require.Error(t, err)
}

func buildConfigWithInterfaces(ifaces [][]byte) ConfigDescBlob {
	total := configDescriptorHeaderLength
	for _, i := range ifaces {
		total += len(i)
	}
	buf := make([]byte, configDescriptorHeaderLength)
	buf[0] = configDescriptorHeaderLength
	buf[1] = descTypeConfiguration
	buf[2] = byte(total)
	buf[3] = byte(total >> 8)
	for _, i := range ifaces {
		buf = append(buf, i...)
	}
	return NewConfigDescBlob(buf)
}

func standardInterface(num uint8, strIdx uint8) []byte {
	return []byte{interfaceDescriptorLength, descTypeInterface, num, 0, 1, 0xFF, 0, 0, strIdx}
}

func extendedInterface(num uint8, strIdx uint8, numClasses uint16) []byte {
	b := []byte{interfaceDescriptorExtendedLength, descTypeInterface, num, 0, 1, 0xFF, 0, 0, strIdx, 0, 0}
	b[9] = byte(numClasses)
	b[10] = byte(numClasses >> 8)
	return b
}

func TestWalkConfigDescriptorVisitsStandardInterface(t *testing.T) {
	blob := buildConfigWithInterfaces([][]byte{standardInterface(0, 5)})

	var found []rawDescriptor
	err := walkConfigDescriptor(blob, func(d rawDescriptor) bool {
		found = append(found, d)
		return true
	})
	require.NoError(t, err)
	require.Len(t, found, 1)

	iface, ok := parseInterfaceDescriptor(found[0].Body)
	require.True(t, ok)
	assert.Equal(t, uint8(5), iface.InterfaceStringIndex)
	assert.Zero(t, iface.NumClasses)
}

func TestWalkConfigDescriptorVisitsExtendedInterface(t *testing.T) {
	blob := buildConfigWithInterfaces([][]byte{extendedInterface(1, 7, 3)})

	var found []rawDescriptor
	err := walkConfigDescriptor(blob, func(d rawDescriptor) bool {
		found = append(found, d)
		return true
	})
	require.NoError(t, err)
	require.Len(t, found, 1)

	iface, ok := parseInterfaceDescriptor(found[0].Body)
	require.True(t, ok)
	assert.Equal(t, uint16(3), iface.NumClasses)
}

func TestWalkConfigDescriptorRejectsOverrunLength(t *testing.T) {
	buf := make([]byte, configDescriptorHeaderLength+2)
	buf[0] = configDescriptorHeaderLength
	buf[1] = descTypeConfiguration
	buf[2] = byte(len(buf))
	buf[configDescriptorHeaderLength] = 0xFF // bLength far beyond the blob
	buf[configDescriptorHeaderLength+1] = descTypeInterface

	err := walkConfigDescriptor(NewConfigDescBlob(buf), func(rawDescriptor) bool { return true })
	require.Error(t, err)
	kind, _ := KindOf(err)
	assert.Equal(t, KindMalformed, kind)
}

func TestParseInterfaceDescriptorRejectsUnknownLength(t *testing.T) {
	_, ok := parseInterfaceDescriptor(make([]byte, 3))
	assert.False(t, ok)
}

func TestConfigSizeFromHeader(t *testing.T) {
	probe := make([]byte, configDescriptorHeaderLength)
	probe[1] = descTypeConfiguration
	probe[2] = 32

	n, err := configSizeFromHeader(probe)
	require.NoError(t, err)
	assert.Equal(t, 32, n)
}

func TestConfigSizeFromHeaderRejectsTooSmallTotalLength(t *testing.T) {
	probe := make([]byte, configDescriptorHeaderLength)
	probe[1] = descTypeConfiguration
	probe[2] = 3 // smaller than the 9-byte header itself

	_, err := configSizeFromHeader(probe)
	require.Error(t, err)
}
