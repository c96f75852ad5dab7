package usbhost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectStringsFetchesEveryIndexPerLanguage(t *testing.T) {
	dev, err := ParseDeviceDescriptor(deviceDescriptorBytes(1, 2, 1, 2, 3))
	assertNoError(t, err)
	cfg := minimalConfigBlob()

	calls := 0
	fetch := func(index uint8, languageID uint16) ([]uint16, error) {
		calls++
		if index == languageDescriptorIndex {
			return []uint16{0x409}, nil
		}
		return []uint16{'x'}, nil
	}

	entries, err := collectStrings(fetch, dev, cfg)
	assertNoError(t, err)
	assert.Len(t, entries, 3) // manufacturer, product, serial indices, one language each
	assert.Equal(t, 4, calls) // 1 language fetch + 3 string fetches
}

func TestCollectStringsReturnsNilWhenLanguageFetchFails(t *testing.T) {
	dev, err := ParseDeviceDescriptor(deviceDescriptorBytes(1, 2, 1, 0, 0))
	assertNoError(t, err)
	cfg := minimalConfigBlob()

	fetch := func(index uint8, languageID uint16) ([]uint16, error) {
		return nil, newError(KindIO, "simulated failure", nil)
	}

	entries, err := collectStrings(fetch, dev, cfg)
	assertNoError(t, err)
	assert.Nil(t, entries)
}

func TestFirstLanguagePayloadPicksLowestLanguageID(t *testing.T) {
	entries := []StringEntry{
		{Index: 1, LanguageID: 0x411, UTF16: []uint16{'j', 'p'}},
		{Index: 1, LanguageID: 0x409, UTF16: []uint16{'e', 'n'}},
	}
	assert.Equal(t, "en", firstLanguagePayload(entries, 1))
}

func TestFirstLanguagePayloadMissingIndex(t *testing.T) {
	assert.Equal(t, "", firstLanguagePayload(nil, 5))
}

func TestCollectStringIndicesIncludesInterfaceStringIndex(t *testing.T) {
	dev, err := ParseDeviceDescriptor(deviceDescriptorBytes(1, 2, 0, 0, 0))
	assertNoError(t, err)
	cfg := buildConfigWithInterfaces([][]byte{standardInterface(0, 9)})

	indices, err := collectStringIndices(dev, cfg)
	assertNoError(t, err)
	assert.Contains(t, indices, uint8(9))
}

func TestCollectStringIndicesSurfacesWalkError(t *testing.T) {
	dev, err := ParseDeviceDescriptor(deviceDescriptorBytes(1, 2, 0, 0, 0))
	assertNoError(t, err)

	buf := make([]byte, configDescriptorHeaderLength+2)
	buf[0] = configDescriptorHeaderLength
	buf[1] = descTypeConfiguration
	buf[2] = byte(len(buf))
	buf[configDescriptorHeaderLength] = 0xFF // bLength far beyond the blob
	buf[configDescriptorHeaderLength+1] = descTypeInterface
	cfg := NewConfigDescBlob(buf)

	_, walkErr := collectStringIndices(dev, cfg)
	require.Error(t, walkErr)
	kind, _ := KindOf(walkErr)
	assert.Equal(t, KindMalformed, kind)
}

func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
