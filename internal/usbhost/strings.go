package usbhost

// languageDescriptorIndex is the string index that, by USB convention,
// carries the array of supported language IDs rather than a UTF-16 string.
const languageDescriptorIndex = 0

// configIConfigurationOffset is the byte offset of iConfiguration within the
// 9-byte configuration descriptor header.
const configIConfigurationOffset = 6

// stringFetcher retrieves a single string descriptor for (index, languageID).
// Implemented over the real hub ioctl in hub_windows.go and faked in tests.
type stringFetcher func(index uint8, languageID uint16) ([]uint16, error)

// collectStrings implements the String Descriptor Collector: it fetches the
// language-ID list once, then every referenced string index (device-level
// manufacturer/product/serial plus every iConfiguration/iInterface found by
// walking the configuration blob) once per language.
//
// If the language-ID fetch fails, strings are optional: collectStrings
// returns an empty set rather than an error. A malformed configuration
// descriptor is not fatal either: the indices gathered before the walk
// stopped are still collected, and the walk error is returned so the caller
// can log it as a per-device warning (it is never silently dropped).
func collectStrings(fetch stringFetcher, dev DeviceDescriptor, cfg ConfigDescBlob) ([]StringEntry, error) {
	langIDsRaw, err := fetch(languageDescriptorIndex, 0)
	if err != nil {
		return nil, nil
	}
	langIDs := langIDsRaw
	if len(langIDs) == 0 {
		return nil, nil
	}

	indices, walkErr := collectStringIndices(dev, cfg)

	var entries []StringEntry
	for _, idx := range indices {
		if idx == 0 {
			continue
		}
		for _, lang := range langIDs {
			payload, err := fetch(idx, lang)
			if err != nil {
				continue
			}
			entries = append(entries, StringEntry{Index: idx, LanguageID: lang, UTF16: payload})
		}
	}
	return entries, walkErr
}

// collectStringIndices gathers every string index referenced anywhere in
// the device descriptor and the configuration descriptor's TLV chain. If
// walkConfigDescriptor stops early on a malformed trailing descriptor, the
// indices found up to that point are still returned alongside the error.
func collectStringIndices(dev DeviceDescriptor, cfg ConfigDescBlob) ([]uint8, error) {
	var indices []uint8
	add := func(idx uint8) {
		if idx != 0 {
			indices = append(indices, idx)
		}
	}

	add(dev.ManufacturerIndex)
	add(dev.ProductIndex)
	add(dev.SerialIndex)

	raw := cfg.Bytes()
	if len(raw) >= configDescriptorHeaderLength {
		add(raw[configIConfigurationOffset])
	}

	err := walkConfigDescriptor(cfg, func(d rawDescriptor) bool {
		if d.Type != descTypeInterface {
			return true
		}
		if iface, ok := parseInterfaceDescriptor(d.Body); ok {
			add(iface.InterfaceStringIndex)
		}
		return true
	})

	return indices, err
}

// firstLanguagePayload returns the decoded text for the given string index
// using whichever language sorts first among the entries present, matching
// the topology walker's "first language wins" resolution rule.
func firstLanguagePayload(entries []StringEntry, index uint8) string {
	var best *StringEntry
	for i := range entries {
		if entries[i].Index != index {
			continue
		}
		if best == nil || entries[i].LanguageID < best.LanguageID {
			best = &entries[i]
		}
	}
	if best == nil {
		return ""
	}
	return best.Text()
}
