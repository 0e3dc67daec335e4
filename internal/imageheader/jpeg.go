package imageheader

import "encoding/binary"

const (
	markerPrefix = 0xFF
	markerSOI    = 0xD8
	markerEOI    = 0xD9
)

// isStartOfFrame reports whether marker is one of the SOF0-SOF15 markers,
// excluding DHT (0xC4), JPG (0xC8) and DAC (0xCC).
func isStartOfFrame(marker byte) bool {
	switch marker {
	case 0xC0, 0xC1, 0xC2, 0xC3,
		0xC5, 0xC6, 0xC7,
		0xC9, 0xCA, 0xCB,
		0xCD, 0xCE, 0xCF:
		return true
	}
	return false
}

// jpegDimensions walks the marker segments until the first start-of-frame.
// Segment lengths include the two length bytes themselves.
func jpegDimensions(data []byte) (int, int, bool) {
	n := len(data)
	if n <= 4 {
		return 0, 0, false
	}

	i := 2
	for i+9 < n {
		if data[i] != markerPrefix {
			i++
			continue
		}
		marker := data[i+1]
		if marker == markerPrefix {
			// fill byte
			i++
			continue
		}
		i += 2
		if marker == markerSOI || marker == markerEOI {
			continue
		}
		if i+2 > n {
			break
		}
		segLen := int(binary.BigEndian.Uint16(data[i : i+2]))
		if segLen < 2 || i+segLen > n {
			break
		}
		if isStartOfFrame(marker) {
			if i+7 > n {
				break
			}
			h := binary.BigEndian.Uint16(data[i+3 : i+5])
			w := binary.BigEndian.Uint16(data[i+5 : i+7])
			return int(w), int(h), true
		}
		i += segLen
	}
	return 0, 0, false
}
