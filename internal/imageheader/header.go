// Package imageheader recovers container format and pixel dimensions from
// the fixed-layout header fields of PNG, JPEG, GIF and WEBP payloads. Pixel
// data is never decoded.
package imageheader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Format identifies the detected container format.
type Format string

const (
	FormatPNG     Format = "png"
	FormatJPEG    Format = "jpeg"
	FormatGIF     Format = "gif"
	FormatWEBP    Format = "webp"
	FormatUnknown Format = "unknown"
)

var (
	// ErrEmptyInput is returned for a zero-length payload.
	ErrEmptyInput = errors.New("empty image payload")
	// ErrUnsupportedFormat is returned when no known signature matches.
	ErrUnsupportedFormat = errors.New("unsupported or invalid image header")
)

// HeaderError wraps a fatal parse failure with the operation that failed.
type HeaderError struct {
	Operation string
	Err       error
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("image header error in %s: %v", e.Operation, e.Err)
}

func (e *HeaderError) Unwrap() error {
	return e.Err
}

// Metadata describes a payload. Width and Height are nil when the header
// matched a signature but the dimension fields could not be read.
type Metadata struct {
	Format      Format `json:"format"`
	SizeBytes   int    `json:"size_bytes"`
	Width       *int   `json:"width"`
	Height      *int   `json:"height"`
	HeaderValid bool   `json:"header_valid"`
}

// Dimensions returns the pixel size and whether both values are known and positive.
func (m Metadata) Dimensions() (width, height int, ok bool) {
	if m.Width == nil || m.Height == nil {
		return 0, 0, false
	}
	width, height = *m.Width, *m.Height
	return width, height, width > 0 && height > 0
}

var (
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
	gif87a       = []byte("GIF87a")
	gif89a       = []byte("GIF89a")
	riffTag      = []byte("RIFF")
	webpTag      = []byte("WEBP")
	vp8xTag      = []byte("VP8X")
)

// DetectFormat reports the container format from the leading signature bytes.
func DetectFormat(data []byte) Format {
	switch {
	case bytes.HasPrefix(data, pngSignature):
		return FormatPNG
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return FormatJPEG
	case bytes.HasPrefix(data, gif87a), bytes.HasPrefix(data, gif89a):
		return FormatGIF
	case len(data) >= 12 && bytes.Equal(data[0:4], riffTag) && bytes.Equal(data[8:12], webpTag):
		return FormatWEBP
	}
	return FormatUnknown
}

// Parse detects the format of data and extracts its pixel dimensions.
// Only an empty payload or an unrecognized signature fail; malformed
// interior header data yields Metadata with nil dimensions.
func Parse(data []byte) (Metadata, error) {
	if len(data) == 0 {
		return Metadata{}, &HeaderError{Operation: "parse", Err: ErrEmptyInput}
	}

	format := DetectFormat(data)
	if format == FormatUnknown {
		return Metadata{}, &HeaderError{Operation: "detect", Err: ErrUnsupportedFormat}
	}

	meta := Metadata{
		Format:      format,
		SizeBytes:   len(data),
		HeaderValid: true,
	}

	var (
		w, h int
		ok   bool
	)
	switch format {
	case FormatPNG:
		w, h, ok = pngDimensions(data)
	case FormatJPEG:
		w, h, ok = jpegDimensions(data)
	case FormatGIF:
		w, h, ok = gifDimensions(data)
	case FormatWEBP:
		w, h, ok = webpDimensions(data)
	}
	if ok {
		meta.Width = &w
		meta.Height = &h
	}
	return meta, nil
}

// pngDimensions reads the IHDR width/height that follow the signature and chunk header.
func pngDimensions(data []byte) (int, int, bool) {
	if len(data) < 24 {
		return 0, 0, false
	}
	w := binary.BigEndian.Uint32(data[16:20])
	h := binary.BigEndian.Uint32(data[20:24])
	return int(w), int(h), true
}

// gifDimensions reads the logical screen descriptor.
func gifDimensions(data []byte) (int, int, bool) {
	if len(data) < 10 {
		return 0, 0, false
	}
	w := binary.LittleEndian.Uint16(data[6:8])
	h := binary.LittleEndian.Uint16(data[8:10])
	return int(w), int(h), true
}

// webpDimensions decodes the VP8X canvas size. Simple (VP8) and lossless
// (VP8L) payloads report no dimensions.
func webpDimensions(data []byte) (int, int, bool) {
	if len(data) < 30 || !bytes.Equal(data[12:16], vp8xTag) {
		return 0, 0, false
	}
	return 1 + uint24LE(data[24:27]), 1 + uint24LE(data[27:30]), true
}

func uint24LE(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}
