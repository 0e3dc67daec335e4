package tokens

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// MessageEngineAvailable is reported when text came from the recognition engine.
	MessageEngineAvailable = "OCR engine available."
	// MessageEngineFallback is reported when the payload was scanned as raw text.
	MessageEngineFallback = "OCR engine unavailable in current runtime; using lightweight parser fallback."
)

// ErrEngineUnavailable is returned by engines that cannot run in this build.
var ErrEngineUnavailable = errors.New("ocr engine unavailable")

// Engine is a text recognition backend.
type Engine interface {
	Name() string
	// Probe reports whether the engine can run, with a human-readable status.
	Probe() (available bool, message string)
	Recognize(ctx context.Context, data []byte) (string, error)
}

// ExtractionResult is the outcome of ExtractFromImage.
type ExtractionResult struct {
	Items           []Item `json:"items"`
	EngineAvailable bool   `json:"engine_available"`
	Message         string `json:"message"`
	Engine          string `json:"engine,omitempty"`
	// Text is the normalized text the items were extracted from.
	Text string `json:"-"`
}

// ExtractFromImage recognizes text in data with eng and extracts measurement
// tokens from it. It never fails: when the engine is nil, unavailable or
// errors out, data is decoded as lossy UTF-8 and scanned directly.
func ExtractFromImage(ctx context.Context, eng Engine, data []byte) ExtractionResult {
	res := ExtractionResult{Message: MessageEngineFallback}

	var text string
	recognized := false
	if eng != nil {
		res.Engine = eng.Name()
		available, message := eng.Probe()
		if available {
			t, err := eng.Recognize(ctx, data)
			if err == nil {
				text = t
				recognized = true
				res.EngineAvailable = true
				res.Message = message
			} else {
				res.Message = fmt.Sprintf("OCR engine failed (%v); using lightweight parser fallback.", err)
			}
		} else if message != "" {
			res.Message = message
		}
	}
	if !recognized {
		text = DecodeLossy(data)
	}

	res.Text = norm.NFKC.String(text)
	res.Items = Extract(res.Text)
	return res
}

// DecodeLossy interprets data as UTF-8, dropping invalid byte sequences.
func DecodeLossy(data []byte) string {
	return strings.ToValidUTF8(string(data), "")
}
