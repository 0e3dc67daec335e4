//go:build !tesseract

package tokens

import "context"

// DefaultEngine returns the engine compiled into this build. Without the
// "tesseract" build tag no recognition engine is available and every
// extraction uses the raw-text fallback.
//
// To enable Tesseract, rebuild with:
//
//	go build -tags tesseract
func DefaultEngine(language string) Engine {
	return unavailableEngine{}
}

type unavailableEngine struct{}

func (unavailableEngine) Name() string { return "none" }

func (unavailableEngine) Probe() (bool, string) {
	return false, MessageEngineFallback
}

func (unavailableEngine) Recognize(ctx context.Context, data []byte) (string, error) {
	return "", ErrEngineUnavailable
}
