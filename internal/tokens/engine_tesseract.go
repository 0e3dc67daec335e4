//go:build tesseract

package tokens

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// DefaultEngine returns a Tesseract engine for the given language
// (e.g. "eng", "kor+eng"). An empty language uses Tesseract's default.
func DefaultEngine(language string) Engine {
	return &tesseractEngine{language: language}
}

type tesseractEngine struct {
	language string
}

func (e *tesseractEngine) Name() string { return "tesseract" }

func (e *tesseractEngine) Probe() (bool, string) {
	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if client.Version() == "" {
		return false, MessageEngineFallback
	}
	return true, MessageEngineAvailable
}

func (e *tesseractEngine) Recognize(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if e.language != "" {
		if err := client.SetLanguage(e.language); err != nil {
			return "", fmt.Errorf("set language %q: %w", e.language, err)
		}
	}
	if err := client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("load image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}
