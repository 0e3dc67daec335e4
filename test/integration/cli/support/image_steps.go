package support

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image/png"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/packdim/internal/testutil"
)

// labelPayload is a PNG header followed by label text. Without an OCR
// engine the text is read straight from the payload.
func labelPayload(width, height uint32, text string) []byte {
	data := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	data = binary.BigEndian.AppendUint32(data, width)
	data = binary.BigEndian.AppendUint32(data, height)
	return append(data, []byte("\n"+text)...)
}

func (testCtx *TestContext) aLabelImageWithText(name string, doc *godog.DocString) error {
	return testCtx.writeFile(name, labelPayload(300, 200, doc.Content))
}

func (testCtx *TestContext) anUnlabelledImage(name string, width, height int) error {
	return testCtx.writeFile(name, labelPayload(uint32(width), uint32(height), "")) //nolint:gosec // G115: small test sizes
}

func (testCtx *TestContext) aSceneImage(name string) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testutil.RenderScene(testutil.DefaultSceneConfig())); err != nil {
		return fmt.Errorf("failed to encode scene: %w", err)
	}
	return testCtx.writeFile(name, buf.Bytes())
}

func (testCtx *TestContext) aFileWithContent(name string, doc *godog.DocString) error {
	return testCtx.writeFile(name, []byte(doc.Content))
}

func (testCtx *TestContext) aBrokenImage(name string) error {
	return testCtx.writeFile(name, []byte("not an image"))
}

// RegisterImageSteps registers fixture steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a label image "([^"]*)" with text:$`, testCtx.aLabelImageWithText)
	sc.Step(`^an unlabelled image "([^"]*)" of (\d+)x(\d+) pixels$`, testCtx.anUnlabelledImage)
	sc.Step(`^a scene image "([^"]*)"$`, testCtx.aSceneImage)
	sc.Step(`^a file "([^"]*)" with content:$`, testCtx.aFileWithContent)
	sc.Step(`^a broken image "([^"]*)"$`, testCtx.aBrokenImage)
}
