package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
)

// SceneConfig describes a synthetic product photo: a dark object on a light
// background with an optional printed label.
type SceneConfig struct {
	Size       ImageSize
	Object     image.Rectangle
	Background color.Color
	Foreground color.Color
	Label      string
	LabelColor color.Color
	FontFace   font.Face
	Rotation   float64 // rotation in degrees
}

// DefaultSceneConfig returns a scene with a centered object covering a
// quarter of the frame.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		Size:       SmallSize,
		Object:     image.Rect(80, 60, 240, 180),
		Background: color.White,
		Foreground: color.Black,
		LabelColor: color.White,
		FontFace:   basicfont.Face7x13,
	}
}

// RenderScene draws the configured scene.
func RenderScene(config SceneConfig) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, config.Size.Width, config.Size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{config.Background}, image.Point{}, draw.Src)
	draw.Draw(img, config.Object.Intersect(img.Bounds()), &image.Uniform{config.Foreground}, image.Point{}, draw.Src)

	if config.Label != "" {
		face := config.FontFace
		if face == nil {
			face = basicfont.Face7x13
		}
		drawer := &font.Drawer{
			Dst:  img,
			Src:  &image.Uniform{config.LabelColor},
			Face: face,
		}
		// Center the label inside the object
		textWidth := font.MeasureString(face, config.Label).Ceil()
		textHeight := face.Metrics().Height.Ceil()
		x := config.Object.Min.X + (config.Object.Dx()-textWidth)/2
		y := config.Object.Min.Y + (config.Object.Dy()+textHeight)/2
		drawer.Dot = fixed.P(x, y)
		drawer.DrawString(config.Label)
	}

	if config.Rotation != 0 {
		return imaging.Rotate(img, config.Rotation, config.Background)
	}
	return img
}

// CreateTestImage creates a uniform image with the given dimensions and color.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// Encode serializes img in the named format (png, jpeg, gif or bmp).
func Encode(t *testing.T, img image.Image, format string) []byte {
	t.Helper()

	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg", "jpg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case "gif":
		err = gif.Encode(&buf, img, nil)
	case "bmp":
		err = bmp.Encode(&buf, img)
	default:
		t.Fatalf("unsupported test image format %q", format)
	}
	require.NoError(t, err, "Failed to encode %s image", format)
	return buf.Bytes()
}

// ScenePNG renders the default scene as PNG bytes.
func ScenePNG(t *testing.T) []byte {
	t.Helper()
	return Encode(t, RenderScene(DefaultSceneConfig()), "png")
}
