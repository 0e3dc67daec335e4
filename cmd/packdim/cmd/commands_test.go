package cmd

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/packdim/internal/config"
	"github.com/MeKo-Tech/packdim/internal/estimate"
	"github.com/MeKo-Tech/packdim/internal/imageheader"
	"github.com/MeKo-Tech/packdim/internal/mapper"
	"github.com/MeKo-Tech/packdim/internal/segment"
	"github.com/MeKo-Tech/packdim/internal/testutil"
	"github.com/MeKo-Tech/packdim/internal/tokens"
)

const labelText = "\nW 12 mm\nH 8 mm\nD 4 mm"

// labelImage writes a PNG header followed by label text, which the fallback
// text source reads directly.
func labelImage(t *testing.T, dir, name, text string) string {
	t.Helper()
	data := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	data = binary.BigEndian.AppendUint32(data, 300)
	data = binary.BigEndian.AppendUint32(data, 200)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, append(data, []byte(text)...), 0o600))
	return path
}

func TestInspectCommand_JSON(t *testing.T) {
	path := testutil.WriteTempFile(t, "scene.png", testutil.ScenePNG(t))

	output, _, err := executeCommandAndCaptureOutput(t, "inspect", path, "--format", "json")
	require.NoError(t, err)

	var res InspectResult
	require.NoError(t, json.Unmarshal([]byte(output), &res))
	assert.Equal(t, path, res.File)
	assert.Equal(t, imageheader.FormatPNG, res.Image.Format)
	w, h, ok := res.Image.Dimensions()
	require.True(t, ok)
	assert.Equal(t, []int{320, 240}, []int{w, h})
	assert.Equal(t, segment.AlgorithmLumaThreshold, res.Segmentation.Algorithm)
	assert.Greater(t, res.Segmentation.ForegroundRatio, 0.0)
}

func TestInspectCommand_Text(t *testing.T) {
	path := testutil.WriteTempFile(t, "scene.png", testutil.ScenePNG(t))

	output, _, err := executeCommandAndCaptureOutput(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, output, "format: png")
	assert.Contains(t, output, "320x240 px")
	assert.Contains(t, output, "segmentation: luma-threshold")
}

func TestInspectCommand_Errors(t *testing.T) {
	_, _, err := executeCommandAndCaptureOutput(t, "inspect", "/non/existent/file.png")
	assert.Error(t, err)

	path := testutil.WriteTempFile(t, "notes.txt", []byte("hello"))
	_, _, err = executeCommandAndCaptureOutput(t, "inspect", path)
	assert.ErrorIs(t, err, imageheader.ErrUnsupportedFormat)

	_, _, err = executeCommandAndCaptureOutput(t, "inspect", path, "--format", "csv")
	assert.ErrorContains(t, err, "unsupported output format")
}

func TestExtractCommand(t *testing.T) {
	path := testutil.WriteTempFile(t, "label.txt", []byte("W: 48.8 H: 27.9mm D: 13 mm"))

	output, _, err := executeCommandAndCaptureOutput(t, "extract", path, "--format", "json")
	require.NoError(t, err)

	var res tokens.ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(output), &res))
	assert.False(t, res.EngineAvailable)
	assert.Len(t, res.Items, 3)

	output, _, err = executeCommandAndCaptureOutput(t, "extract", path)
	require.NoError(t, err)
	assert.Contains(t, output, "27.9mm\tvalue=27.9 unit=mm confidence=0.90")
}

func TestMapCommand_Text(t *testing.T) {
	output, _, err := executeCommandAndCaptureOutput(t, "map", "--text", "W 12 mm\nH 8 mm\nD 4 mm")
	require.NoError(t, err)
	assert.Equal(t, "width: 12 mm\nheight: 8 mm\ndepth: 4 mm", output)
}

func TestMapCommand_ItemsJSON(t *testing.T) {
	items := `[{"text":"width 12 mm","confidence":0.9},{"text":"height 3.4 cm","confidence":0.9}]`

	output, _, err := executeCommandAndCaptureOutput(t, "map", "--items", items, "--format", "json")
	require.NoError(t, err)

	var res mapper.Result
	require.NoError(t, json.Unmarshal([]byte(output), &res))
	assert.Equal(t, map[mapper.Axis]float64{mapper.Width: 12, mapper.Height: 34}, res.MappedDimensionsMM)
	assert.Contains(t, res.Warnings, "missing_required:depth")
}

func TestMapCommand_ItemsFile(t *testing.T) {
	path := testutil.WriteTempFile(t, "items.json", []byte(`[{"text":"D 5 mm","confidence":0.7}]`))

	output, _, err := executeCommandAndCaptureOutput(t, "map", "--items-file", path)
	require.NoError(t, err)
	assert.Contains(t, output, "depth: 5 mm")
	assert.Contains(t, output, "warning: missing_required:height,width")
}

func TestMapCommand_Errors(t *testing.T) {
	_, _, err := executeCommandAndCaptureOutput(t, "map")
	assert.ErrorContains(t, err, "provide --items")

	_, _, err = executeCommandAndCaptureOutput(t, "map", "--items", "{")
	assert.ErrorContains(t, err, "invalid items JSON")
}

func TestEstimateCommand_Single(t *testing.T) {
	path := labelImage(t, t.TempDir(), "box.png", labelText)

	output, _, err := executeCommandAndCaptureOutput(t, "estimate", path, "--format", "json")
	require.NoError(t, err)

	var rep estimate.Report
	require.NoError(t, json.Unmarshal([]byte(output), &rep))
	assert.Equal(t, path, rep.Source)
	assert.Equal(t, map[mapper.Axis]float64{mapper.Width: 12, mapper.Height: 8, mapper.Depth: 4}, rep.DimensionsMM())
}

func TestEstimateCommand_ItemsAndGeometry(t *testing.T) {
	path := labelImage(t, t.TempDir(), "box.png", "")

	output, _, err := executeCommandAndCaptureOutput(t, "estimate", path,
		"--items", `[{"text":"W 30 mm","confidence":0.9}]`, "--format", "csv")
	require.NoError(t, err)

	lines := strings.Split(output, "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[1], path+",width,30,text,"))
	assert.Contains(t, lines[2], ",height,")
	assert.Contains(t, lines[2], ",geometry,")

	output, _, err = executeCommandAndCaptureOutput(t, "estimate", path,
		"--items", `[{"text":"W 30 mm","confidence":0.9}]`, "--geometry-fallback=false", "--format", "csv")
	require.NoError(t, err)
	assert.Len(t, strings.Split(output, "\n"), 2)
}

func TestEstimateCommand_Directory(t *testing.T) {
	dir := t.TempDir()
	labelImage(t, dir, "a.png", labelText)
	labelImage(t, dir, "b.png", "\nW 1 cm\nH 2 cm\nD 3 cm")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.png"), []byte("broken"), 0o600))

	outFile := filepath.Join(t.TempDir(), "dims.json")
	_, errOut, err := executeCommandAndCaptureOutput(t, "estimate", dir, "--format", "json", "--output", outFile, "--stats")
	require.NoError(t, err)
	assert.Contains(t, errOut, "Processing Statistics:")

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)

	var doc struct {
		Images []struct {
			File   string           `json:"file"`
			Report *estimate.Report `json:"report"`
			Error  string           `json:"error"`
		} `json:"images"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Images, 3)
	assert.Equal(t, map[mapper.Axis]float64{mapper.Width: 10, mapper.Height: 20, mapper.Depth: 30}, doc.Images[1].Report.DimensionsMM())
	assert.Nil(t, doc.Images[2].Report)
	assert.NotEmpty(t, doc.Images[2].Error)
}

func TestEstimateCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	path := labelImage(t, dir, "a.png", labelText)

	_, _, err := executeCommandAndCaptureOutput(t, "estimate")
	assert.Error(t, err)

	_, _, err = executeCommandAndCaptureOutput(t, "estimate", path, "--format", "xml")
	assert.ErrorContains(t, err, "unsupported output format")

	_, _, err = executeCommandAndCaptureOutput(t, "estimate", dir, "--items", "[]")
	assert.ErrorContains(t, err, "single image")

	broken := testutil.WriteTempFile(t, "broken.png", []byte("broken"))
	_, _, err = executeCommandAndCaptureOutput(t, "estimate", broken)
	assert.ErrorIs(t, err, imageheader.ErrUnsupportedFormat)
}

func TestConfigCommands(t *testing.T) {
	output, _, err := executeCommandAndCaptureOutput(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "log_level: info")
	assert.Contains(t, output, "mm_per_pixel:")

	output, _, err = executeCommandAndCaptureOutput(t, "config", "paths")
	require.NoError(t, err)
	assert.Contains(t, output, "Environment prefix: PACKDIM")

	output, _, err = executeCommandAndCaptureOutput(t, "config", "validate")
	require.NoError(t, err)
	assert.Equal(t, "Configuration is valid", output)

	target := filepath.Join(t.TempDir(), "custom.yaml")
	output, _, err = executeCommandAndCaptureOutput(t, "config", "init", target)
	require.NoError(t, err)
	assert.Contains(t, output, target)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mm_per_pixel")
}

func TestServeSettings(t *testing.T) {
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	uploadDir := filepath.Join(t.TempDir(), "uploads")
	require.NoError(t, serveCmd.Flags().Set("port", "9090"))
	require.NoError(t, serveCmd.Flags().Set("upload-dir", uploadDir))
	require.NoError(t, serveCmd.Flags().Set("requests-per-minute", "30"))
	require.NoError(t, serveCmd.Flags().Set("max-data-per-day", "2"))
	require.NoError(t, serveCmd.Flags().Set("mm-per-pixel", "0.5"))

	cfg := config.DefaultConfig()
	sc := serverSettings(serveCmd, &cfg)
	assert.Equal(t, 9090, sc.Port)
	assert.Equal(t, cfg.Server.Host, sc.Host)
	assert.True(t, sc.RateLimitEnabled())

	serverConfig, err := buildServerConfig(serveCmd, &cfg, sc)
	require.NoError(t, err)
	assert.Equal(t, int64(cfg.Server.MaxUploadMB), serverConfig.MaxUploadMB)
	assert.Equal(t, 30, serverConfig.RateLimit.RequestsPerMinute)
	assert.Equal(t, int64(2<<20), serverConfig.RateLimit.MaxDataPerDay)
	assert.InDelta(t, 0.5, serverConfig.Estimate.MMPerPixel, 1e-9)
	assert.NotNil(t, serverConfig.Storage)
	assert.DirExists(t, uploadDir)
}

func TestEnvFileFlag(t *testing.T) {
	t.Setenv("PACKDIM_LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("PACKDIM_LOG_LEVEL"))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("PACKDIM_LOG_LEVEL=warn\n"), 0o600))

	output, _, err := executeCommandAndCaptureOutput(t, "--env-file", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, output, "log_level: warn")

	_, _, err = executeCommandAndCaptureOutput(t, "--env-file", filepath.Join(t.TempDir(), "none.env"), "config", "show")
	assert.ErrorContains(t, err, "error reading env file")
}
