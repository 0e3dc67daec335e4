package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "packdim.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

// TestNewLoader tests loader creation.
func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil {
		t.Fatal("NewLoader() returned nil")
	}
	if loader.v == nil {
		t.Error("Loader viper instance is nil")
	}
	if NewIsolatedLoader().v == loader.v {
		t.Error("NewIsolatedLoader() shares the global viper instance")
	}
}

// TestLoadWithNoConfigFile tests loading with no config file present.
func TestLoadWithNoConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := NewIsolatedLoader().Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.LogLevel != infoLevel {
		t.Errorf("Expected default log level '%s', got %s", infoLevel, cfg.LogLevel)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Estimate.MMPerPixel != 0.2 {
		t.Errorf("Expected default mm_per_pixel 0.2, got %v", cfg.Estimate.MMPerPixel)
	}
}

// TestLoadFromWorkingDirectory tests discovery of packdim.yaml in the current directory.
func TestLoadFromWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.WriteFile(filepath.Join(dir, "packdim.yaml"), []byte("log_level: warn\n"), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	loader := NewIsolatedLoader()
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg.LogLevel != warnLevel {
		t.Errorf("Expected log level from file, got %s", cfg.LogLevel)
	}
	if !strings.HasSuffix(loader.GetConfigFileUsed(), "packdim.yaml") {
		t.Errorf("Unexpected config file used: %s", loader.GetConfigFileUsed())
	}
}

// TestLoadWithValidYAMLFile tests loading from a valid YAML file.
func TestLoadWithValidYAMLFile(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
verbose: true
estimate:
  mm_per_pixel: 0.35
  luma_threshold: 90
  geometry_fallback: false
  ocr_language: kor+eng
server:
  port: 9090
  upload_dir: /var/lib/packdim
output:
  format: yaml
`)

	cfg, err := NewIsolatedLoader().LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}

	if cfg.LogLevel != debugLevel {
		t.Errorf("Expected log level debug, got %s", cfg.LogLevel)
	}
	if !cfg.Verbose {
		t.Error("Expected verbose true")
	}
	if cfg.Estimate.MMPerPixel != 0.35 {
		t.Errorf("Expected mm_per_pixel 0.35, got %v", cfg.Estimate.MMPerPixel)
	}
	if cfg.Estimate.LumaThreshold != 90 {
		t.Errorf("Expected luma_threshold 90, got %d", cfg.Estimate.LumaThreshold)
	}
	if cfg.Estimate.GeometryFallback {
		t.Error("Expected geometry_fallback false")
	}
	if cfg.Estimate.OCRLanguage != "kor+eng" {
		t.Errorf("Expected ocr_language kor+eng, got %s", cfg.Estimate.OCRLanguage)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.UploadDir != "/var/lib/packdim" {
		t.Errorf("Expected upload_dir, got %s", cfg.Server.UploadDir)
	}
	if cfg.Output.Format != FormatYAML {
		t.Errorf("Expected format yaml, got %s", cfg.Output.Format)
	}
	// Unset keys keep their defaults
	if cfg.Estimate.MaskSize != 64 {
		t.Errorf("Expected default mask_size 64, got %d", cfg.Estimate.MaskSize)
	}
}

// TestLoadWithInvalidYAMLFile tests loading from a malformed file.
func TestLoadWithInvalidYAMLFile(t *testing.T) {
	path := writeConfig(t, "log_level: [unclosed\n")

	if _, err := NewIsolatedLoader().LoadWithFile(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

// TestLoadWithNonExistentFile tests loading from a missing file.
func TestLoadWithNonExistentFile(t *testing.T) {
	_, err := NewIsolatedLoader().LoadWithFile("/nonexistent/packdim.yaml")
	if err == nil {
		t.Fatal("Expected error for nonexistent file")
	}
	if !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("Unexpected error: %v", err)
	}
}

// TestLoadWithValidationFailure tests that invalid values are rejected.
func TestLoadWithValidationFailure(t *testing.T) {
	path := writeConfig(t, "estimate:\n  mm_per_pixel: -1\n")

	_, err := NewIsolatedLoader().LoadWithFile(path)
	if err == nil {
		t.Fatal("Expected validation error")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("Unexpected error: %v", err)
	}
}

// TestLoadWithoutValidation tests that validation can be skipped.
func TestLoadWithoutValidation(t *testing.T) {
	path := writeConfig(t, "log_level: loud\n")

	cfg, err := NewIsolatedLoader().LoadWithFileWithoutValidation(path)
	if err != nil {
		t.Fatalf("LoadWithFileWithoutValidation() unexpected error: %v", err)
	}
	if cfg.LogLevel != "loud" {
		t.Errorf("Expected raw log level, got %s", cfg.LogLevel)
	}
}

// TestLoadWithoutValidationUsesDefaults tests the search-path variant.
func TestLoadWithoutValidationUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := NewIsolatedLoader().LoadWithoutValidation()
	if err != nil {
		t.Fatalf("LoadWithoutValidation() unexpected error: %v", err)
	}
	if cfg.Output.Format != FormatText {
		t.Errorf("Expected default format, got %s", cfg.Output.Format)
	}
}

// TestEnvironmentVariableOverride tests PACKDIM_ environment variables.
func TestEnvironmentVariableOverride(t *testing.T) {
	t.Setenv("PACKDIM_LOG_LEVEL", "debug")
	t.Setenv("PACKDIM_SERVER_PORT", "9999")
	t.Setenv("PACKDIM_ESTIMATE_MM_PER_PIXEL", "0.5")
	t.Setenv("PACKDIM_ESTIMATE_GEOMETRY_FALLBACK", "false")

	path := writeConfig(t, "log_level: warn\nserver:\n  port: 7000\n")

	cfg, err := NewIsolatedLoader().LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}

	if cfg.LogLevel != debugLevel {
		t.Errorf("Expected env to win over file, got %s", cfg.LogLevel)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Expected port 9999 from env, got %d", cfg.Server.Port)
	}
	if cfg.Estimate.MMPerPixel != 0.5 {
		t.Errorf("Expected mm_per_pixel 0.5 from env, got %v", cfg.Estimate.MMPerPixel)
	}
	if cfg.Estimate.GeometryFallback {
		t.Error("Expected geometry_fallback false from env")
	}
}

// TestBindFlag tests that a set flag wins over file and defaults.
func TestBindFlag(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("port", 8080, "")
	if err := fs.Parse([]string{"--port", "6000"}); err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	loader := NewIsolatedLoader()
	if err := loader.BindFlag("server.port", fs.Lookup("port")); err != nil {
		t.Fatalf("BindFlag() error: %v", err)
	}

	cfg, err := loader.LoadWithFile(writeConfig(t, "server:\n  port: 7000\n"))
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Expected flag value 6000, got %d", cfg.Server.Port)
	}

	if err := loader.BindFlag("server.host", nil); err == nil {
		t.Error("Expected error for nil flag")
	}
}

// TestBindFlagSet tests prefixed binding of a whole flag set.
func TestBindFlagSet(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Float64("mm-per-pixel", 0.2, "")
	fs.Int("workers", 4, "")
	if err := fs.Parse([]string{"--mm-per-pixel=0.8"}); err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	loader := NewIsolatedLoader()
	if err := loader.BindFlagSet("estimate", fs); err != nil {
		t.Fatalf("BindFlagSet() error: %v", err)
	}

	cfg, err := loader.LoadWithFile(writeConfig(t, "estimate:\n  workers: 2\n"))
	if err != nil {
		t.Fatalf("LoadWithFile() unexpected error: %v", err)
	}
	if cfg.Estimate.MMPerPixel != 0.8 {
		t.Errorf("Expected mm_per_pixel 0.8 from flag, got %v", cfg.Estimate.MMPerPixel)
	}
	// An unset flag does not shadow the file
	if cfg.Estimate.Workers != 2 {
		t.Errorf("Expected workers 2 from file, got %d", cfg.Estimate.Workers)
	}
}

// TestGetSetConfigValues tests direct access to keys.
func TestGetSetConfigValues(t *testing.T) {
	loader := NewIsolatedLoader()
	loader.Set("output.file", "out.json")

	if got := loader.GetString("output.file"); got != "out.json" {
		t.Errorf("Expected out.json, got %s", got)
	}
	if got := loader.Get("output.file"); got != "out.json" {
		t.Errorf("Expected out.json, got %v", got)
	}
	if loader.GetViper() == nil {
		t.Error("GetViper() returned nil")
	}
}

// TestGetResolvedConfig tests that defaults appear in the resolved settings.
func TestGetResolvedConfig(t *testing.T) {
	loader := NewIsolatedLoader()
	loader.setDefaults()

	settings := loader.GetResolvedConfig()
	for _, key := range []string{"log_level", "estimate", "server", "output"} {
		if _, ok := settings[key]; !ok {
			t.Errorf("Resolved config missing %s", key)
		}
	}
}

// TestGenerateDefaultConfigFile tests generating and reloading a default config file.
func TestGenerateDefaultConfigFile(t *testing.T) {
	outputFile := filepath.Join(t.TempDir(), "default.yaml")

	if err := GenerateDefaultConfigFile(outputFile); err != nil {
		t.Fatalf("GenerateDefaultConfigFile() error: %v", err)
	}

	cfg, err := NewIsolatedLoader().LoadWithFile(outputFile)
	if err != nil {
		t.Fatalf("Failed to load generated config: %v", err)
	}
	want := DefaultConfig()
	if cfg.Estimate != want.Estimate {
		t.Errorf("Expected %+v, got %+v", want.Estimate, cfg.Estimate)
	}
	if cfg.Server != want.Server {
		t.Errorf("Expected %+v, got %+v", want.Server, cfg.Server)
	}
}

// TestGenerateDefaultConfigFileWithEmptyFilename tests the default filename.
func TestGenerateDefaultConfigFileWithEmptyFilename(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := GenerateDefaultConfigFile(""); err != nil {
		t.Fatalf("GenerateDefaultConfigFile(\"\") error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "packdim.yaml")); err != nil {
		t.Errorf("packdim.yaml was not generated: %v", err)
	}
}

// TestGetConfigSearchPaths tests the search path order.
func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	paths := GetConfigSearchPaths()
	if paths[0] != "." {
		t.Errorf("Expected current directory first, got %s", paths[0])
	}
	if paths[len(paths)-1] != "/etc/packdim" {
		t.Errorf("Expected /etc/packdim last, got %s", paths[len(paths)-1])
	}
	found := false
	for _, p := range paths {
		if p == filepath.Join("/xdg", "packdim") {
			found = true
		}
	}
	if !found {
		t.Errorf("XDG path missing from %v", paths)
	}
}

// TestPrintConfigInfo tests the debug output.
func TestPrintConfigInfo(t *testing.T) {
	var buf bytes.Buffer
	NewIsolatedLoader().PrintConfigInfo(&buf)

	if !strings.Contains(buf.String(), "Environment prefix: PACKDIM") {
		t.Errorf("Unexpected output: %s", buf.String())
	}
}
