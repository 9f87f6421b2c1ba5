package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Defaults.Model)
	require.NotNil(t, cfg.Defaults.Temperature)
	assert.Equal(t, 0.3, *cfg.Defaults.Temperature)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Stages["political"].Model)
	assert.Equal(t, "claude-3-5-haiku-20241022", cfg.Stages["sentiment"].Model)
	assert.Equal(t, []string{"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022"},
		cfg.Fallbacks["claude-sonnet-4-20250514"])
	assert.Empty(t, cfg.Fallbacks["claude-3-5-haiku-20241022"])
	assert.Equal(t, 10.0, cfg.Monitor.DowngradeThreshold)
	assert.NoError(t, Validate(cfg))
}

func TestDefaultIsFresh(t *testing.T) {
	a := Default()
	a.Stages["political"] = a.Stages["sentiment"]
	*a.Defaults.Temperature = 0.9

	b := Default()
	assert.Equal(t, "claude-sonnet-4-20250514", b.Stages["political"].Model)
	assert.Equal(t, 0.3, *b.Defaults.Temperature)
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_PIPELINE_MODEL", "claude-opus-4-20250514")

	content := `
defaults:
  temperature: 0.5
stages:
  network:
    model: ${TEST_PIPELINE_MODEL}
operations:
  validation:
    max_tokens: 1000
pricing:
  m1:
    input_rate: 0.000003
    output_rate: 0.000015
monitor:
  downgrade_metric: rolling_window
  window: 30m
  downgrade_threshold: 2.5
`
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	writeFile(t, path, content)

	cfg, err := Load(path)
	require.NoError(t, err)

	// fields not in the file keep their defaults
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Defaults.Model)
	assert.Equal(t, 0.5, *cfg.Defaults.Temperature)
	assert.Equal(t, "claude-opus-4-20250514", cfg.Stages["network"].Model)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Stages["political"].Model)
	assert.Equal(t, 1000, *cfg.Operations["validation"].MaxTokens)
	assert.Equal(t, 0.000003, cfg.Pricing["m1"].InputRate)
	assert.Contains(t, cfg.Pricing, "claude-3-5-sonnet-20241022")
	assert.Equal(t, "rolling_window", cfg.Monitor.DowngradeMetric)
	assert.Equal(t, 30*time.Minute, cfg.Monitor.Window)
	assert.Equal(t, 2.5, cfg.Monitor.DowngradeThreshold)
	assert.NoError(t, Validate(cfg))
}

func TestLoadTOML(t *testing.T) {
	content := `
[defaults]
model = "claude-3-5-haiku-20241022"
batch_size = 5

[stages.review]
model = "claude-sonnet-4-20250514"

[fallbacks]
"claude-3-5-haiku-20241022" = ["claude-3-haiku-20240307"]

[monitor]
downgrade_threshold = 4.0
`
	path := filepath.Join(t.TempDir(), "pipeline.toml")
	writeFile(t, path, content)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-haiku-20241022", cfg.Defaults.Model)
	assert.Equal(t, 5, *cfg.Defaults.BatchSize)
	assert.Equal(t, 0.3, *cfg.Defaults.Temperature)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Stages["review"].Model)
	assert.Equal(t, []string{"claude-3-haiku-20240307"}, cfg.Fallbacks["claude-3-5-haiku-20241022"])
	assert.Equal(t, 4.0, cfg.Monitor.DowngradeThreshold)
	assert.Equal(t, "daily_total", cfg.Monitor.DowngradeMetric)
}

func TestLoadStageLayersOverBuiltin(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "pipeline.yaml")
	writeFile(t, yamlPath, "stages:\n  political:\n    temperature: 0.1\n")
	cfg, err := Load(yamlPath)
	require.NoError(t, err)
	political := cfg.Stages["political"]
	assert.Equal(t, "claude-sonnet-4-20250514", political.Model)
	require.NotNil(t, political.Temperature)
	assert.Equal(t, 0.1, *political.Temperature)

	tomlPath := filepath.Join(dir, "pipeline.toml")
	writeFile(t, tomlPath, "[stages.sentiment]\nmax_tokens = 500\n")
	cfg, err = Load(tomlPath)
	require.NoError(t, err)
	sentiment := cfg.Stages["sentiment"]
	assert.Equal(t, "claude-3-5-haiku-20241022", sentiment.Model)
	require.NotNil(t, sentiment.BatchSize)
	assert.Equal(t, 20, *sentiment.BatchSize)
	require.NotNil(t, sentiment.MaxTokens)
	assert.Equal(t, 500, *sentiment.MaxTokens)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Stages["political"].Model)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/pipeline.yaml")
	assert.Error(t, err)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	writeFile(t, path, "defaults: [unclosed")
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestLocate(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	root := t.TempDir()

	_, err := Locate(root)
	assert.True(t, errors.Is(err, ErrNoConfigFile))

	writeFile(t, filepath.Join(root, "config", "pipeline.toml"), "")
	p, err := Locate(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "config", "pipeline.toml"), p)

	writeFile(t, filepath.Join(root, "config", "pipeline.yaml"), "")
	p, err = Locate(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "config", "pipeline.yaml"), p)

	other := filepath.Join(t.TempDir(), "custom.yaml")
	writeFile(t, other, "")
	t.Setenv(EnvConfigPath, other)
	p, err = Locate(root)
	require.NoError(t, err)
	assert.Equal(t, other, p)
}

func TestLoadForRootDotEnv(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	root := t.TempDir()
	writeFile(t, filepath.Join(root, ".env"), "PIPE_TEST_REVIEW_MODEL=claude-3-haiku-20240307\n")
	writeFile(t, filepath.Join(root, "config", "pipeline.yaml"),
		"stages:\n  review:\n    model: ${PIPE_TEST_REVIEW_MODEL}\n")
	t.Cleanup(func() { os.Unsetenv("PIPE_TEST_REVIEW_MODEL") })

	cfg, path, err := LoadForRoot(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "config", "pipeline.yaml"), path)
	assert.Equal(t, "claude-3-haiku-20240307", cfg.Stages["review"].Model)
}

func TestLoadForRootInvalid(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "config", "pipeline.yaml"),
		"monitor:\n  downgrade_metric: hourly\n")

	_, _, err := LoadForRoot(root)
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "monitor.downgrade_metric", verr.Errors[0].Field)
}

func TestValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Pricing["bad"] = PriceConfig{InputRate: -1, OutputRate: -1}
	cfg.Monitor.DowngradeMetric = string("rolling_window")
	cfg.Monitor.DowngradeThreshold = -3
	cfg.Logging.Level = "loud"
	cfg.Operations["summarize"] = cfg.Defaults

	err := Validate(cfg)
	var verr ValidationError
	require.ErrorAs(t, err, &verr)

	fields := make([]string, 0, len(verr.Errors))
	for _, fe := range verr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{
		"operations.summarize",
		"pricing.bad.input_rate",
		"pricing.bad.output_rate",
		"monitor.window",
		"monitor.downgrade_threshold",
		"logging.level",
	}, fields)
	assert.Contains(t, err.Error(), "6 errors")
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"defaults", "stages", "operations", "fallbacks", "pricing", "monitor", "logging", "metrics"} {
		assert.Contains(t, props, key)
	}
}
