package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chdirTemp moves into an empty temp dir so no config.yaml is found.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	for _, k := range []string{"EXA_API_KEY", "PERPLEXITY_API_KEY", "ANTHROPIC_API_KEY", "EXASHEETS_EXA_KEY"} {
		t.Setenv(k, "")
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "exa", cfg.Answer.Provider)
	assert.Equal(t, 1, cfg.Answer.MaxAttempts)
	assert.Zero(t, cfg.Answer.RatePerSec)
	assert.Equal(t, 60, cfg.Answer.TimeoutSecs)
	assert.Empty(t, cfg.Exa.Key)
	assert.Equal(t, "https://api.exa.ai", cfg.Exa.BaseURL)
	assert.Equal(t, "sonar-pro", cfg.Perplexity.Model)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, int64(256), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 1, cfg.Fill.Concurrency)
	assert.Equal(t, 5, cfg.Fill.SampleRows)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "exa-sheets.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
answer:
  provider: perplexity
  rate_per_sec: 2.5
fill:
  concurrency: 4
  sample_rows: 10
store:
  driver: postgres
  database_url: postgres://localhost/sheets
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "perplexity", cfg.Answer.Provider)
	assert.InDelta(t, 2.5, cfg.Answer.RatePerSec, 0.001)
	assert.Equal(t, 4, cfg.Fill.Concurrency)
	assert.Equal(t, 10, cfg.Fill.SampleRows)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/sheets", cfg.Store.DatabaseURL)
	assert.Equal(t, "console", cfg.Log.Format)
	// Defaults still apply for unset values.
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadPricing(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
pricing:
  exa_per_query: 0.004
  anthropic:
    claude-haiku-4-5-20251001:
      input: 1.5
      output: 6
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.004, cfg.Pricing.ExaPerQuery, 1e-12)
	assert.Zero(t, cfg.Pricing.PerplexityPerQuery)
	assert.Equal(t, ModelPricing{Input: 1.5, Output: 6}, cfg.Pricing.Anthropic["claude-haiku-4-5-20251001"])
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: debug\n"), 0o644))

	t.Setenv("EXASHEETS_LOG_LEVEL", "warn")
	t.Setenv("EXASHEETS_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadCredentialEnv(t *testing.T) {
	chdirTemp(t)
	t.Setenv("EXA_API_KEY", "exa-conventional")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "exa-conventional", cfg.Exa.Key)
	assert.Equal(t, "sk-ant", cfg.Anthropic.Key)

	// The prefixed name wins over the conventional one.
	t.Setenv("EXASHEETS_EXA_KEY", "exa-prefixed")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "exa-prefixed", cfg.Exa.Key)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("answer: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func validConfig() *Config {
	return &Config{
		Answer: AnswerConfig{Provider: "exa"},
		Fill:   FillConfig{Concurrency: 1},
		Store:  StoreConfig{Driver: "sqlite"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "stub_provider", mutate: func(c *Config) { c.Answer.Provider = "stub" }},
		{name: "unknown_provider", mutate: func(c *Config) { c.Answer.Provider = "bing" }, wantErr: "unknown answer provider"},
		{name: "unknown_store", mutate: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: "unknown store driver"},
		{name: "zero_concurrency", mutate: func(c *Config) { c.Fill.Concurrency = 0 }, wantErr: "fill.concurrency"},
		{
			name:   "valid_template",
			mutate: func(c *Config) { c.Fill.QuestionTemplate = "Give the %s of %s. Reply NA if unknown." },
		},
		{
			name:    "template_missing_verb",
			mutate:  func(c *Config) { c.Fill.QuestionTemplate = "What is the %s?" },
			wantErr: "question_template",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	assert.Error(t, InitLogger(LogConfig{Level: "invalid", Format: "json"}))
}
