package common

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeTemp(t, "config.yaml", `
database:
  driver: postgres
  dsn: postgres://localhost:5432/invoices
  max_conns: 8
llm:
  provider: openai
  model: gpt-4o-mini
  timeout: 20s
fallback:
  tax_rate: "0.08"
inbox:
  dirs: ["/srv/inbox"]
log:
  level: debug
  format: text
`)
	t.Setenv("GRPC_ADDR", ":9090")
	t.Setenv("LLM_MODEL", "gpt-4.1-mini")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://localhost:5432/invoices", cfg.Database.DSN)
	assert.Equal(t, int32(8), cfg.Database.MaxConns)
	assert.Equal(t, int32(5), cfg.Database.MinConns, "unset keys keep defaults")
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4.1-mini", cfg.LLM.Model, "env overrides file")
	assert.Equal(t, 20*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, ":9090", cfg.Server.GRPCAddr)
	assert.Equal(t, "0.08", cfg.Fallback.TaxRate)
	assert.Equal(t, []string{"/srv/inbox"}, cfg.Inbox.Dirs)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigTOML(t *testing.T) {
	path := writeTemp(t, "config.toml", `
[database]
driver = "sqlite"
dsn = "file::memory:"

[ocr]
engine = "none"
dpi = 200
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "none", cfg.OCR.Engine)
	assert.Equal(t, 200, cfg.OCR.DPI)
	assert.Equal(t, float32(0.1), cfg.LLM.Temperature)
	assert.Equal(t, int32(4000), cfg.LLM.MaxOutputTokens)
}

func TestLoadConfigRejectsUnknownFormat(t *testing.T) {
	path := writeTemp(t, "config.ini", "a=b")
	_, err := LoadConfig(path)
	require.Error(t, err)

	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, CodeConfig, appErr.Code)
}

func TestLoadConfigEnvList(t *testing.T) {
	t.Setenv("INBOX_DIRS", " /a, /b ,,")
	t.Setenv("OCR_PREPROCESS", "false")
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Inbox.Dirs)
	assert.False(t, cfg.OCR.Preprocess)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "defaults", mutate: func(*Config) {}, ok: true},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "loud" }},
		{name: "bad driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }},
		{name: "non numeric tax rate", mutate: func(c *Config) { c.Fallback.TaxRate = "seven percent" }},
		{name: "too many raster pages", mutate: func(c *Config) { c.OCR.MaxPages = 12 }},
		{name: "azure without key", mutate: func(c *Config) {
			c.OCR.Engine = "azure"
			c.OCR.AzureEndpoint = "https://example.cognitiveservices.azure.com/"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var appErr *AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, CodeConfig, appErr.Code)
		})
	}
}

func TestValidateStructReportsFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Log.Format = "xml"
	err := ValidateStruct(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "Config.Log.Format")
}
