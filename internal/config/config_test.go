package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ECONGLOBE_CONFIG", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestReadSkipsValidation(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("ECONGLOBE_CONFIG", "")
	t.Setenv("WORLD_BANK_BASE_URL", "http://wb.local")

	cfg, err := Read()
	require.NoError(t, err)
	assert.Empty(t, cfg.JWTSecret)
	assert.Equal(t, "http://wb.local", cfg.WorldBankURL)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ECONGLOBE_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "https://api.worldbank.org/v2", cfg.WorldBankURL)
	assert.Equal(t, "gpt-3.5-turbo", cfg.OpenAIModel)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
}

func TestTOMLOverlayThenEnvironmentWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "econglobe.toml")
	content := `
http_port = "9090"
log_level = "DEBUG"
chat_provider = "gemini"
ai_rate_per_minute = 5.0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("ECONGLOBE_CONFIG", path)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("HTTP_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.HTTPPort)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "gemini", cfg.ChatProvider)
	assert.InDelta(t, 5.0, cfg.AIRatePerMinute, 0.0001)
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := Defaults()
	cfg.JWTSecret = "secret"
	cfg.ChatProvider = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}

func TestLoadTOMLReportsBadFile(t *testing.T) {
	cfg := Defaults()
	err := LoadTOML(&cfg, filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
