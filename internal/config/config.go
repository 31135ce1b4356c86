package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string        `toml:"http_port"`
	DatabaseURL     string        `toml:"database_url"`
	RedisURL        string        `toml:"redis_url"`
	JWTSecret       string        `toml:"-"`
	LogLevel        string        `toml:"log_level"`
	WorldBankURL    string        `toml:"world_bank_base_url"`
	ChatProvider    string        `toml:"chat_provider"`
	OpenAIAPIKey    string        `toml:"-"`
	OpenAIBaseURL   string        `toml:"openai_base_url"`
	OpenAIModel     string        `toml:"openai_model"`
	GeminiAPIKey    string        `toml:"-"`
	GeminiModel     string        `toml:"gemini_model"`
	AIRatePerMinute float64       `toml:"ai_rate_per_minute"`
	CookieSecure    bool          `toml:"cookie_secure"`
	TokenTTL        time.Duration `toml:"-"`
}

// Defaults returns the configuration used when neither a config file nor the
// environment says otherwise.
func Defaults() Config {
	return Config{
		HTTPPort:        "8080",
		DatabaseURL:     "econglobe.db",
		LogLevel:        "INFO",
		WorldBankURL:    "https://api.worldbank.org/v2",
		ChatProvider:    "openai",
		OpenAIBaseURL:   "https://api.openai.com/v1",
		OpenAIModel:     "gpt-3.5-turbo",
		GeminiModel:     "gemini-1.5-flash-latest",
		AIRatePerMinute: 20,
		TokenTTL:        24 * time.Hour,
	}
}

// Load reads the configuration and validates it for running the server.
func Load() (Config, error) {
	cfg, err := Read()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read reads .env (if present), then the TOML file named by ECONGLOBE_CONFIG,
// then the process environment. Later sources win. Nothing is validated.
func Read() (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := Defaults()
	if path := os.Getenv("ECONGLOBE_CONFIG"); path != "" {
		if err := LoadTOML(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

// LoadTOML overlays the non-secret settings found in a TOML file onto cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	switch c.ChatProvider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("unknown CHAT_PROVIDER %q", c.ChatProvider)
	}
	if c.AIRatePerMinute <= 0 {
		return fmt.Errorf("AI_RATE_PER_MINUTE must be positive, got %v", c.AIRatePerMinute)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.WorldBankURL = getEnv("WORLD_BANK_BASE_URL", cfg.WorldBankURL)
	cfg.ChatProvider = getEnv("CHAT_PROVIDER", cfg.ChatProvider)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAIModel = getEnv("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)
	cfg.AIRatePerMinute = getEnvAsFloat("AI_RATE_PER_MINUTE", cfg.AIRatePerMinute)
	cfg.CookieSecure = getEnvAsBool("COOKIE_SECURE", cfg.CookieSecure)
	cfg.TokenTTL = time.Duration(getEnvAsInt("TOKEN_TTL_SECONDS", int(cfg.TokenTTL/time.Second))) * time.Second
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
