package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/speechgate/internal/daemon"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Auth      AuthConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	TTS       TTSConfig
	Espeak    EspeakConfig
	GTTS      GTTSConfig
	GCloud    GCloudConfig
	Polly     PollyConfig
	Gwent     GwentConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type LogConfig struct {
	Level string
}

type AuthConfig struct {
	Secret string // empty disables the auth gate
}

type RedisConfig struct {
	Addr     string // empty disables redis
	Password string
	DB       int
}

type RateLimitConfig struct {
	RPS   float64 // 0 disables rate limiting
	Burst int
}

type TTSConfig struct {
	Modes         []string
	VoiceCacheTTL time.Duration
}

type EspeakConfig struct {
	BinPath      string
	DefaultVoice string
}

type GTTSConfig struct {
	BaseURL      string
	DefaultVoice string
}

type GCloudConfig struct {
	CredentialsFile string
	DefaultVoice    string
}

type PollyConfig struct {
	Region       string
	DefaultVoice string
}

type GwentConfig struct {
	Daemon       daemon.Config
	HealthCheck  bool
	DefaultVoice string
	SlowCallWarn time.Duration
}

// Load reads configuration from the environment. A .env file (ENV_FILE,
// default ".env") is applied first when present; real environment
// variables win over it.
func Load() (*Config, error) {
	envFile := getEnv("ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	var errs []error
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	floatVar := func(key string, fallback float64) float64 {
		v, err := getEnvFloat(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	boolVar := func(key string, fallback bool) bool {
		v, err := getEnvBool(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	msVar := func(key string, fallback int) time.Duration {
		return time.Duration(intVar(key, fallback)) * time.Millisecond
	}
	durVar := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: intVar("SERVER_PORT", 3000),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			Secret: os.Getenv("AUTH_SECRET"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intVar("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			RPS:   floatVar("RATE_LIMIT_RPS", 0),
			Burst: intVar("RATE_LIMIT_BURST", 20),
		},
		TTS: TTSConfig{
			Modes:         getEnvList("TTS_MODES", []string{"espeak", "gtts", "gcloud", "polly", "gwent"}),
			VoiceCacheTTL: durVar("VOICE_CACHE_TTL", 5*time.Minute),
		},
		Espeak: EspeakConfig{
			BinPath:      getEnv("ESPEAK_BIN", "espeak-ng"),
			DefaultVoice: getEnv("ESPEAK_DEFAULT_VOICE", "en"),
		},
		GTTS: GTTSConfig{
			BaseURL:      getEnv("GTTS_BASE_URL", "https://translate.google.com/translate_tts"),
			DefaultVoice: getEnv("GTTS_DEFAULT_VOICE", "en"),
		},
		GCloud: GCloudConfig{
			CredentialsFile: getEnv("GCLOUD_CREDENTIALS_FILE", ""),
			DefaultVoice:    getEnv("GCLOUD_DEFAULT_VOICE", "en-US-Standard-A"),
		},
		Polly: PollyConfig{
			Region:       getEnv("POLLY_REGION", ""),
			DefaultVoice: getEnv("POLLY_DEFAULT_VOICE", "Brian"),
		},
		Gwent: GwentConfig{
			Daemon: daemon.Config{
				BaseURL:        getEnv("GWENT_DAEMON_URL", "http://127.0.0.1:9000"),
				ConnectTimeout: msVar("GWENT_CONNECT_TIMEOUT_MS", 500),
				RequestTimeout: msVar("GWENT_REQUEST_TIMEOUT_MS", 10_000),
				MaxConcurrency: intVar("GWENT_MAX_CONCURRENCY", 32),
				HealthPath:     daemon.NormalizePath(getEnv("GWENT_HEALTH_PATH", "/health")),
				VoicesPath:     daemon.NormalizePath(getEnv("GWENT_VOICES_PATH", "/voices")),
				TTSPath:        daemon.NormalizePath(getEnv("GWENT_TTS_PATH", "/tts")),
				Saturation:     daemon.SaturationPolicy(strings.ToLower(getEnv("GWENT_SATURATION_POLICY", string(daemon.SaturationWait)))),
			},
			HealthCheck:  boolVar("GWENT_HEALTH_CHECK", true),
			DefaultVoice: getEnv("GWENT_DEFAULT_VOICE", "geralt"),
			SlowCallWarn: msVar("GWENT_SLOW_CALL_WARN_MS", 4_000),
		},
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ModeEnabled reports whether mode is listed in TTS_MODES.
func (c *Config) ModeEnabled(mode string) bool {
	for _, m := range c.TTS.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT %d out of range", c.Server.Port))
	}
	if len(c.TTS.Modes) == 0 {
		errs = append(errs, errors.New("TTS_MODES must name at least one mode"))
	}
	known := map[string]bool{"espeak": true, "gtts": true, "gcloud": true, "polly": true, "gwent": true}
	for _, m := range c.TTS.Modes {
		if !known[m] {
			errs = append(errs, fmt.Errorf("TTS_MODES: unknown mode %q", m))
		}
	}
	if c.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must not be negative"))
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_BURST must be positive when rate limiting is enabled"))
	}
	if c.ModeEnabled("gwent") {
		if err := c.Gwent.Daemon.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out = append(out, item)
		}
	}
	return out
}
