package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	DefaultLanguage             = "en"
	DefaultDetailLevel          = "Concise"
	DefaultCulturalContext      = "Subtle"
	DefaultTimeoutSeconds       = 15
	DefaultRetryAttempts        = 3
	DefaultPingSeconds          = 30
	DefaultMaxReconnectAttempts = 5
	DefaultPreloadDelayMs       = 500
	DefaultSafetyPollSpec       = "0 */15 * * * *"
	DefaultPreloadCronSpec      = "0 0 3 * * *"
)

type Config struct {
	Backend  BackendConfig  `json:"backend"`
	Settings SettingsConfig `json:"settings"`
	Chat     ChatConfig     `json:"chat"`
	Cache    CacheConfig    `json:"cache"`
	Watch    WatchConfig    `json:"watch"`
	Notify   NotifyConfig   `json:"notify"`
}

type BackendConfig struct {
	BaseURL        string `json:"baseUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	RetryAttempts  int    `json:"retryAttempts"`
}

// SettingsConfig mirrors the user-facing content preferences sent to the
// backend with generative queries.
type SettingsConfig struct {
	Language        string `json:"language"`
	DetailLevel     string `json:"detailLevel"`
	CulturalContext string `json:"culturalContext"`
}

type ChatConfig struct {
	URL                  string `json:"url,omitempty"` // derived from backend baseUrl when empty
	PingSeconds          int    `json:"pingSeconds"`
	MaxReconnectAttempts int    `json:"maxReconnectAttempts"`
}

type CacheConfig struct {
	DBPath         string `json:"dbPath,omitempty"`
	PreloadDelayMs int    `json:"preloadDelayMs"`
}

type WatchConfig struct {
	SafetyPollSpec  string `json:"safetyPollSpec"`
	PreloadCronSpec string `json:"preloadCronSpec"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chatId,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			TimeoutSeconds: DefaultTimeoutSeconds,
			RetryAttempts:  DefaultRetryAttempts,
		},
		Settings: SettingsConfig{
			Language:        DefaultLanguage,
			DetailLevel:     DefaultDetailLevel,
			CulturalContext: DefaultCulturalContext,
		},
		Chat: ChatConfig{
			PingSeconds:          DefaultPingSeconds,
			MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		},
		Cache: CacheConfig{
			PreloadDelayMs: DefaultPreloadDelayMs,
		},
		Watch: WatchConfig{
			SafetyPollSpec:  DefaultSafetyPollSpec,
			PreloadCronSpec: DefaultPreloadCronSpec,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".myalex")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if url := os.Getenv("MYALEX_BASE_URL"); url != "" {
		cfg.Backend.BaseURL = url
	}
	if url := os.Getenv("MYALEX_CHAT_URL"); url != "" {
		cfg.Chat.URL = url
	}
	if lang := os.Getenv("MYALEX_LANGUAGE"); lang != "" {
		cfg.Settings.Language = lang
	}
	if dbPath := os.Getenv("MYALEX_CACHE_DB_PATH"); dbPath != "" {
		cfg.Cache.DBPath = dbPath
	}
	if token := os.Getenv("MYALEX_TELEGRAM_TOKEN"); token != "" {
		cfg.Notify.Telegram.Token = token
	}
	if chatID := os.Getenv("MYALEX_TELEGRAM_CHAT_ID"); chatID != "" {
		if parsed, err := strconv.ParseInt(chatID, 10, 64); err == nil {
			cfg.Notify.Telegram.ChatID = parsed
		}
	}
	if timeout := os.Getenv("MYALEX_TIMEOUT_SECONDS"); timeout != "" {
		if parsed, err := strconv.Atoi(timeout); err == nil && parsed > 0 {
			cfg.Backend.TimeoutSeconds = parsed
		}
	}

	if cfg.Backend.TimeoutSeconds <= 0 {
		cfg.Backend.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if cfg.Backend.RetryAttempts <= 0 {
		cfg.Backend.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.Settings.Language == "" {
		cfg.Settings.Language = DefaultLanguage
	}
	if cfg.Chat.PingSeconds <= 0 {
		cfg.Chat.PingSeconds = DefaultPingSeconds
	}
	if cfg.Chat.MaxReconnectAttempts <= 0 {
		cfg.Chat.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.Cache.PreloadDelayMs <= 0 {
		cfg.Cache.PreloadDelayMs = DefaultPreloadDelayMs
	}
	if cfg.Watch.SafetyPollSpec == "" {
		cfg.Watch.SafetyPollSpec = DefaultSafetyPollSpec
	}
	if cfg.Watch.PreloadCronSpec == "" {
		cfg.Watch.PreloadCronSpec = DefaultPreloadCronSpec
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
