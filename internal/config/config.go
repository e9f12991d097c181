// Package config loads the bot configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Telegram TelegramConfig `koanf:"telegram"`
	Database DatabaseConfig `koanf:"database"`
	Admin    AdminConfig    `koanf:"admin"`
	Funnel   FunnelConfig   `koanf:"funnel"`
}

type TelegramConfig struct {
	// Token is the bot API token. Required.
	Token string `koanf:"token"`

	// ChannelID is the channel whose membership the subscription branch
	// checks.
	ChannelID int64 `koanf:"channel_id"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type AdminConfig struct {
	// Addr is the listen address of the read-only admin panel. Empty
	// disables the panel.
	Addr string `koanf:"addr"`
}

type FunnelConfig struct {
	// MaterialDoc is the file id or URL of the downloadable guide.
	MaterialDoc string `koanf:"material_doc"`

	// MediaNote is the file id of the recorded video note, if any.
	MediaNote string `koanf:"media_note"`

	// ChatLink is the invite link mentioned at the chat-invite stage.
	ChatLink string `koanf:"chat_link"`

	// Source labels users acquired through this deployment.
	Source string `koanf:"source"`

	// Workers is the number of continuation worker goroutines.
	Workers int `koanf:"workers"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load from YAML file if one was given.
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Telegram.Token == "" {
		return nil, fmt.Errorf("telegram token is required (telegram.token or BOT_TOKEN)")
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	setDefault(k, "database.path", "funnel.db")
	setDefault(k, "admin.addr", ":8080")
	setDefault(k, "funnel.source", "organic")
	setDefault(k, "funnel.workers", 2)
}

func applyEnvOverrides(k *koanf.Koanf) {
	if token := getString("BOT_TOKEN", ""); token != "" {
		k.Set("telegram.token", token)
	}
	if channel := getInt64("CHANNEL_ID", 0); channel != 0 {
		k.Set("telegram.channel_id", channel)
	}
	if path := getString("DATABASE_PATH", ""); path != "" {
		k.Set("database.path", path)
	}
	if addr := getString("ADMIN_ADDR", ""); addr != "" {
		k.Set("admin.addr", addr)
	}
	if doc := getString("LINK_TO_MATERIAL", ""); doc != "" {
		k.Set("funnel.material_doc", doc)
	}
	if note := getString("VIDEO_NOTE_FILE_ID", ""); note != "" {
		k.Set("funnel.media_note", note)
	}
	if link := getString("CHAT_LINK", ""); link != "" {
		k.Set("funnel.chat_link", link)
	}
	if source := getString("SOURCE", ""); source != "" {
		k.Set("funnel.source", source)
	}
	if workers := getInt64("FUNNEL_WORKERS", 0); workers > 0 {
		k.Set("funnel.workers", int(workers))
	}
}

// setDefault only sets the value if the key doesn't already exist.
func setDefault(k *koanf.Koanf, key string, value interface{}) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}
