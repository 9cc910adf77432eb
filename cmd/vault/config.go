package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vault-gateway/vault/infra"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

type statsConfig struct {
	Enabled       bool          `koanf:"enabled"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
	Prefix        string        `koanf:"prefix"`
	TTL           time.Duration `koanf:"ttl"`
	Bucket        string        `koanf:"bucket"`
	TrackKeys     bool          `koanf:"track_keys"`
}

type config struct {
	ListenAddr string `koanf:"listen_addr"`

	RateLimit        int           `koanf:"rate_limit"`
	RateWindow       time.Duration `koanf:"rate_window"`
	RateCapacity     int           `koanf:"rate_capacity"`
	RateShards       int           `koanf:"rate_shards"`
	RateCleanupEvery time.Duration `koanf:"rate_cleanup_every"`
	AddLimitHeader   bool          `koanf:"add_limit_header"`

	ConcurrencyMax     int           `koanf:"concurrency_max"`
	ConcurrencyTimeout time.Duration `koanf:"concurrency_timeout"`

	MaxPayloadBytes int    `koanf:"max_payload_bytes"`
	MasterKey       string `koanf:"master_key"`
	AuthHeader      string `koanf:"auth_header"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	Stats statsConfig `koanf:"stats"`
}

func defaultConfig() config {
	return config{
		ListenAddr:       ":8080",
		RateLimit:        5,
		RateWindow:       60 * time.Second,
		RateCapacity:     100_000,
		RateShards:       32,
		RateCleanupEvery: time.Minute,
		ConcurrencyMax:   100,
		MaxPayloadBytes:  64 << 10,
		AuthHeader:       "Authorization",
		LogLevel:         "info",
		LogFormat:        "text",
		Stats: statsConfig{
			Prefix: "vault:stats",
			TTL:    24 * time.Hour,
			Bucket: "minute",
		},
	}
}

// loadConfig monta a config em camadas: padrão, arquivo (opcional) e env.
// Flags são aplicadas por quem chama.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return fmt.Errorf("config %s: unsupported format (use .yaml, .yml or .json)", path)
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), parser); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	// campos ausentes no arquivo mantêm o padrão
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("decode config %s: %w", path, err)
	}
	return nil
}

// applyEnv sobrescreve só o que estiver setado no ambiente.
func applyEnv(cfg *config) {
	cfg.ListenAddr = getenvDefault("LISTEN_ADDR", cfg.ListenAddr)
	cfg.RateLimit = getenvIntDefault("RATE_LIMIT", cfg.RateLimit)
	cfg.RateWindow = getenvDurationDefault("RATE_WINDOW", cfg.RateWindow)
	cfg.RateCapacity = getenvIntDefault("RATE_CAPACITY", cfg.RateCapacity)
	cfg.RateShards = getenvIntDefault("RATE_SHARDS", cfg.RateShards)
	cfg.RateCleanupEvery = getenvDurationDefault("RATE_CLEANUP_EVERY", cfg.RateCleanupEvery)
	cfg.AddLimitHeader = getenvBoolDefault("ADD_LIMIT_HEADER", cfg.AddLimitHeader)
	cfg.ConcurrencyMax = getenvIntDefault("CONCURRENCY_MAX", cfg.ConcurrencyMax)
	cfg.ConcurrencyTimeout = getenvDurationDefault("CONCURRENCY_TIMEOUT", cfg.ConcurrencyTimeout)
	cfg.MaxPayloadBytes = getenvIntDefault("MAX_PAYLOAD_BYTES", cfg.MaxPayloadBytes)
	cfg.MasterKey = getenvDefault("VAULT_MASTER_KEY", cfg.MasterKey)
	cfg.AuthHeader = getenvDefault("AUTH_HEADER", cfg.AuthHeader)
	cfg.LogLevel = getenvDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenvDefault("LOG_FORMAT", cfg.LogFormat)

	cfg.Stats.Enabled = getenvBoolDefault("RATE_STATS_ENABLED", cfg.Stats.Enabled)
	cfg.Stats.RedisAddr = getenvDefault("RATE_STATS_REDIS_ADDR", cfg.Stats.RedisAddr)
	cfg.Stats.RedisPassword = getenvDefault("RATE_STATS_REDIS_PASSWORD", cfg.Stats.RedisPassword)
	cfg.Stats.RedisDB = getenvIntDefault("RATE_STATS_REDIS_DB", cfg.Stats.RedisDB)
	cfg.Stats.Prefix = getenvDefault("RATE_STATS_PREFIX", cfg.Stats.Prefix)
	cfg.Stats.TTL = getenvDurationDefault("RATE_STATS_TTL", cfg.Stats.TTL)
	cfg.Stats.Bucket = getenvDefault("RATE_STATS_BUCKET", cfg.Stats.Bucket)
	cfg.Stats.TrackKeys = getenvBoolDefault("RATE_STATS_TRACK_KEYS", cfg.Stats.TrackKeys)
}

func (c config) validate() error {
	if c.RateLimit <= 0 {
		return errors.New("RATE_LIMIT must be > 0")
	}
	if c.RateWindow <= 0 {
		return errors.New("RATE_WINDOW must be > 0")
	}
	if c.RateCapacity <= 0 {
		return errors.New("RATE_CAPACITY must be > 0")
	}
	if c.RateShards <= 0 || c.RateShards&(c.RateShards-1) != 0 {
		return errors.New("RATE_SHARDS must be a power of two")
	}
	if c.ConcurrencyMax < 0 {
		return errors.New("CONCURRENCY_MAX must be >= 0")
	}
	if c.MaxPayloadBytes <= 0 {
		return errors.New("MAX_PAYLOAD_BYTES must be > 0")
	}
	if strings.TrimSpace(c.AuthHeader) == "" {
		return errors.New("AUTH_HEADER must not be empty")
	}
	if _, err := infra.SealerFromBase64(c.MasterKey); err != nil {
		return fmt.Errorf("VAULT_MASTER_KEY: %w", err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	if c.Stats.Enabled && strings.TrimSpace(c.Stats.RedisAddr) == "" {
		return errors.New("RATE_STATS_REDIS_ADDR is required when RATE_STATS_ENABLED=true")
	}
	return nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
