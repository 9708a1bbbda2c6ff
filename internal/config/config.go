package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server     ServerConfig
	DB         DBConfig
	Redis      RedisConfig
	NATS       NATSConfig
	JWT        JWTConfig
	Providers  ProvidersConfig
	Generation GenerationConfig
	Quota      QuotaConfig
	Session    SessionConfig
	CORS       CORSConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type NATSConfig struct {
	URL string
}

type JWTConfig struct {
	AccessSecret string
}

// ProvidersConfig holds credentials and endpoints for generation backends.
// A provider counts as configured when its credential keys are non-empty.
type ProvidersConfig struct {
	Aggregator AggregatorConfig
	OpenAI     OpenAIConfig
	Avatar     HTTPBackendConfig
	Video      HTTPBackendConfig
}

type AggregatorConfig struct {
	BaseURL string
	Token   string
}

func (c AggregatorConfig) Configured() bool {
	return c.BaseURL != "" && c.Token != ""
}

type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string
}

func (c OpenAIConfig) Configured() bool {
	return c.APIKey != ""
}

type HTTPBackendConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

func (c HTTPBackendConfig) Configured() bool {
	return c.BaseURL != "" && c.APIKey != ""
}

type GenerationConfig struct {
	MockAllowed     bool
	ProviderTimeout time.Duration
}

// QuotaConfig carries per-tier monthly limits keyed by tier name, in
// capability order text, image, avatar, video. -1 means unlimited.
type QuotaConfig struct {
	Limits map[string][4]int
}

type SessionConfig struct {
	TTL time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Load .env file if it exists (ignore error if missing)
	_ = k.Load(file.Provider(".env"), dotenv.Parser())

	// Load environment variables (override .env)
	err := k.Load(env.Provider("", ".", func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, "_", "."))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: k.String("server.host"),
			Port: k.Int("server.port"),
		},
		DB: DBConfig{
			Host:     k.String("db.host"),
			Port:     k.Int("db.port"),
			User:     k.String("db.user"),
			Password: k.String("db.password"),
			Name:     k.String("db.name"),
			SSLMode:  k.String("db.sslmode"),
			MaxConns: int32(k.Int("db.max.conns")),
		},
		Redis: RedisConfig{
			Host:     k.String("redis.host"),
			Port:     k.Int("redis.port"),
			Password: k.String("redis.password"),
			DB:       k.Int("redis.db"),
		},
		NATS: NATSConfig{
			URL: k.String("nats.url"),
		},
		JWT: JWTConfig{
			AccessSecret: k.String("jwt.access.secret"),
		},
		Providers: ProvidersConfig{
			Aggregator: AggregatorConfig{
				BaseURL: k.String("providers.aggregator.url"),
				Token:   k.String("providers.aggregator.token"),
			},
			OpenAI: OpenAIConfig{
				APIKey:     k.String("providers.openai.api.key"),
				BaseURL:    k.String("providers.openai.base.url"),
				TextModel:  k.String("providers.openai.text.model"),
				ImageModel: k.String("providers.openai.image.model"),
			},
			Avatar: HTTPBackendConfig{
				BaseURL: k.String("providers.avatar.url"),
				APIKey:  k.String("providers.avatar.api.key"),
				Model:   k.String("providers.avatar.model"),
			},
			Video: HTTPBackendConfig{
				BaseURL: k.String("providers.video.url"),
				APIKey:  k.String("providers.video.api.key"),
				Model:   k.String("providers.video.model"),
			},
		},
		Generation: GenerationConfig{
			MockAllowed: k.Bool("generation.mock.allowed"),
		},
		CORS: CORSConfig{
			AllowedOrigins: k.Strings("cors.allowed.origins"),
		},
		Log: LogConfig{
			Level:  k.String("log.level"),
			Format: k.String("log.format"),
		},
	}

	// Apply defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.DB.Host == "" {
		cfg.DB.Host = "localhost"
	}
	if cfg.DB.Port == 0 {
		cfg.DB.Port = 5432
	}
	if cfg.DB.User == "" {
		cfg.DB.User = "creator"
	}
	if cfg.DB.Name == "" {
		cfg.DB.Name = "creator"
	}
	if cfg.DB.SSLMode == "" {
		cfg.DB.SSLMode = "disable"
	}
	if cfg.DB.MaxConns == 0 {
		cfg.DB.MaxConns = 25
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = "nats://localhost:4222"
	}
	if cfg.Providers.OpenAI.TextModel == "" {
		cfg.Providers.OpenAI.TextModel = "gpt-4o-mini"
	}
	if cfg.Providers.OpenAI.ImageModel == "" {
		cfg.Providers.OpenAI.ImageModel = "dall-e-3"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}

	// Parse durations
	timeoutStr := k.String("generation.provider.timeout")
	if timeoutStr == "" {
		timeoutStr = "60s"
	}
	cfg.Generation.ProviderTimeout, err = time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("parsing provider timeout: %w", err)
	}

	sessionTTLStr := k.String("session.ttl")
	if sessionTTLStr == "" {
		sessionTTLStr = "2h"
	}
	cfg.Session.TTL, err = time.ParseDuration(sessionTTLStr)
	if err != nil {
		return nil, fmt.Errorf("parsing session ttl: %w", err)
	}

	cfg.Quota = loadQuota(k)

	return cfg, nil
}

// loadQuota builds the per-tier limit table, starting from compiled-in
// defaults and applying QUOTA_<TIER>_<CAPABILITY> env overrides.
func loadQuota(k *koanf.Koanf) QuotaConfig {
	limits := map[string][4]int{
		"seed":               {10, 5, 1, 1},
		"rooted":             {50, 25, 3, 5},
		"commissioned":       {200, 100, 10, 20},
		"mantled_pro":        {1000, 500, 25, 100},
		"kingdom_enterprise": {-1, -1, -1, -1},
	}

	capabilities := []string{"text", "image", "avatar", "video"}
	for tier, defaults := range limits {
		row := defaults
		for i, capability := range capabilities {
			key := fmt.Sprintf("quota.%s.%s", strings.ReplaceAll(tier, "_", "."), capability)
			if k.Exists(key) {
				row[i] = k.Int(key)
			}
		}
		limits[tier] = row
	}

	return QuotaConfig{Limits: limits}
}
