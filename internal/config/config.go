package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type ServerConfig struct {
	Port      int    `yaml:"port"`
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type GatewayConfig struct {
	ZarinPal struct {
		MerchantID string `yaml:"merchant_id"`
		Sandbox    bool   `yaml:"sandbox"`
	} `yaml:"zarinpal"`
	// BaseURL is the externally reachable address used to build the
	// gateway callback URL, e.g. https://api.example.com
	BaseURL string `yaml:"base_url"`
	// FrontendURL is where the callback handler redirects the browser.
	FrontendURL string `yaml:"frontend_url"`
	// MinAmountToman is the smallest charge the gateway accepts.
	MinAmountToman int64 `yaml:"min_amount_toman"`
}

type ReferralConfig struct {
	RewardToman int64 `yaml:"reward_toman"`
}

type NotifyConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type SweeperConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Referral ReferralConfig `yaml:"referral"`
	Notify   NotifyConfig   `yaml:"notify"`
	Sweeper  SweeperConfig  `yaml:"sweeper"`

	Runtime RuntimeConfig `yaml:"-"`
}

// LoadConfig reads the YAML file, then lets the environment override the
// secrets so deployments never have to bake credentials into the file.
// A .env file next to the binary is honored when present.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load() // absent .env is fine

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Gateway.MinAmountToman == 0 {
		cfg.Gateway.MinAmountToman = 1000
	}
	if cfg.Referral.RewardToman == 0 {
		cfg.Referral.RewardToman = 5000
	}
	if cfg.Sweeper.Interval <= 0 {
		cfg.Sweeper.Interval = time.Hour
	}

	// Startup validation: a missing merchant credential is a deployment
	// mistake and must never surface per-request.
	if cfg.Gateway.ZarinPal.MerchantID == "" {
		return nil, errors.New("gateway.zarinpal.merchant_id is required")
	}
	if cfg.Gateway.BaseURL == "" {
		return nil, errors.New("gateway.base_url is required")
	}
	if cfg.Gateway.FrontendURL == "" {
		return nil, errors.New("gateway.frontend_url is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Server.JWTSecret == "" {
		return nil, errors.New("server.jwt_secret is required")
	}

	// The front-end router drops query/fragment data from bare hosts, so
	// the redirect base must always end with a path separator.
	if !strings.HasSuffix(cfg.Gateway.FrontendURL, "/") {
		cfg.Gateway.FrontendURL += "/"
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ZARINPAL_MERCHANT_ID"); v != "" {
		cfg.Gateway.ZarinPal.MerchantID = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := os.Getenv("REFERRAL_REWARD_TOMAN"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Referral.RewardToman = n
		}
	}
	if v := os.Getenv("TELEGRAM_NOTIFY_TOKEN"); v != "" {
		cfg.Notify.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_NOTIFY_CHAT_ID"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Notify.TelegramChatID = n
		}
	}
}
