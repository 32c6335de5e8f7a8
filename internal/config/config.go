package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config interface {
	EnvConfig
	APIConfig
	TokenStoreConfig
	OAuthConfig
	NotificationConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type APIConfig interface {
	GetAPIBaseURL() string
	GetAuthServiceURL() string
	GetRequestTimeout() time.Duration
	GetFallbackTimeout() time.Duration
}

type mainConfig struct {
	EnvVars
	API
	TokenStore
	OAuth
	Notifications
}

// Load reads an optional .env file and then the process environment.
func Load(ctx context.Context) (Config, error) {
	// A missing .env is the normal case outside local development
	_ = godotenv.Load()
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith resolves the configuration from an arbitrary lookuper (tests use envconfig.MapLookuper).
func LoadWith(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var c mainConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &c,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("[config.LoadWith] envconfig.Process: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c mainConfig) validate() error {
	switch c.GetTokenStoreKind() {
	case TokenStoreMemory, TokenStoreFile, TokenStoreRedis:
	default:
		return fmt.Errorf("[config] unknown token store %q", c.GetTokenStoreKind())
	}
	if c.GetTokenStoreKind() == TokenStoreRedis && c.GetRedisAddr() == "" {
		return fmt.Errorf("[config] redis token store requires CYBERGUARD_REDIS_ADDR")
	}
	return nil
}
