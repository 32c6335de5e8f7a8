package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	TokenStoreMemory = "memory"
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
)

type TokenStoreConfig interface {
	GetTokenStoreKind() string
	GetTokenFile() string
	GetTokenStoreSecret() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetTokenTTL() time.Duration
	GetProfile() string
}

type TokenStore struct {
	Kind          string        `env:"CYBERGUARD_TOKEN_STORE, default=file"`
	File          string        `env:"CYBERGUARD_TOKEN_FILE, default=~/.cyberguard/tokens"`
	Secret        string        `env:"CYBERGUARD_TOKEN_STORE_SECRET"`
	RedisAddr     string        `env:"CYBERGUARD_REDIS_ADDR"`
	RedisPassword string        `env:"CYBERGUARD_REDIS_PASSWORD"`
	TTL           time.Duration `env:"CYBERGUARD_TOKEN_TTL, default=168h"`
	Profile       string        `env:"CYBERGUARD_PROFILE, default=default"`
}

var _ TokenStoreConfig = TokenStore{}

func (t TokenStore) GetTokenStoreKind() string {
	return strings.ToLower(t.Kind)
}

// GetTokenFile expands a leading ~ to the user's home directory
func (t TokenStore) GetTokenFile() string {
	if strings.HasPrefix(t.File, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, t.File[2:])
		}
	}
	return t.File
}

// GetTokenStoreSecret falls back to the host name so the file is never sealed with an empty key
func (t TokenStore) GetTokenStoreSecret() string {
	if t.Secret != "" {
		return t.Secret
	}
	host, _ := os.Hostname()
	return "cyberguard:" + host
}

func (t TokenStore) GetRedisAddr() string {
	return t.RedisAddr
}

func (t TokenStore) GetRedisPassword() string {
	return t.RedisPassword
}

func (t TokenStore) GetTokenTTL() time.Duration {
	return t.TTL
}

func (t TokenStore) GetProfile() string {
	return t.Profile
}
