package token

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/cyberguard-client/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewStoreFromConfig builds the single Store configured for this process.
func NewStoreFromConfig(ctx context.Context, cfg config.TokenStoreConfig) (Store, error) {
	switch cfg.GetTokenStoreKind() {
	case config.TokenStoreMemory:
		return NewInMemoryStore(), nil
	case config.TokenStoreFile:
		return NewFileStore(cfg.GetTokenFile(), cfg.GetTokenStoreSecret())
	case config.TokenStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			DB:       0,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("[NewStoreFromConfig] redis ping: %w", err)
		}
		return NewRedisStore(client, cfg.GetProfile(), cfg.GetTokenTTL()), nil
	}
	return nil, fmt.Errorf("[NewStoreFromConfig] unknown token store %q", cfg.GetTokenStoreKind())
}
