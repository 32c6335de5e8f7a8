package config

import "time"

type NotificationConfig interface {
	GetWebsocketHost() string
	GetWebsocketEnabled() bool
	GetWebsocketMaxAttempts() int
	GetWebsocketRetryDelay() time.Duration
}

type Notifications struct {
	WSHost      string        `env:"CYBERGUARD_WS_HOST"`
	Enabled     bool          `env:"CYBERGUARD_ENABLE_WEBSOCKET, default=true"`
	MaxAttempts int           `env:"CYBERGUARD_WS_MAX_ATTEMPTS, default=3"`
	RetryDelay  time.Duration `env:"CYBERGUARD_WS_RETRY_DELAY, default=5s"`
}

var _ NotificationConfig = Notifications{}

// GetWebsocketHost is empty when the stream should use the API gateway host
func (n Notifications) GetWebsocketHost() string {
	return n.WSHost
}

func (n Notifications) GetWebsocketEnabled() bool {
	return n.Enabled
}

func (n Notifications) GetWebsocketMaxAttempts() int {
	return n.MaxAttempts
}

func (n Notifications) GetWebsocketRetryDelay() time.Duration {
	return n.RetryDelay
}
