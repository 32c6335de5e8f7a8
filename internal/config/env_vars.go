package config

import (
	"strings"
	"time"
)

type EnvVars struct {
	AppName  string `env:"APP_NAME, default=CyberGuard"`
	Env      string `env:"ENV, default=DEV"`
	LogLevel string `env:"CYBERGUARD_LOG_LEVEL, default=info"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	return strings.ToUpper(e.Env)
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

type API struct {
	BaseURL         string        `env:"CYBERGUARD_API_URL, default=http://localhost:8080"`
	AuthServiceURL  string        `env:"CYBERGUARD_AUTH_SERVICE_URL, default=http://localhost:8081"`
	Timeout         time.Duration `env:"CYBERGUARD_TIMEOUT, default=10s"`
	FallbackTimeout time.Duration `env:"CYBERGUARD_FALLBACK_TIMEOUT, default=30s"`
}

var _ APIConfig = API{}

// GetAPIBaseURL returns the API gateway base URL (e.g., "http://localhost:8080")
func (a API) GetAPIBaseURL() string {
	return strings.TrimRight(a.BaseURL, "/")
}

// GetAuthServiceURL is the auth service address used as the last login/registration fallback
func (a API) GetAuthServiceURL() string {
	return strings.TrimRight(a.AuthServiceURL, "/")
}

func (a API) GetRequestTimeout() time.Duration {
	return a.Timeout
}

func (a API) GetFallbackTimeout() time.Duration {
	return a.FallbackTimeout
}
