package config

import "time"

type OAuthConfig interface {
	GetCallbackAddr() string
	GetOIDCIssuer() string
	GetOIDCClientID() string
	GetOIDCClientSecret() string
	GetAuthFlowTimeout() time.Duration
}

type OAuth struct {
	CallbackAddr     string        `env:"CYBERGUARD_CALLBACK_ADDR, default=127.0.0.1:8765"`
	OIDCIssuer       string        `env:"CYBERGUARD_OIDC_ISSUER"`
	OIDCClientID     string        `env:"CYBERGUARD_OIDC_CLIENT_ID"`
	OIDCClientSecret string        `env:"CYBERGUARD_OIDC_CLIENT_SECRET"`
	FlowTimeout      time.Duration `env:"CYBERGUARD_AUTH_FLOW_TIMEOUT, default=10m"`
}

var _ OAuthConfig = OAuth{}

func (o OAuth) GetCallbackAddr() string {
	return o.CallbackAddr
}

func (o OAuth) GetOIDCIssuer() string {
	return o.OIDCIssuer
}

func (o OAuth) GetOIDCClientID() string {
	return o.OIDCClientID
}

func (o OAuth) GetOIDCClientSecret() string {
	return o.OIDCClientSecret
}

// GetAuthFlowTimeout bounds how long a pending provider login waits for its callback
func (o OAuth) GetAuthFlowTimeout() time.Duration {
	return o.FlowTimeout
}
