package core

import (
	"fmt"
	"strings"
	"time"
)

type OAuthEndpoints struct {
	RequestTokenURL string `koanf:"request_token_url" mapstructure:"request_token_url"`
	AccessTokenURL  string `koanf:"access_token_url" mapstructure:"access_token_url"`
	RenewTokenURL   string `koanf:"renew_token_url" mapstructure:"renew_token_url"`
	RevokeTokenURL  string `koanf:"revoke_token_url" mapstructure:"revoke_token_url"`
	AuthorizeURL    string `koanf:"authorize_url" mapstructure:"authorize_url"`
}

func (e OAuthEndpoints) Validate() error {
	if strings.TrimSpace(e.RequestTokenURL) == "" {
		return fmt.Errorf("core: oauth request_token_url is required")
	}
	if strings.TrimSpace(e.AccessTokenURL) == "" {
		return fmt.Errorf("core: oauth access_token_url is required")
	}
	if strings.TrimSpace(e.AuthorizeURL) == "" {
		return fmt.Errorf("core: oauth authorize_url is required")
	}
	return nil
}

type RetryConfig struct {
	MaxAttempts           int `koanf:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffSeconds int `koanf:"initial_backoff_seconds" mapstructure:"initial_backoff_seconds"`
	MaxBackoffSeconds     int `koanf:"max_backoff_seconds" mapstructure:"max_backoff_seconds"`
}

func (r RetryConfig) InitialBackoff() time.Duration {
	return time.Duration(r.InitialBackoffSeconds) * time.Second
}

func (r RetryConfig) MaxBackoff() time.Duration {
	return time.Duration(r.MaxBackoffSeconds) * time.Second
}

type TransportConfig struct {
	TimeoutSeconds int `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
}

func (t TransportConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

type Config struct {
	ServiceName    string          `koanf:"service_name" mapstructure:"service_name"`
	Environment    string          `koanf:"environment" mapstructure:"environment"`
	BaseURL        string          `koanf:"base_url" mapstructure:"base_url"`
	ConsumerKey    string          `koanf:"consumer_key" mapstructure:"consumer_key"`
	ConsumerSecret string          `koanf:"consumer_secret" mapstructure:"consumer_secret"`
	OAuth          OAuthEndpoints  `koanf:"oauth" mapstructure:"oauth"`
	Retry          RetryConfig     `koanf:"retry" mapstructure:"retry"`
	Transport      TransportConfig `koanf:"transport" mapstructure:"transport"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "brokerage",
		Environment: string(EnvironmentSandbox),
		Retry: RetryConfig{
			MaxAttempts:           5,
			InitialBackoffSeconds: 2,
			MaxBackoffSeconds:     60,
		},
		Transport: TransportConfig{
			TimeoutSeconds: 30,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if err := Environment(strings.TrimSpace(c.Environment)).Validate(); err != nil {
		return err
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("core: retry max_attempts must be at least 1")
	}
	if c.Retry.InitialBackoffSeconds < 1 {
		return fmt.Errorf("core: retry initial_backoff_seconds must be at least 1")
	}
	if c.Retry.MaxBackoffSeconds < c.Retry.InitialBackoffSeconds {
		return fmt.Errorf("core: retry max_backoff_seconds must be >= initial_backoff_seconds")
	}
	if c.Transport.TimeoutSeconds < 1 {
		return fmt.Errorf("core: transport timeout_seconds must be at least 1")
	}
	return nil
}

func (c Config) Consumer() ConsumerCredentials {
	return ConsumerCredentials{
		Key:    strings.TrimSpace(c.ConsumerKey),
		Secret: strings.TrimSpace(c.ConsumerSecret),
	}
}
