package brokerage

import (
	"time"

	"github.com/goliatone/go-brokerage/core"
	"github.com/goliatone/go-brokerage/ratelimit"
	"github.com/goliatone/go-brokerage/transport"
)

type clientBuilder struct {
	runtimeConfig core.Config

	logger          core.Logger
	loggerProvider  core.LoggerProvider
	metricsRecorder core.MetricsRecorder
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver

	tokenStore core.TokenStore
	transport  core.TransportAdapter
	httpClient transport.HTTPDoer
	retrier    *ratelimit.Retrier
	throttle   *ratelimit.AdaptivePolicy

	now   func() time.Time
	nonce func() (string, error)
}

type Option func(*clientBuilder)

func WithLogger(logger core.Logger) Option {
	return func(b *clientBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *clientBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder core.MetricsRecorder) Option {
	return func(b *clientBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *clientBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *clientBuilder) {
		b.optionsResolver = resolver
	}
}

// WithTokenStore enables the explicit persistence handshake: Exchange
// saves through the store, Revoke clears it, and RestoreFromStore hydrates
// the session from it.
func WithTokenStore(store core.TokenStore) Option {
	return func(b *clientBuilder) {
		b.tokenStore = store
	}
}

func WithTransport(adapter core.TransportAdapter) Option {
	return func(b *clientBuilder) {
		b.transport = adapter
	}
}

func WithHTTPClient(client transport.HTTPDoer) Option {
	return func(b *clientBuilder) {
		b.httpClient = client
	}
}

func WithRetrier(retrier *ratelimit.Retrier) Option {
	return func(b *clientBuilder) {
		b.retrier = retrier
	}
}

func WithThrottlePolicy(policy *ratelimit.AdaptivePolicy) Option {
	return func(b *clientBuilder) {
		b.throttle = policy
	}
}

// WithNow fixes the clock used for oauth_timestamp. Tests use this.
func WithNow(now func() time.Time) Option {
	return func(b *clientBuilder) {
		b.now = now
	}
}

// WithNonce fixes the nonce source used for oauth_nonce. Tests use this.
func WithNonce(nonce func() (string, error)) Option {
	return func(b *clientBuilder) {
		b.nonce = nonce
	}
}

func defaultClientBuilder(cfg core.Config) clientBuilder {
	return clientBuilder{runtimeConfig: cfg}
}
