// Package brokerage is an OAuth 1.0a signing client for brokerage REST
// APIs. It owns the three-legged token handshake, signs every call with
// HMAC-SHA1, and retries rate-limited calls with server-hinted backoff.
package brokerage

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-brokerage/command"
	"github.com/goliatone/go-brokerage/core"
	"github.com/goliatone/go-brokerage/pipeline"
	"github.com/goliatone/go-brokerage/ratelimit"
	"github.com/goliatone/go-brokerage/session"
	"github.com/goliatone/go-brokerage/transport"
)

type Config = core.Config

type Environment = core.Environment

type ConsumerCredentials = core.ConsumerCredentials
type RequestToken = core.RequestToken
type AccessToken = core.AccessToken

type TokenStore = core.TokenStore
type TransportAdapter = core.TransportAdapter
type MetricsRecorder = core.MetricsRecorder
type Logger = core.Logger
type LoggerProvider = core.LoggerProvider

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// Client binds the token lifecycle, the signing pipeline, and the
// rate-limit retrier behind one surface. It is safe for concurrent use.
type Client struct {
	config         core.Config
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder

	session  *session.Session
	pipeline *pipeline.Pipeline
	retrier  *ratelimit.Retrier
	store    core.TokenStore
}

func New(cfg Config, opts ...Option) (*Client, error) {
	builder := defaultClientBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("brokerage", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("brokerage"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = core.NopMetricsRecorder{}
	}
	if builder.configProvider == nil {
		builder.configProvider = core.NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = core.GoOptionsResolver{}
	}

	defaults := core.DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, err
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(finalConfig.BaseURL) == "" {
		return nil, fmt.Errorf("brokerage: base_url is required")
	}

	adapter := builder.transport
	if adapter == nil {
		httpClient := builder.httpClient
		if httpClient == nil {
			httpClient = &http.Client{Timeout: finalConfig.Transport.Timeout()}
		}
		adapter = transport.NewRESTAdapter(httpClient)
	}

	sess, err := session.New(session.Config{
		Environment: finalConfig.Environment,
		Consumer:    finalConfig.Consumer(),
		Endpoints:   finalConfig.OAuth,
		Transport:   adapter,
		Logger:      logger,
		Metrics:     builder.metricsRecorder,
		Timeout:     finalConfig.Transport.Timeout(),
		Now:         builder.now,
		Nonce:       builder.nonce,
	})
	if err != nil {
		return nil, err
	}

	pipe, err := pipeline.New(pipeline.Config{
		BaseURL:     finalConfig.BaseURL,
		Environment: finalConfig.Environment,
		Auth:        sess,
		Transport:   adapter,
		Logger:      logger,
		Metrics:     builder.metricsRecorder,
		Timeout:     finalConfig.Transport.Timeout(),
		Throttle:    builder.throttle,
	})
	if err != nil {
		return nil, err
	}

	retrier := builder.retrier
	if retrier == nil {
		retrier = ratelimit.NewRetrier()
		retrier.MaxAttempts = finalConfig.Retry.MaxAttempts
		retrier.InitialBackoff = finalConfig.Retry.InitialBackoff()
		retrier.MaxBackoff = finalConfig.Retry.MaxBackoff()
		retrier.Logger = logger
	}

	return &Client{
		config:         finalConfig,
		logger:         logger,
		loggerProvider: provider,
		metrics:        builder.metricsRecorder,
		session:        sess,
		pipeline:       pipe,
		retrier:        retrier,
		store:          builder.tokenStore,
	}, nil
}

// Authorize begins the handshake: it obtains a request token and returns
// it with the URL the user must visit to approve access.
func (c *Client) Authorize(ctx context.Context) (core.RequestToken, error) {
	if c == nil || c.session == nil {
		return core.RequestToken{}, fmt.Errorf("brokerage: client is not configured")
	}
	return c.session.GetRequestToken(ctx)
}

// Exchange trades the user-entered verifier for an access token. When a
// token store is configured the new token is persisted before returning.
func (c *Client) Exchange(ctx context.Context, verifier string) (core.AccessToken, error) {
	if c == nil || c.session == nil {
		return core.AccessToken{}, fmt.Errorf("brokerage: client is not configured")
	}
	token, err := c.session.GetAccessToken(ctx, verifier)
	if err != nil {
		return core.AccessToken{}, err
	}
	if c.store != nil {
		if saveErr := c.store.Save(ctx, token); saveErr != nil {
			c.logger.Error("token store save failed", "error", saveErr.Error())
		}
	}
	return token, nil
}

func (c *Client) Renew(ctx context.Context) error {
	if c == nil || c.session == nil {
		return fmt.Errorf("brokerage: client is not configured")
	}
	return c.session.Renew(ctx)
}

// Revoke invalidates the access token with the provider and clears the
// configured token store.
func (c *Client) Revoke(ctx context.Context) error {
	if c == nil || c.session == nil {
		return fmt.Errorf("brokerage: client is not configured")
	}
	if err := c.session.Revoke(ctx); err != nil {
		return err
	}
	if c.store != nil {
		if clearErr := c.store.Clear(ctx); clearErr != nil {
			c.logger.Error("token store clear failed", "error", clearErr.Error())
		}
	}
	return nil
}

// RestoreFromStore hydrates the session with a previously persisted
// token. It reports whether a token was found.
func (c *Client) RestoreFromStore(ctx context.Context) (bool, error) {
	if c == nil || c.session == nil {
		return false, fmt.Errorf("brokerage: client is not configured")
	}
	if c.store == nil {
		return false, fmt.Errorf("brokerage: no token store configured")
	}
	token, found, err := c.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := c.session.Restore(token); err != nil {
		return false, err
	}
	return true, nil
}

// SaveToStore persists the current access token explicitly.
func (c *Client) SaveToStore(ctx context.Context) error {
	if c == nil || c.session == nil {
		return fmt.Errorf("brokerage: client is not configured")
	}
	if c.store == nil {
		return fmt.Errorf("brokerage: no token store configured")
	}
	token, ok := c.session.AccessToken()
	if !ok {
		return core.NewTokenMissingError("brokerage: no access token to persist")
	}
	return c.store.Save(ctx, token)
}

// Execute runs one signed API call through the retrier. Only
// rate-limited outcomes are retried; everything else surfaces on the
// first attempt.
func (c *Client) Execute(
	ctx context.Context,
	method string,
	endpoint string,
	params map[string]any,
	body any,
) (map[string]any, error) {
	if c == nil || c.pipeline == nil || c.retrier == nil {
		return nil, fmt.Errorf("brokerage: client is not configured")
	}
	return c.retrier.Do(ctx, operationName(method, endpoint), func(ctx context.Context) (map[string]any, error) {
		return c.pipeline.Execute(ctx, method, endpoint, params, body)
	})
}

func (c *Client) Get(ctx context.Context, endpoint string, params map[string]any) (map[string]any, error) {
	return c.Execute(ctx, http.MethodGet, endpoint, params, nil)
}

func (c *Client) Post(ctx context.Context, endpoint string, params map[string]any, body any) (map[string]any, error) {
	return c.Execute(ctx, http.MethodPost, endpoint, params, body)
}

func (c *Client) Put(ctx context.Context, endpoint string, params map[string]any, body any) (map[string]any, error) {
	return c.Execute(ctx, http.MethodPut, endpoint, params, body)
}

func (c *Client) Delete(ctx context.Context, endpoint string, params map[string]any) (map[string]any, error) {
	return c.Execute(ctx, http.MethodDelete, endpoint, params, nil)
}

func (c *Client) Authenticated() bool {
	if c == nil || c.session == nil {
		return false
	}
	return c.session.Authenticated()
}

func (c *Client) AccessToken() (core.AccessToken, bool) {
	if c == nil || c.session == nil {
		return core.AccessToken{}, false
	}
	return c.session.AccessToken()
}

func (c *Client) Session() *session.Session {
	if c == nil {
		return nil
	}
	return c.session
}

func (c *Client) Config() core.Config {
	if c == nil {
		return core.Config{}
	}
	return c.config
}

func operationName(method, endpoint string) string {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + strings.TrimSpace(endpoint)
}

var (
	_ command.CallService = (*Client)(nil)
	_ command.AuthService = (*authSurface)(nil)
)

// authSurface narrows the client to the lifecycle commands' contract.
type authSurface struct {
	client *Client
}

func (s *authSurface) GetRequestToken(ctx context.Context) (core.RequestToken, error) {
	return s.client.Authorize(ctx)
}

func (s *authSurface) GetAccessToken(ctx context.Context, verifier string) (core.AccessToken, error) {
	return s.client.Exchange(ctx, verifier)
}

func (s *authSurface) Renew(ctx context.Context) error {
	return s.client.Renew(ctx)
}

func (s *authSurface) Revoke(ctx context.Context) error {
	return s.client.Revoke(ctx)
}

// Commands wires the client into dispatchable command handlers.
func (c *Client) Commands() Commands {
	surface := &authSurface{client: c}
	return Commands{
		Authorize:   command.NewAuthorizeCommand(surface),
		Exchange:    command.NewExchangeCommand(surface),
		Renew:       command.NewRenewCommand(surface),
		Revoke:      command.NewRevokeCommand(surface),
		ExecuteCall: command.NewExecuteCallCommand(c),
	}
}

type Commands struct {
	Authorize   *command.AuthorizeCommand
	Exchange    *command.ExchangeCommand
	Renew       *command.RenewCommand
	Revoke      *command.RevokeCommand
	ExecuteCall *command.ExecuteCallCommand
}
