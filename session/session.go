package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-brokerage/auth"
	"github.com/goliatone/go-brokerage/core"
)

const defaultCallTimeout = 30 * time.Second

type Config struct {
	Environment string
	Consumer    core.ConsumerCredentials
	Endpoints   core.OAuthEndpoints
	Transport   core.TransportAdapter
	Logger      core.Logger
	Metrics     core.MetricsRecorder
	Timeout     time.Duration
	Now         func() time.Time
	Nonce       func() (string, error)
}

// Session owns the credential lifecycle for one environment:
// UNAUTHENTICATED -> request token issued -> AUTHENTICATED -> renew/revoke.
// At most one access token is held at a time, and a request token never
// outlives its exchange attempt.
//
// The mutex protects the in-memory credential fields; it does not close
// the logical race between a renew/revoke and an in-flight signing. The
// provider is authoritative for credential validity, so that race
// surfaces as a transient auth failure, never as corrupted state.
type Session struct {
	mu sync.RWMutex

	environment string
	consumer    core.ConsumerCredentials
	endpoints   core.OAuthEndpoints
	signer      *auth.Signer
	transport   core.TransportAdapter
	logger      core.Logger
	metrics     core.MetricsRecorder
	timeout     time.Duration

	requestToken *core.RequestToken
	access       *core.AccessToken
}

func New(cfg Config) (*Session, error) {
	if err := cfg.Consumer.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Endpoints.Validate(); err != nil {
		return nil, err
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("session: transport adapter is required")
	}
	environment := strings.TrimSpace(strings.ToLower(cfg.Environment))
	if environment == "" {
		environment = string(core.EnvironmentSandbox)
	}

	signer := auth.NewSigner(cfg.Consumer.Key, cfg.Consumer.Secret)
	if cfg.Now != nil {
		signer.Now = cfg.Now
	}
	if cfg.Nonce != nil {
		signer.Nonce = cfg.Nonce
	}

	logger := cfg.Logger
	if logger == nil {
		logger = glog.Nop()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	return &Session{
		environment: environment,
		consumer:    cfg.Consumer,
		endpoints:   cfg.Endpoints,
		signer:      signer,
		transport:   cfg.Transport,
		logger:      logger,
		metrics:     metrics,
		timeout:     timeout,
	}, nil
}

// GetRequestToken starts the authorization flow. It signs with an empty
// token secret and the out-of-band callback marker, and replaces any
// previously issued request token.
func (s *Session) GetRequestToken(ctx context.Context) (core.RequestToken, error) {
	startedAt := time.Now().UTC()
	token, err := s.getRequestToken(ctx)
	core.Observe(ctx, s.logger, s.metrics, startedAt, "request_token", err, map[string]any{
		"environment": s.environment,
		"stage":       core.StageRequestToken,
	})
	return token, err
}

func (s *Session) getRequestToken(ctx context.Context) (core.RequestToken, error) {
	res, err := s.oauthCall(ctx, http.MethodPost, s.endpoints.RequestTokenURL, auth.SignInput{
		Callback: auth.CallbackOutOfBand,
	})
	if err != nil {
		return core.RequestToken{}, core.WrapAuthError(err, core.StageRequestToken, "request token call failed")
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return core.RequestToken{}, core.NewAuthError(
			core.StageRequestToken,
			fmt.Sprintf("request token endpoint returned status %d", res.StatusCode),
		)
	}
	token, secret, err := parseTokenBody(res.Body)
	if err != nil {
		return core.RequestToken{}, core.WrapAuthError(err, core.StageRequestToken, "request token response is invalid")
	}

	issued := core.RequestToken{
		Token:        token,
		Secret:       secret,
		AuthorizeURL: s.authorizeURL(token),
	}
	s.mu.Lock()
	s.requestToken = &issued
	s.mu.Unlock()
	return issued, nil
}

// GetAccessToken exchanges the held request token and the user-supplied
// verifier for the access credential. The request token is cleared on
// success; it never survives its exchange attempt.
func (s *Session) GetAccessToken(ctx context.Context, verifier string) (core.AccessToken, error) {
	startedAt := time.Now().UTC()
	token, err := s.getAccessToken(ctx, verifier)
	core.Observe(ctx, s.logger, s.metrics, startedAt, "access_token", err, map[string]any{
		"environment": s.environment,
		"stage":       core.StageAccessToken,
	})
	return token, err
}

func (s *Session) getAccessToken(ctx context.Context, verifier string) (core.AccessToken, error) {
	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return core.AccessToken{}, core.NewAuthError(core.StageAccessToken, "verifier is required")
	}

	s.mu.RLock()
	requestToken := s.requestToken
	s.mu.RUnlock()
	if requestToken == nil {
		return core.AccessToken{}, core.NewAuthError(core.StageAccessToken, "no request token")
	}

	res, err := s.oauthCall(ctx, http.MethodPost, s.endpoints.AccessTokenURL, auth.SignInput{
		Token:       requestToken.Token,
		TokenSecret: requestToken.Secret,
		Verifier:    verifier,
	})
	if err != nil {
		return core.AccessToken{}, core.WrapAuthError(err, core.StageAccessToken, "access token call failed")
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return core.AccessToken{}, core.NewAuthError(
			core.StageAccessToken,
			fmt.Sprintf("access token endpoint returned status %d", res.StatusCode),
		)
	}
	token, secret, err := parseTokenBody(res.Body)
	if err != nil {
		return core.AccessToken{}, core.WrapAuthError(err, core.StageAccessToken, "access token response is invalid")
	}

	access := core.AccessToken{Token: token, Secret: secret}
	s.mu.Lock()
	s.access = &access
	s.requestToken = nil
	s.mu.Unlock()
	return access, nil
}

// Renew extends the provider-side expiry of the held access token. The
// token value itself does not change.
func (s *Session) Renew(ctx context.Context) error {
	startedAt := time.Now().UTC()
	err := s.renew(ctx)
	core.Observe(ctx, s.logger, s.metrics, startedAt, "renew_token", err, map[string]any{
		"environment": s.environment,
		"stage":       core.StageRenewal,
	})
	return err
}

func (s *Session) renew(ctx context.Context) error {
	access, ok := s.AccessToken()
	if !ok {
		return core.NewTokenMissingError("not authenticated")
	}
	if strings.TrimSpace(s.endpoints.RenewTokenURL) == "" {
		return core.NewAuthError(core.StageRenewal, "renew endpoint is not configured")
	}

	res, err := s.oauthCall(ctx, http.MethodGet, s.endpoints.RenewTokenURL, auth.SignInput{
		Token:       access.Token,
		TokenSecret: access.Secret,
	})
	if err != nil {
		return core.WrapAuthError(err, core.StageRenewal, "renew call failed")
	}
	if res.StatusCode == http.StatusUnauthorized {
		return core.NewTokenExpiredError("access token rejected during renewal")
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return core.NewAuthError(
			core.StageRenewal,
			fmt.Sprintf("renew endpoint returned status %d", res.StatusCode),
		)
	}
	return nil
}

// Revoke invalidates the held access token and returns the session to the
// unauthenticated state.
func (s *Session) Revoke(ctx context.Context) error {
	startedAt := time.Now().UTC()
	err := s.revoke(ctx)
	core.Observe(ctx, s.logger, s.metrics, startedAt, "revoke_token", err, map[string]any{
		"environment": s.environment,
		"stage":       core.StageRevocation,
	})
	return err
}

func (s *Session) revoke(ctx context.Context) error {
	access, ok := s.AccessToken()
	if !ok {
		return core.NewTokenMissingError("not authenticated")
	}
	if strings.TrimSpace(s.endpoints.RevokeTokenURL) == "" {
		return core.NewAuthError(core.StageRevocation, "revoke endpoint is not configured")
	}

	res, err := s.oauthCall(ctx, http.MethodGet, s.endpoints.RevokeTokenURL, auth.SignInput{
		Token:       access.Token,
		TokenSecret: access.Secret,
	})
	if err != nil {
		return core.WrapAuthError(err, core.StageRevocation, "revoke call failed")
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return core.NewAuthError(
			core.StageRevocation,
			fmt.Sprintf("revoke endpoint returned status %d", res.StatusCode),
		)
	}

	s.mu.Lock()
	s.access = nil
	s.mu.Unlock()
	return nil
}

// SignRequest produces the Authorization header for an authenticated API
// call using the current access credential.
func (s *Session) SignRequest(method, requestURL string, params map[string]string) (string, error) {
	access, ok := s.AccessToken()
	if !ok {
		return "", core.NewTokenMissingError("not authenticated")
	}
	return s.signer.AuthorizationHeader(auth.SignInput{
		Method:      method,
		URL:         requestURL,
		Params:      params,
		Token:       access.Token,
		TokenSecret: access.Secret,
	})
}

// Restore installs a previously persisted access token, e.g. one loaded
// from a TokenStore. Persistence stays an explicit caller operation.
func (s *Session) Restore(token core.AccessToken) error {
	if token.Empty() {
		return fmt.Errorf("session: cannot restore an empty access token")
	}
	s.mu.Lock()
	s.access = &token
	s.requestToken = nil
	s.mu.Unlock()
	return nil
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access != nil
}

func (s *Session) AccessToken() (core.AccessToken, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.access == nil {
		return core.AccessToken{}, false
	}
	return *s.access, true
}

func (s *Session) Environment() string {
	return s.environment
}

func (s *Session) oauthCall(ctx context.Context, method, endpoint string, in auth.SignInput) (core.TransportResponse, error) {
	in.Method = method
	in.URL = endpoint
	header, err := s.signer.AuthorizationHeader(in)
	if err != nil {
		return core.TransportResponse{}, err
	}
	return s.transport.Do(ctx, core.TransportRequest{
		Method: method,
		URL:    endpoint,
		Headers: map[string]string{
			"Authorization": header,
		},
		Timeout: s.timeout,
	})
}

func (s *Session) authorizeURL(token string) string {
	values := url.Values{}
	values.Set("key", s.consumer.Key)
	values.Set("token", token)
	base := strings.TrimSpace(s.endpoints.AuthorizeURL)
	if strings.Contains(base, "?") {
		return base + "&" + values.Encode()
	}
	return base + "?" + values.Encode()
}

// parseTokenBody reads the url-encoded token exchange body the provider
// returns for both request-token and access-token calls.
func parseTokenBody(body []byte) (token string, secret string, err error) {
	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return "", "", fmt.Errorf("session: parse token response: %w", err)
	}
	token = strings.TrimSpace(values.Get("oauth_token"))
	secret = strings.TrimSpace(values.Get("oauth_token_secret"))
	if token == "" {
		return "", "", fmt.Errorf("session: token response missing oauth_token")
	}
	if secret == "" {
		return "", "", fmt.Errorf("session: token response missing oauth_token_secret")
	}
	return token, secret, nil
}
