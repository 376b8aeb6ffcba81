package brokerage

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-brokerage/command"
	"github.com/goliatone/go-brokerage/core"
	"github.com/goliatone/go-brokerage/devkit"
	"github.com/goliatone/go-brokerage/ratelimit"
)

func testClientConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://api.example.com"
	cfg.ConsumerKey = "consumer-key"
	cfg.ConsumerSecret = "consumer-secret"
	cfg.OAuth = core.OAuthEndpoints{
		RequestTokenURL: "https://api.example.com/oauth/request_token",
		AccessTokenURL:  "https://api.example.com/oauth/access_token",
		RenewTokenURL:   "https://api.example.com/oauth/renew_access_token",
		RevokeTokenURL:  "https://api.example.com/oauth/revoke_access_token",
		AuthorizeURL:    "https://example.com/authorize",
	}
	return cfg
}

func newTestClient(t *testing.T, adapter core.TransportAdapter, opts ...Option) *Client {
	t.Helper()
	retrier := ratelimit.NewRetrier()
	retrier.Sleep = func(context.Context, time.Duration) error { return nil }

	base := []Option{
		WithTransport(adapter),
		WithRetrier(retrier),
		WithNow(func() time.Time { return time.Unix(1700000000, 0).UTC() }),
		WithNonce(func() (string, error) { return "fixed-nonce", nil }),
	}
	client, err := New(testClientConfig(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClientRequiresBaseURL(t *testing.T) {
	cfg := testClientConfig()
	cfg.BaseURL = ""
	if _, err := New(cfg, WithTransport(devkit.NewFakeTransportAdapter("rest"))); err == nil {
		t.Fatalf("expected base url rejection")
	}
}

func TestClientHandshakeAndCall(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest",
		devkit.TokenScript("abc", "xyz", nil),
		devkit.TokenScript("final", "finalsecret", nil),
		devkit.JSONScript(200, `{"AccountListResponse":{"accounts":[]}}`),
	)
	store := core.NewMemoryTokenStore()
	client := newTestClient(t, adapter, WithTokenStore(store))
	ctx := context.Background()

	requestToken, err := client.Authorize(ctx)
	if err != nil {
		t.Fatalf("authorize: %v", err)
	}
	if requestToken.Token != "abc" {
		t.Fatalf("unexpected request token %+v", requestToken)
	}

	access, err := client.Exchange(ctx, "123456")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if access.Token != "final" || access.Secret != "finalsecret" {
		t.Fatalf("unexpected access token %+v", access)
	}
	if !client.Authenticated() {
		t.Fatalf("expected authenticated client")
	}

	stored, found, err := store.Load(ctx)
	if err != nil || !found {
		t.Fatalf("expected persisted token, found=%v err=%v", found, err)
	}
	if stored.Token != "final" {
		t.Fatalf("unexpected stored token %+v", stored)
	}

	result, err := client.Get(ctx, "/v1/accounts/list", nil)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := result["AccountListResponse"]; !ok {
		t.Fatalf("unexpected result %v", result)
	}
}

func TestClientRetriesRateLimits(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest",
		devkit.RateLimitScript(1),
		devkit.RateLimitScript(1),
		devkit.JSONScript(200, `{"ok":true}`),
	)
	client := newTestClient(t, adapter)
	if err := client.Session().Restore(core.AccessToken{Token: "final", Secret: "finalsecret"}); err != nil {
		t.Fatalf("restore: %v", err)
	}

	result, err := client.Get(context.Background(), "/v1/market/quote", map[string]any{"symbol": "GOOG"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if result["ok"] != true {
		t.Fatalf("unexpected result %v", result)
	}
	if adapter.CallCount() != 3 {
		t.Fatalf("expected 3 transport calls, got %d", adapter.CallCount())
	}
}

func TestClientStopsRetryingAfterFiveAttempts(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest",
		devkit.RateLimitScript(1),
	)
	client := newTestClient(t, adapter)
	if err := client.Session().Restore(core.AccessToken{Token: "final", Secret: "finalsecret"}); err != nil {
		t.Fatalf("restore: %v", err)
	}

	_, err := client.Get(context.Background(), "/v1/market/quote", nil)
	if !core.IsRateLimited(err) {
		t.Fatalf("expected rate limit exhaustion, got %v", err)
	}
	if adapter.CallCount() != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", adapter.CallCount())
	}
}

func TestClientCallWithoutAuthentication(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest")
	client := newTestClient(t, adapter)

	_, err := client.Get(context.Background(), "/v1/accounts/list", nil)
	if !core.IsTokenMissing(err) {
		t.Fatalf("expected token missing, got %v", err)
	}
	if adapter.CallCount() != 0 {
		t.Fatalf("must not call the provider unauthenticated")
	}
}

func TestClientRestoreFromStore(t *testing.T) {
	store := core.NewMemoryTokenStore()
	ctx := context.Background()
	if err := store.Save(ctx, core.AccessToken{Token: "final", Secret: "finalsecret"}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	client := newTestClient(t, devkit.NewFakeTransportAdapter("rest"), WithTokenStore(store))
	found, err := client.RestoreFromStore(ctx)
	if err != nil {
		t.Fatalf("restore from store: %v", err)
	}
	if !found {
		t.Fatalf("expected stored token")
	}
	if !client.Authenticated() {
		t.Fatalf("expected authenticated client after restore")
	}

	empty := core.NewMemoryTokenStore()
	fresh := newTestClient(t, devkit.NewFakeTransportAdapter("rest"), WithTokenStore(empty))
	found, err = fresh.RestoreFromStore(ctx)
	if err != nil {
		t.Fatalf("restore from empty store: %v", err)
	}
	if found || fresh.Authenticated() {
		t.Fatalf("empty store must leave the client unauthenticated")
	}
}

func TestClientRevokeClearsStore(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest",
		devkit.JSONScript(200, `{}`),
	)
	store := core.NewMemoryTokenStore()
	ctx := context.Background()
	if err := store.Save(ctx, core.AccessToken{Token: "final", Secret: "finalsecret"}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	client := newTestClient(t, adapter, WithTokenStore(store))
	if _, err := client.RestoreFromStore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := client.Revoke(ctx); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if client.Authenticated() {
		t.Fatalf("expected unauthenticated client after revoke")
	}
	if _, found, _ := store.Load(ctx); found {
		t.Fatalf("expected cleared store after revoke")
	}
}

func TestClientRenewExpired(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest",
		devkit.JSONScript(401, `{"message":"token expired"}`),
	)
	client := newTestClient(t, adapter)
	if err := client.Session().Restore(core.AccessToken{Token: "stale", Secret: "s"}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := client.Renew(context.Background()); !core.IsTokenExpired(err) {
		t.Fatalf("expected token expired, got %v", err)
	}
}

func TestClientRuntimeConfigOverridesDefaults(t *testing.T) {
	cfg := testClientConfig()
	cfg.Retry.MaxAttempts = 2
	client, err := New(cfg, WithTransport(devkit.NewFakeTransportAdapter("rest", devkit.RateLimitScript(1))))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.Config().Retry.MaxAttempts != 2 {
		t.Fatalf("expected runtime retry override, got %d", client.Config().Retry.MaxAttempts)
	}
}

func TestClientCommands(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest",
		devkit.TokenScript("abc", "xyz", nil),
	)
	client := newTestClient(t, adapter)
	commands := client.Commands()
	if commands.Authorize == nil || commands.Exchange == nil || commands.ExecuteCall == nil {
		t.Fatalf("expected wired commands")
	}
	if err := commands.Authorize.Execute(context.Background(), command.AuthorizeMessage{}); err != nil {
		t.Fatalf("authorize command: %v", err)
	}
}
