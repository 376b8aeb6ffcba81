package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-brokerage/core"
	"github.com/goliatone/go-brokerage/devkit"
)

func testEndpoints() core.OAuthEndpoints {
	return core.OAuthEndpoints{
		RequestTokenURL: "https://api.example.com/oauth/request_token",
		AccessTokenURL:  "https://api.example.com/oauth/access_token",
		RenewTokenURL:   "https://api.example.com/oauth/renew_access_token",
		RevokeTokenURL:  "https://api.example.com/oauth/revoke_access_token",
		AuthorizeURL:    "https://example.com/authorize",
	}
}

func newTestSession(t *testing.T, adapter core.TransportAdapter) *Session {
	t.Helper()
	sess, err := New(Config{
		Environment: "sandbox",
		Consumer:    core.ConsumerCredentials{Key: "consumer-key", Secret: "consumer-secret"},
		Endpoints:   testEndpoints(),
		Transport:   adapter,
		Now:         func() time.Time { return time.Unix(1700000000, 0).UTC() },
		Nonce:       func() (string, error) { return "fixed-nonce", nil },
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return sess
}

func TestFullHandshake(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest",
		devkit.TokenScript("abc", "xyz", nil),
		devkit.TokenScript("final", "finalsecret", nil),
	)
	sess := newTestSession(t, adapter)
	ctx := context.Background()

	if sess.Authenticated() {
		t.Fatalf("expected unauthenticated session")
	}

	requestToken, err := sess.GetRequestToken(ctx)
	if err != nil {
		t.Fatalf("request token: %v", err)
	}
	if requestToken.Token != "abc" || requestToken.Secret != "xyz" {
		t.Fatalf("unexpected request token %+v", requestToken)
	}
	if !strings.HasPrefix(requestToken.AuthorizeURL, "https://example.com/authorize?") {
		t.Fatalf("unexpected authorize url %q", requestToken.AuthorizeURL)
	}
	if !strings.Contains(requestToken.AuthorizeURL, "key=consumer-key") {
		t.Fatalf("authorize url missing consumer key: %q", requestToken.AuthorizeURL)
	}
	if !strings.Contains(requestToken.AuthorizeURL, "token=abc") {
		t.Fatalf("authorize url missing token: %q", requestToken.AuthorizeURL)
	}

	access, err := sess.GetAccessToken(ctx, "123456")
	if err != nil {
		t.Fatalf("access token: %v", err)
	}
	if access.Token != "final" || access.Secret != "finalsecret" {
		t.Fatalf("unexpected access token %+v", access)
	}
	if !sess.Authenticated() {
		t.Fatalf("expected authenticated session")
	}

	requests := adapter.Requests()
	if len(requests) != 2 {
		t.Fatalf("expected 2 provider calls, got %d", len(requests))
	}
	first := requests[0].Headers["Authorization"]
	if !strings.HasPrefix(first, "OAuth ") {
		t.Fatalf("expected signed request token call, got %q", first)
	}
	if !strings.Contains(first, `oauth_callback="oob"`) {
		t.Fatalf("request token call must use the oob callback: %q", first)
	}
	second := requests[1].Headers["Authorization"]
	if !strings.Contains(second, `oauth_token="abc"`) {
		t.Fatalf("exchange must sign with the request token: %q", second)
	}
	if !strings.Contains(second, `oauth_verifier="123456"`) {
		t.Fatalf("exchange must carry the verifier: %q", second)
	}

	header, err := sess.SignRequest("GET", "https://api.example.com/v1/accounts", nil)
	if err != nil {
		t.Fatalf("sign request: %v", err)
	}
	if !strings.Contains(header, `oauth_token="final"`) {
		t.Fatalf("api signing must use the access token: %q", header)
	}
}

func TestGetAccessTokenRequiresVerifier(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest", devkit.TokenScript("abc", "xyz", nil))
	sess := newTestSession(t, adapter)
	ctx := context.Background()

	if _, err := sess.GetRequestToken(ctx); err != nil {
		t.Fatalf("request token: %v", err)
	}
	_, err := sess.GetAccessToken(ctx, "  ")
	if err == nil {
		t.Fatalf("expected verifier rejection")
	}
	if !core.IsAuthError(err) || core.AuthStage(err) != core.StageAccessToken {
		t.Fatalf("expected access token stage auth error, got %v", err)
	}
}

func TestGetAccessTokenWithoutRequestToken(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest")
	sess := newTestSession(t, adapter)

	_, err := sess.GetAccessToken(context.Background(), "123456")
	if err == nil {
		t.Fatalf("expected missing request token rejection")
	}
	if !core.IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if adapter.CallCount() != 0 {
		t.Fatalf("must not call the provider without a request token")
	}
}

func TestRequestTokenDoesNotSurviveFailedExchange(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest",
		devkit.TokenScript("abc", "xyz", nil),
		devkit.JSONScript(401, `{"message":"verifier rejected"}`),
	)
	sess := newTestSession(t, adapter)
	ctx := context.Background()

	if _, err := sess.GetRequestToken(ctx); err != nil {
		t.Fatalf("request token: %v", err)
	}
	if _, err := sess.GetAccessToken(ctx, "bad"); err == nil {
		t.Fatalf("expected exchange failure")
	}
	if sess.Authenticated() {
		t.Fatalf("failed exchange must not authenticate")
	}
}

func TestRenew(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest",
		devkit.TokenScript("abc", "xyz", nil),
		devkit.TokenScript("final", "finalsecret", nil),
		devkit.JSONScript(200, `{}`),
	)
	sess := newTestSession(t, adapter)
	ctx := context.Background()

	if err := sess.Renew(ctx); !core.IsTokenMissing(err) {
		t.Fatalf("expected token missing before authentication, got %v", err)
	}

	if _, err := sess.GetRequestToken(ctx); err != nil {
		t.Fatalf("request token: %v", err)
	}
	if _, err := sess.GetAccessToken(ctx, "123456"); err != nil {
		t.Fatalf("access token: %v", err)
	}
	if err := sess.Renew(ctx); err != nil {
		t.Fatalf("renew: %v", err)
	}

	access, ok := sess.AccessToken()
	if !ok || access.Token != "final" {
		t.Fatalf("renew must not change the held token, got %+v", access)
	}
}

func TestRenewExpiredToken(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest",
		devkit.JSONScript(401, `{"message":"token expired"}`),
	)
	sess := newTestSession(t, adapter)

	if err := sess.Restore(core.AccessToken{Token: "stale", Secret: "stale-secret"}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	err := sess.Renew(context.Background())
	if !core.IsTokenExpired(err) {
		t.Fatalf("expected token expired error, got %v", err)
	}
	if !sess.Authenticated() {
		t.Fatalf("renewal failure must not drop the token; the caller decides")
	}
}

func TestRevoke(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest",
		devkit.JSONScript(200, `{}`),
	)
	sess := newTestSession(t, adapter)
	ctx := context.Background()

	if err := sess.Revoke(ctx); !core.IsTokenMissing(err) {
		t.Fatalf("expected token missing before authentication, got %v", err)
	}

	if err := sess.Restore(core.AccessToken{Token: "final", Secret: "finalsecret"}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := sess.Revoke(ctx); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if sess.Authenticated() {
		t.Fatalf("revoke must clear the access token")
	}
	if _, err := sess.SignRequest("GET", "https://api.example.com/v1/accounts", nil); !core.IsTokenMissing(err) {
		t.Fatalf("expected token missing after revoke, got %v", err)
	}
}

func TestRevokeFailureKeepsToken(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest",
		devkit.JSONScript(500, `{"message":"try later"}`),
	)
	sess := newTestSession(t, adapter)

	if err := sess.Restore(core.AccessToken{Token: "final", Secret: "finalsecret"}); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := sess.Revoke(context.Background()); err == nil {
		t.Fatalf("expected revoke failure")
	}
	if !sess.Authenticated() {
		t.Fatalf("failed revoke must keep the token")
	}
}

func TestRestoreRejectsEmptyToken(t *testing.T) {
	sess := newTestSession(t, devkit.NewFakeTransportAdapter("rest"))
	if err := sess.Restore(core.AccessToken{}); err == nil {
		t.Fatalf("expected empty token rejection")
	}
}

func TestMalformedTokenResponse(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter("rest",
		devkit.JSONScript(200, `oauth_token=abc`),
	)
	sess := newTestSession(t, adapter)

	_, err := sess.GetRequestToken(context.Background())
	if err == nil {
		t.Fatalf("expected malformed response rejection")
	}
	if !core.IsAuthError(err) || core.AuthStage(err) != core.StageRequestToken {
		t.Fatalf("expected request token stage auth error, got %v", err)
	}
}
