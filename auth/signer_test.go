package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"
)

func newTestSigner() *Signer {
	signer := NewSigner("consumer-key", "consumer-secret")
	signer.Now = func() time.Time { return time.Unix(1700000000, 0).UTC() }
	signer.Nonce = func() (string, error) { return "fixed-nonce", nil }
	return signer
}

func TestPercentEncode(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"abcXYZ012", "abcXYZ012"},
		{"-._~", "-._~"},
		{"hello world", "hello%20world"},
		{"a+b", "a%2Bb"},
		{"a/b:c", "a%2Fb%3Ac"},
		{"k=v&x=y", "k%3Dv%26x%3Dy"},
		{"é", "%C3%A9"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := PercentEncode(tc.in); got != tc.out {
			t.Fatalf("PercentEncode(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestSignDeterministicWithFixedInputs(t *testing.T) {
	signer := newTestSigner()
	in := SignInput{
		Method: "GET",
		URL:    "https://api.example.com/v1/accounts",
		Params: map[string]string{"count": "25"},
	}

	first, err := signer.Sign(in)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	second, err := signer.Sign(in)
	if err != nil {
		t.Fatalf("sign again: %v", err)
	}
	if first.Value != second.Value {
		t.Fatalf("expected identical signatures, got %q and %q", first.Value, second.Value)
	}
	if first.BaseString != second.BaseString {
		t.Fatalf("expected identical base strings")
	}
}

func TestSignChangesWithAnyInput(t *testing.T) {
	signer := newTestSigner()
	base := SignInput{
		Method:      "GET",
		URL:         "https://api.example.com/v1/accounts",
		Params:      map[string]string{"count": "25"},
		Token:       "token",
		TokenSecret: "token-secret",
	}
	reference, err := signer.Sign(base)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	variants := []SignInput{
		{Method: "POST", URL: base.URL, Params: base.Params, Token: base.Token, TokenSecret: base.TokenSecret},
		{Method: base.Method, URL: "https://api.example.com/v1/orders", Params: base.Params, Token: base.Token, TokenSecret: base.TokenSecret},
		{Method: base.Method, URL: base.URL, Params: map[string]string{"count": "50"}, Token: base.Token, TokenSecret: base.TokenSecret},
		{Method: base.Method, URL: base.URL, Params: base.Params, Token: base.Token, TokenSecret: "other-secret"},
	}
	for i, variant := range variants {
		got, err := signer.Sign(variant)
		if err != nil {
			t.Fatalf("sign variant %d: %v", i, err)
		}
		if got.Value == reference.Value {
			t.Fatalf("variant %d produced the reference signature", i)
		}
	}
}

func TestSignatureBaseStringShape(t *testing.T) {
	signer := newTestSigner()
	signature, err := signer.Sign(SignInput{
		Method: "get",
		URL:    "https://api.example.com/v1/accounts?b=2",
		Params: map[string]string{"a": "1"},
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parts := strings.Split(signature.BaseString, "&")
	if len(parts) != 3 {
		t.Fatalf("expected 3 base string segments, got %d: %q", len(parts), signature.BaseString)
	}
	if parts[0] != "GET" {
		t.Fatalf("expected uppercased method, got %q", parts[0])
	}
	if parts[1] != PercentEncode("https://api.example.com/v1/accounts") {
		t.Fatalf("expected query-stripped base url, got %q", parts[1])
	}

	canonical, err := url.QueryUnescape(parts[2])
	if err != nil {
		t.Fatalf("unescape canonical params: %v", err)
	}
	for _, expected := range []string{"a=1", "b=2", "oauth_consumer_key=consumer-key", "oauth_nonce=fixed-nonce", "oauth_signature_method=HMAC-SHA1", "oauth_timestamp=1700000000", "oauth_version=1.0"} {
		if !strings.Contains(canonical, expected) {
			t.Fatalf("canonical params missing %q: %q", expected, canonical)
		}
	}
	if strings.Contains(canonical, "oauth_signature=") {
		t.Fatalf("signature must not sign itself: %q", canonical)
	}

	pairs := strings.Split(canonical, "&")
	if !sort.SliceIsSorted(pairs, func(i, j int) bool { return pairs[i] < pairs[j] }) {
		t.Fatalf("canonical params are not sorted: %v", pairs)
	}
}

func TestSignMatchesIndependentHMAC(t *testing.T) {
	signer := newTestSigner()
	signature, err := signer.Sign(SignInput{
		Method:      "POST",
		URL:         "https://api.example.com/oauth/access_token",
		Token:       "request-token",
		TokenSecret: "request-secret",
		Verifier:    "123456",
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	key := PercentEncode("consumer-secret") + "&" + PercentEncode("request-secret")
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(signature.BaseString))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if signature.Value != expected {
		t.Fatalf("signature %q does not match recomputed hmac %q", signature.Value, expected)
	}
}

func TestOAuthParamInclusion(t *testing.T) {
	signer := newTestSigner()

	signature, err := signer.Sign(SignInput{
		Method:   "POST",
		URL:      "https://api.example.com/oauth/request_token",
		Callback: CallbackOutOfBand,
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signature.Params["oauth_callback"] != "oob" {
		t.Fatalf("expected oob callback, got %q", signature.Params["oauth_callback"])
	}
	if _, ok := signature.Params["oauth_token"]; ok {
		t.Fatalf("request token call must not carry oauth_token")
	}

	signature, err = signer.Sign(SignInput{
		Method:      "POST",
		URL:         "https://api.example.com/oauth/access_token",
		Token:       "request-token",
		TokenSecret: "request-secret",
		Verifier:    "123456",
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if signature.Params["oauth_token"] != "request-token" {
		t.Fatalf("expected oauth_token, got %q", signature.Params["oauth_token"])
	}
	if signature.Params["oauth_verifier"] != "123456" {
		t.Fatalf("expected oauth_verifier, got %q", signature.Params["oauth_verifier"])
	}
}

func TestAuthorizationHeaderFormat(t *testing.T) {
	signer := newTestSigner()
	header, err := signer.AuthorizationHeader(SignInput{
		Method: "GET",
		URL:    "https://api.example.com/v1/accounts",
		Token:  "access-token",
	})
	if err != nil {
		t.Fatalf("authorization header: %v", err)
	}
	if !strings.HasPrefix(header, "OAuth ") {
		t.Fatalf("expected OAuth prefix, got %q", header)
	}

	pairs := strings.Split(strings.TrimPrefix(header, "OAuth "), ", ")
	keys := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			t.Fatalf("malformed header pair %q", pair)
		}
		if !strings.HasPrefix(value, `"`) || !strings.HasSuffix(value, `"`) {
			t.Fatalf("header value not quoted: %q", pair)
		}
		keys = append(keys, key)
	}
	if !sort.StringsAreSorted(keys) {
		t.Fatalf("header pairs are not sorted by key: %v", keys)
	}
	if !strings.Contains(header, `oauth_signature_method="HMAC-SHA1"`) {
		t.Fatalf("missing signature method: %q", header)
	}
	if !strings.Contains(header, `oauth_token="access-token"`) {
		t.Fatalf("missing token: %q", header)
	}
	if !strings.Contains(header, `oauth_signature="`) {
		t.Fatalf("missing signature: %q", header)
	}
}

func TestSignValidation(t *testing.T) {
	signer := newTestSigner()

	if _, err := signer.Sign(SignInput{URL: "https://api.example.com"}); err == nil {
		t.Fatalf("expected error for missing method")
	}
	if _, err := signer.Sign(SignInput{Method: "GET", URL: "/relative/path"}); err == nil {
		t.Fatalf("expected error for relative url")
	}

	empty := NewSigner("", "secret")
	if _, err := empty.Sign(SignInput{Method: "GET", URL: "https://api.example.com"}); err == nil {
		t.Fatalf("expected error for missing consumer key")
	}
}

func TestGenerateNonce(t *testing.T) {
	first, err := GenerateNonce()
	if err != nil {
		t.Fatalf("generate nonce: %v", err)
	}
	second, err := GenerateNonce()
	if err != nil {
		t.Fatalf("generate nonce: %v", err)
	}
	if len(first) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(first))
	}
	if first == second {
		t.Fatalf("expected distinct nonces")
	}
}
