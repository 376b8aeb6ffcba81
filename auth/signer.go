package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureMethod = "HMAC-SHA1"
	Version         = "1.0"

	// CallbackOutOfBand asks the provider to display the verifier to the
	// user instead of redirecting.
	CallbackOutOfBand = "oob"

	nonceByteLength = 16
)

type SignInput struct {
	Method      string
	URL         string
	Params      map[string]string
	Token       string
	TokenSecret string
	Verifier    string
	Callback    string
}

// Signature is one computed signing outcome. BaseString is exposed so
// callers can verify the HMAC independently.
type Signature struct {
	Value      string
	Params     map[string]string
	BaseString string
}

// Signer computes OAuth 1.0a signatures for one consumer credential pair.
// Now and Nonce are injectable for deterministic tests; the defaults are a
// UTC clock and 16 bytes of crypto/rand entropy per call.
type Signer struct {
	ConsumerKey    string
	ConsumerSecret string
	Now            func() time.Time
	Nonce          func() (string, error)
}

func NewSigner(consumerKey, consumerSecret string) *Signer {
	return &Signer{
		ConsumerKey:    strings.TrimSpace(consumerKey),
		ConsumerSecret: strings.TrimSpace(consumerSecret),
		Now:            func() time.Time { return time.Now().UTC() },
		Nonce:          GenerateNonce,
	}
}

// Sign computes the signature for the given request. The output is a pure
// function of its inputs; fresh nonce and timestamp values per call keep
// any two produced signatures distinct.
func (s *Signer) Sign(in SignInput) (Signature, error) {
	if s == nil {
		return Signature{}, fmt.Errorf("auth: signer is nil")
	}
	if strings.TrimSpace(s.ConsumerKey) == "" {
		return Signature{}, fmt.Errorf("auth: consumer key is required")
	}
	method := strings.ToUpper(strings.TrimSpace(in.Method))
	if method == "" {
		return Signature{}, fmt.Errorf("auth: http method is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(in.URL))
	if err != nil {
		return Signature{}, fmt.Errorf("auth: parse request url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return Signature{}, fmt.Errorf("auth: request url must be absolute")
	}

	oauthParams, err := s.oauthParams(in)
	if err != nil {
		return Signature{}, err
	}

	all := map[string]string{}
	for key, value := range in.Params {
		if strings.TrimSpace(key) == "" {
			continue
		}
		all[key] = value
	}
	for key, values := range parsed.Query() {
		for _, value := range values {
			all[key] = value
		}
	}
	for key, value := range oauthParams {
		all[key] = value
	}

	baseString := signatureBaseString(method, baseURL(parsed), all)
	key := PercentEncode(s.ConsumerSecret) + "&" + PercentEncode(in.TokenSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(baseString))
	value := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	oauthParams["oauth_signature"] = value
	return Signature{
		Value:      value,
		Params:     oauthParams,
		BaseString: baseString,
	}, nil
}

// AuthorizationHeader signs the request and renders the OAuth header:
// percent-encoded values, pairs comma-separated and sorted by key.
func (s *Signer) AuthorizationHeader(in SignInput) (string, error) {
	signature, err := s.Sign(in)
	if err != nil {
		return "", err
	}
	keys := make([]string, 0, len(signature.Params))
	for key := range signature.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%q", PercentEncode(key), PercentEncode(signature.Params[key])))
	}
	return "OAuth " + strings.Join(pairs, ", "), nil
}

func (s *Signer) oauthParams(in SignInput) (map[string]string, error) {
	nonceSource := s.Nonce
	if nonceSource == nil {
		nonceSource = GenerateNonce
	}
	nonce, err := nonceSource()
	if err != nil {
		return nil, fmt.Errorf("auth: generate nonce: %w", err)
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}

	params := map[string]string{
		"oauth_consumer_key":     s.ConsumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": SignatureMethod,
		"oauth_timestamp":        strconv.FormatInt(now.Unix(), 10),
		"oauth_version":          Version,
	}
	if token := strings.TrimSpace(in.Token); token != "" {
		params["oauth_token"] = token
	}
	if verifier := strings.TrimSpace(in.Verifier); verifier != "" {
		params["oauth_verifier"] = verifier
	}
	if callback := strings.TrimSpace(in.Callback); callback != "" {
		params["oauth_callback"] = callback
	}
	return params, nil
}

func signatureBaseString(method string, base string, params map[string]string) string {
	type pair struct {
		key   string
		value string
	}
	encoded := make([]pair, 0, len(params))
	for key, value := range params {
		encoded = append(encoded, pair{key: PercentEncode(key), value: PercentEncode(value)})
	}
	sort.Slice(encoded, func(i, j int) bool {
		if encoded[i].key != encoded[j].key {
			return encoded[i].key < encoded[j].key
		}
		return encoded[i].value < encoded[j].value
	})

	parts := make([]string, 0, len(encoded))
	for _, item := range encoded {
		parts = append(parts, item.key+"="+item.value)
	}
	canonical := strings.Join(parts, "&")

	return strings.Join([]string{
		method,
		PercentEncode(base),
		PercentEncode(canonical),
	}, "&")
}

// baseURL strips the query string and fragment; the scheme and host are
// already lowercased by url.Parse.
func baseURL(parsed *url.URL) string {
	stripped := *parsed
	stripped.RawQuery = ""
	stripped.Fragment = ""
	stripped.RawFragment = ""
	return stripped.String()
}

// PercentEncode applies the RFC 3986 unreserved-set rule byte-wise: only
// letters, digits, and -._~ pass through. Space becomes %20, never +.
func PercentEncode(input string) string {
	var out strings.Builder
	out.Grow(len(input))
	for i := 0; i < len(input); i++ {
		c := input[i]
		if isUnreserved(c) {
			out.WriteByte(c)
			continue
		}
		out.WriteString(fmt.Sprintf("%%%02X", c))
	}
	return out.String()
}

func isUnreserved(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z':
		return true
	case c >= 'a' && c <= 'z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '-' || c == '.' || c == '_' || c == '~':
		return true
	default:
		return false
	}
}

// GenerateNonce returns 16 bytes of entropy, hex-encoded.
func GenerateNonce() (string, error) {
	raw := make([]byte, nonceByteLength)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
