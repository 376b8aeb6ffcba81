package core

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorBadInput        = "BROKERAGE_BAD_INPUT"
	ErrorAuthFailed      = "BROKERAGE_AUTH_FAILED"
	ErrorTokenMissing    = "BROKERAGE_TOKEN_MISSING"
	ErrorTokenExpired    = "BROKERAGE_TOKEN_EXPIRED"
	ErrorRateLimited     = "BROKERAGE_RATE_LIMITED"
	ErrorAPIFailure      = "BROKERAGE_API_ERROR"
	ErrorExternalFailure = "BROKERAGE_EXTERNAL_FAILURE"
	ErrorInternal        = "BROKERAGE_INTERNAL"
)

// Lifecycle stages carried by auth errors so callers can restart the
// failed step without parsing messages.
const (
	StageRequestToken = "request_token"
	StageAccessToken  = "access_token"
	StageRenewal      = "renewal"
	StageRevocation   = "revocation"
)

const (
	metadataStage           = "stage"
	metadataStatusCode      = "status_code"
	metadataRetryAfterSec   = "retry_after_s"
	metadataProviderMessage = "provider_message"
	metadataRawBody         = "raw_body"
)

// NewAuthError reports a failed lifecycle step. Auth errors are never
// retried; the caller restarts the flow at the named stage.
func NewAuthError(stage string, message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorAuthFailed).
		WithMetadata(map[string]any{metadataStage: strings.TrimSpace(stage)})
}

func WrapAuthError(source error, stage string, message string) *goerrors.Error {
	if source == nil {
		return NewAuthError(stage, message)
	}
	return goerrors.Wrap(source, goerrors.CategoryAuth, message).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorAuthFailed).
		WithMetadata(map[string]any{metadataStage: strings.TrimSpace(stage)})
}

// NewTokenMissingError means no access credential is held: the caller has
// never authenticated, or has revoked.
func NewTokenMissingError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorTokenMissing)
}

// NewTokenExpiredError means a held credential was rejected by the
// provider; the user must re-authorize.
func NewTokenExpiredError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorTokenExpired)
}

// NewAPIError wraps a non-rate-limit provider failure. It is not retried
// by this core.
func NewAPIError(statusCode int, message string, rawBody []byte) *goerrors.Error {
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("provider returned status %d", statusCode)
	}
	return goerrors.New(message, goerrors.CategoryExternal).
		WithCode(statusCode).
		WithTextCode(ErrorAPIFailure).
		WithMetadata(map[string]any{
			metadataStatusCode:      statusCode,
			metadataProviderMessage: message,
			metadataRawBody:         string(rawBody),
		})
}

// NewRateLimitError is the only retryable outcome. retryAfter carries the
// server's Retry-After hint when the header was present.
func NewRateLimitError(retryAfter *time.Duration) *goerrors.Error {
	metadata := map[string]any{}
	if retryAfter != nil && *retryAfter >= 0 {
		metadata[metadataRetryAfterSec] = int64(retryAfter.Seconds())
	}
	return goerrors.New("provider rate limit exceeded", goerrors.CategoryRateLimit).
		WithCode(http.StatusTooManyRequests).
		WithTextCode(ErrorRateLimited).
		WithMetadata(metadata)
}

// AuthStage returns the lifecycle stage attached to an auth error, or ""
// when the error carries none.
func AuthStage(err error) string {
	rich := asRichError(err)
	if rich == nil || len(rich.Metadata) == 0 {
		return ""
	}
	stage, _ := rich.Metadata[metadataStage].(string)
	return stage
}

func IsAuthError(err error) bool {
	rich := asRichError(err)
	return rich != nil && rich.TextCode == ErrorAuthFailed
}

func IsTokenMissing(err error) bool {
	rich := asRichError(err)
	return rich != nil && rich.TextCode == ErrorTokenMissing
}

func IsTokenExpired(err error) bool {
	rich := asRichError(err)
	return rich != nil && rich.TextCode == ErrorTokenExpired
}

func IsRateLimited(err error) bool {
	rich := asRichError(err)
	return rich != nil && rich.Category == goerrors.CategoryRateLimit
}

// RetryAfterHint extracts the server wait hint from a rate-limit error.
// The second return is false when the server sent no Retry-After header.
func RetryAfterHint(err error) (time.Duration, bool) {
	rich := asRichError(err)
	if rich == nil || len(rich.Metadata) == 0 {
		return 0, false
	}
	switch value := rich.Metadata[metadataRetryAfterSec].(type) {
	case int64:
		if value >= 0 {
			return time.Duration(value) * time.Second, true
		}
	case int:
		if value >= 0 {
			return time.Duration(value) * time.Second, true
		}
	case float64:
		if value >= 0 {
			return time.Duration(value) * time.Second, true
		}
	}
	return 0, false
}

// APIStatus returns the provider status code attached to an API error.
func APIStatus(err error) (int, bool) {
	rich := asRichError(err)
	if rich == nil || rich.TextCode != ErrorAPIFailure {
		return 0, false
	}
	return rich.Code, true
}

func asRichError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return nil
	}
	return rich
}
