package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/goliatone/go-brokerage/core"
	"github.com/goliatone/go-brokerage/ratelimit"
)

const defaultCallTimeout = 30 * time.Second

// AuthorizationSource produces an Authorization header for one call. The
// session satisfies this.
type AuthorizationSource interface {
	SignRequest(method, requestURL string, params map[string]string) (string, error)
}

type Config struct {
	BaseURL     string
	Environment string
	Auth        AuthorizationSource
	Transport   core.TransportAdapter
	Logger      core.Logger
	Metrics     core.MetricsRecorder
	Timeout     time.Duration

	// Throttle is an optional advisory gate fed by observed 429s; nil
	// disables pre-flight throttle checks.
	Throttle *ratelimit.AdaptivePolicy
}

// Pipeline executes one signed call per invocation and classifies the
// outcome into a parsed JSON mapping or a typed error. Retry is layered
// above by ratelimit.Retrier; the pipeline itself never retries.
type Pipeline struct {
	baseURL     string
	environment string
	auth        AuthorizationSource
	transport   core.TransportAdapter
	logger      core.Logger
	metrics     core.MetricsRecorder
	timeout     time.Duration
	throttle    *ratelimit.AdaptivePolicy
}

func New(cfg Config) (*Pipeline, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("pipeline: base url is required")
	}
	if cfg.Auth == nil {
		return nil, fmt.Errorf("pipeline: authorization source is required")
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("pipeline: transport adapter is required")
	}
	environment := strings.TrimSpace(strings.ToLower(cfg.Environment))
	if environment == "" {
		environment = string(core.EnvironmentSandbox)
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
	return &Pipeline{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		environment: environment,
		auth:        cfg.Auth,
		transport:   cfg.Transport,
		logger:      logger,
		metrics:     metrics,
		timeout:     timeout,
		throttle:    cfg.Throttle,
	}, nil
}

// Execute performs one signed call. params are string-coerced once and
// used identically on the wire and in the signature base; nil values are
// dropped. body, when present, is sent as JSON and excluded from the
// signature.
func (p *Pipeline) Execute(
	ctx context.Context,
	method string,
	endpoint string,
	params map[string]any,
	body any,
) (map[string]any, error) {
	startedAt := time.Now().UTC()
	correlationID := uuid.NewString()

	result, err := p.execute(ctx, method, endpoint, params, body, correlationID)
	core.Observe(ctx, p.logger, p.metrics, startedAt, "api_call", err, map[string]any{
		"environment":    p.environment,
		"endpoint":       strings.TrimSpace(endpoint),
		"method":         strings.ToUpper(strings.TrimSpace(method)),
		"correlation_id": correlationID,
	})
	return result, err
}

func (p *Pipeline) execute(
	ctx context.Context,
	method string,
	endpoint string,
	params map[string]any,
	body any,
	correlationID string,
) (map[string]any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	requestURL := p.resolveURL(endpoint)
	wireParams := CoerceParams(params)

	throttleKey := ratelimit.Key{Environment: p.environment, Bucket: bucketFor(endpoint)}
	if p.throttle != nil {
		if err := p.throttle.BeforeCall(ctx, throttleKey); err != nil {
			var throttled ratelimit.ThrottledError
			if errors.As(err, &throttled) {
				return nil, throttled.ToClientError()
			}
			return nil, err
		}
	}

	header, err := p.auth.SignRequest(method, requestURL, wireParams)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"Authorization": header,
		"Accept":        "application/json",
		"X-Request-Id":  correlationID,
	}
	var payload []byte
	if body != nil {
		encoded, marshalErr := json.Marshal(body)
		if marshalErr != nil {
			return nil, goerrors.Wrap(marshalErr, goerrors.CategoryBadInput, "pipeline: encode request body").
				WithCode(http.StatusBadRequest).
				WithTextCode(core.ErrorBadInput)
		}
		payload = encoded
		headers["Content-Type"] = "application/json"
	}

	res, err := p.transport.Do(ctx, core.TransportRequest{
		Method:  method,
		URL:     requestURL,
		Query:   wireParams,
		Headers: headers,
		Body:    payload,
		Timeout: p.timeout,
	})
	if err != nil {
		return nil, err
	}

	if p.throttle != nil {
		if afterErr := p.throttle.AfterCall(ctx, throttleKey, res.StatusCode, res.Headers); afterErr != nil {
			p.logger.Error("throttle state update failed", "error", afterErr.Error())
		}
	}

	return classifyResponse(res)
}

func classifyResponse(res core.TransportResponse) (map[string]any, error) {
	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		if hint, ok := ratelimit.ParseRetryAfterHeader(res.Headers); ok {
			return nil, core.NewRateLimitError(&hint)
		}
		return nil, core.NewRateLimitError(nil)
	case res.StatusCode >= 400:
		return nil, core.NewAPIError(res.StatusCode, extractProviderMessage(res.Body), res.Body)
	case res.StatusCode == http.StatusNoContent, len(strings.TrimSpace(string(res.Body))) == 0:
		return map[string]any{}, nil
	}

	var decoded any
	if err := json.Unmarshal(res.Body, &decoded); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryExternal, "pipeline: decode response body").
			WithCode(http.StatusBadGateway).
			WithTextCode(core.ErrorExternalFailure)
	}
	if mapped, ok := decoded.(map[string]any); ok {
		return mapped, nil
	}
	return map[string]any{"data": decoded}, nil
}

// extractProviderMessage digs the human-readable message out of the
// provider's error envelope, tolerating both nested and flat shapes.
func extractProviderMessage(body []byte) string {
	if len(strings.TrimSpace(string(body))) == 0 {
		return ""
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ""
	}
	for _, key := range []string{"Error", "error"} {
		if nested, ok := decoded[key].(map[string]any); ok {
			for _, messageKey := range []string{"message", "Message"} {
				if message, ok := nested[messageKey].(string); ok && strings.TrimSpace(message) != "" {
					return strings.TrimSpace(message)
				}
			}
		}
		if message, ok := decoded[key].(string); ok && strings.TrimSpace(message) != "" {
			return strings.TrimSpace(message)
		}
	}
	if message, ok := decoded["message"].(string); ok {
		return strings.TrimSpace(message)
	}
	return ""
}

// CoerceParams flattens a loosely typed parameter map into strings. Nil
// values are dropped entirely rather than serialized.
func CoerceParams(params map[string]any) map[string]string {
	if len(params) == 0 {
		return map[string]string{}
	}
	out := make(map[string]string, len(params))
	for key, value := range params {
		if strings.TrimSpace(key) == "" || value == nil {
			continue
		}
		out[key] = coerceValue(value)
	}
	return out
}

func coerceValue(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case json.Number:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

func (p *Pipeline) resolveURL(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return p.baseURL + "/" + strings.TrimPrefix(endpoint, "/")
}

// bucketFor groups endpoints into throttle buckets by their first path
// segment, e.g. /v1/accounts/list -> v1.
func bucketFor(endpoint string) string {
	endpoint = strings.TrimPrefix(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return "root"
	}
	if index := strings.IndexByte(endpoint, '/'); index > 0 {
		return strings.ToLower(endpoint[:index])
	}
	return strings.ToLower(endpoint)
}
