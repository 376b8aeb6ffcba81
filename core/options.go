package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

func NewStaticRawConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || strings.TrimSpace(cfg.Environment) != "" {
		layer["environment"] = cfg.Environment
	}
	if includeZero || strings.TrimSpace(cfg.BaseURL) != "" {
		layer["base_url"] = cfg.BaseURL
	}
	if includeZero || strings.TrimSpace(cfg.ConsumerKey) != "" {
		layer["consumer_key"] = cfg.ConsumerKey
	}
	if includeZero || strings.TrimSpace(cfg.ConsumerSecret) != "" {
		layer["consumer_secret"] = cfg.ConsumerSecret
	}

	oauth := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.OAuth.RequestTokenURL) != "" {
		oauth["request_token_url"] = cfg.OAuth.RequestTokenURL
	}
	if includeZero || strings.TrimSpace(cfg.OAuth.AccessTokenURL) != "" {
		oauth["access_token_url"] = cfg.OAuth.AccessTokenURL
	}
	if includeZero || strings.TrimSpace(cfg.OAuth.RenewTokenURL) != "" {
		oauth["renew_token_url"] = cfg.OAuth.RenewTokenURL
	}
	if includeZero || strings.TrimSpace(cfg.OAuth.RevokeTokenURL) != "" {
		oauth["revoke_token_url"] = cfg.OAuth.RevokeTokenURL
	}
	if includeZero || strings.TrimSpace(cfg.OAuth.AuthorizeURL) != "" {
		oauth["authorize_url"] = cfg.OAuth.AuthorizeURL
	}
	if len(oauth) > 0 {
		layer["oauth"] = oauth
	}

	retry := map[string]any{}
	if includeZero || cfg.Retry.MaxAttempts > 0 {
		retry["max_attempts"] = cfg.Retry.MaxAttempts
	}
	if includeZero || cfg.Retry.InitialBackoffSeconds > 0 {
		retry["initial_backoff_seconds"] = cfg.Retry.InitialBackoffSeconds
	}
	if includeZero || cfg.Retry.MaxBackoffSeconds > 0 {
		retry["max_backoff_seconds"] = cfg.Retry.MaxBackoffSeconds
	}
	if len(retry) > 0 {
		layer["retry"] = retry
	}

	transport := map[string]any{}
	if includeZero || cfg.Transport.TimeoutSeconds > 0 {
		transport["timeout_seconds"] = cfg.Transport.TimeoutSeconds
	}
	if len(transport) > 0 {
		layer["transport"] = transport
	}
	return layer
}
