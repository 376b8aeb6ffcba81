package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"

	"github.com/goliatone/go-brokerage/core"
)

const tokenCacheKeyPrefix = "go-brokerage::access_token::v1"

type cachedToken struct {
	Token core.AccessToken
	Found bool
}

// CachedTokenStore fronts a token store with a read-through cache. Saves
// and clears invalidate the cached entry before hitting the base store.
type CachedTokenStore struct {
	base        core.TokenStore
	cache       repositorycache.CacheService
	environment string
}

func NewCachedTokenStore(
	base core.TokenStore,
	cacheService repositorycache.CacheService,
	environment string,
) (*CachedTokenStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base token store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: token cache service is required")
	}
	environment = strings.TrimSpace(strings.ToLower(environment))
	if environment == "" {
		return nil, fmt.Errorf("sqlstore: environment is required")
	}
	return &CachedTokenStore{base: base, cache: cacheService, environment: environment}, nil
}

// TokenCacheKey returns the deterministic cache key for an environment's
// active token: go-brokerage::access_token::v1::<environment>.
func TokenCacheKey(environment string) string {
	return tokenCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(strings.ToLower(environment)))
}

func (s *CachedTokenStore) Save(ctx context.Context, token core.AccessToken) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached token store is not configured")
	}
	if err := s.cache.Delete(ctx, TokenCacheKey(s.environment)); err != nil {
		return err
	}
	return s.base.Save(ctx, token)
}

func (s *CachedTokenStore) Load(ctx context.Context) (core.AccessToken, bool, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.AccessToken{}, false, fmt.Errorf("sqlstore: cached token store is not configured")
	}
	entry, err := repositorycache.GetOrFetch(ctx, s.cache, TokenCacheKey(s.environment), func(ctx context.Context) (cachedToken, error) {
		token, found, fetchErr := s.base.Load(ctx)
		if fetchErr != nil {
			return cachedToken{}, fetchErr
		}
		return cachedToken{Token: token, Found: found}, nil
	})
	if err != nil {
		return core.AccessToken{}, false, err
	}
	return entry.Token, entry.Found, nil
}

func (s *CachedTokenStore) Clear(ctx context.Context) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached token store is not configured")
	}
	if err := s.cache.Delete(ctx, TokenCacheKey(s.environment)); err != nil {
		return err
	}
	return s.base.Clear(ctx)
}

var _ core.TokenStore = (*CachedTokenStore)(nil)
