// Package file persists the access token as a JSON document on disk.
// Writes go through a temp file and rename so readers never observe a
// partial token.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-brokerage/core"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

type tokenDocument struct {
	Token     string    `json:"token"`
	Secret    string    `json:"secret"`
	SavedAt   time.Time `json:"saved_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TokenStore keeps a single access token in a JSON file. Token secrets
// land on disk, so the file is written owner-only.
type TokenStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewTokenStore(path string) (*TokenStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("file: token store path is required")
	}
	return &TokenStore{path: path, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *TokenStore) Save(_ context.Context, token core.AccessToken) error {
	if s == nil {
		return fmt.Errorf("file: token store is nil")
	}
	if token.Empty() {
		return goerrors.New("file: cannot save empty access token", goerrors.CategoryBadInput).
			WithTextCode(core.ErrorBadInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), dirMode); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "file: create token directory").
			WithTextCode(core.ErrorInternal)
	}

	now := s.now()
	data, err := json.MarshalIndent(tokenDocument{
		Token:     token.Token,
		Secret:    token.Secret,
		SavedAt:   now,
		UpdatedAt: now,
	}, "", "  ")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "file: encode token document").
			WithTextCode(core.ErrorInternal)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "file: write token document").
			WithTextCode(core.ErrorInternal)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "file: replace token document").
			WithTextCode(core.ErrorInternal)
	}
	return nil
}

func (s *TokenStore) Load(_ context.Context) (core.AccessToken, bool, error) {
	if s == nil {
		return core.AccessToken{}, false, fmt.Errorf("file: token store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return core.AccessToken{}, false, nil
		}
		return core.AccessToken{}, false, goerrors.Wrap(err, goerrors.CategoryInternal, "file: read token document").
			WithTextCode(core.ErrorInternal)
	}

	var doc tokenDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return core.AccessToken{}, false, goerrors.Wrap(err, goerrors.CategoryInternal, "file: decode token document").
			WithTextCode(core.ErrorInternal)
	}
	if strings.TrimSpace(doc.Token) == "" {
		return core.AccessToken{}, false, nil
	}
	return core.AccessToken{Token: doc.Token, Secret: doc.Secret}, true, nil
}

func (s *TokenStore) Clear(_ context.Context) error {
	if s == nil {
		return fmt.Errorf("file: token store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "file: remove token document").
			WithTextCode(core.ErrorInternal)
	}
	return nil
}

var _ core.TokenStore = (*TokenStore)(nil)
