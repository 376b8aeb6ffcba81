// Package sqlstore persists access tokens in a relational table through
// bun. Saves are versioned: each new token revokes the previous active
// row inside one transaction, so the active token for an environment is
// always the highest version.
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-brokerage/core"
)

type TokenStore struct {
	db          *bun.DB
	repo        repository.Repository[*tokenRecord]
	environment string
	now         func() time.Time
}

func NewTokenStore(db *bun.DB, environment string) (*TokenStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	environment = strings.TrimSpace(strings.ToLower(environment))
	if environment == "" {
		return nil, fmt.Errorf("sqlstore: environment is required")
	}

	repo := repository.NewRepository[*tokenRecord](db, tokenHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid token repository wiring: %w", err)
		}
	}

	return &TokenStore{
		db:          db,
		repo:        repo,
		environment: environment,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

// NewTokenStoreFromPersistence accepts either a *bun.DB or anything that
// exposes one, such as *persistence.Client.
func NewTokenStoreFromPersistence(client *persistence.Client, environment string) (*TokenStore, error) {
	// A typed nil would slip past resolveBunDB's nil arm and hit DB() on a
	// nil receiver.
	if client == nil {
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	}
	db, err := resolveBunDB(client)
	if err != nil {
		return nil, err
	}
	return NewTokenStore(db, environment)
}

func (s *TokenStore) Save(ctx context.Context, token core.AccessToken) error {
	if s == nil || s.repo == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	if token.Empty() {
		return fmt.Errorf("sqlstore: cannot save empty access token")
	}
	now := s.now()

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		nextVersion, versionErr := s.nextVersion(ctx, tx)
		if versionErr != nil {
			return versionErr
		}

		_, updateErr := tx.NewUpdate().
			Model((*tokenRecord)(nil)).
			Set("status = ?", tokenStatusRevoked).
			Set("revocation_reason = ?", "rotated").
			Set("updated_at = ?", now).
			Where("environment = ?", s.environment).
			Where("status = ?", tokenStatusActive).
			Exec(ctx)
		if updateErr != nil {
			return updateErr
		}

		_, createErr := s.repo.CreateTx(ctx, tx, &tokenRecord{
			ID:          uuid.NewString(),
			Environment: s.environment,
			Token:       token.Token,
			Secret:      token.Secret,
			Version:     nextVersion,
			Status:      tokenStatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return createErr
	})
}

func (s *TokenStore) Load(ctx context.Context) (core.AccessToken, bool, error) {
	if s == nil || s.repo == nil {
		return core.AccessToken{}, false, fmt.Errorf("sqlstore: token store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("environment", "=", s.environment),
		repository.SelectBy("status", "=", tokenStatusActive),
		repository.OrderBy("version DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.AccessToken{}, false, err
	}
	if len(records) == 0 {
		return core.AccessToken{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *TokenStore) Clear(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: token store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*tokenRecord)(nil)).
		Set("status = ?", tokenStatusRevoked).
		Set("revocation_reason = ?", "cleared").
		Set("updated_at = ?", s.now()).
		Where("environment = ?", s.environment).
		Where("status = ?", tokenStatusActive).
		Exec(ctx)
	return err
}

// History returns every stored version for the environment, newest first.
func (s *TokenStore) History(ctx context.Context, limit int) ([]core.AccessToken, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: token store is not configured")
	}
	if limit <= 0 {
		limit = 10
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("environment", "=", s.environment),
		repository.OrderBy("version DESC"),
		repository.SelectPaginate(limit, 0),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.AccessToken, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *TokenStore) nextVersion(ctx context.Context, tx bun.Tx) (int, error) {
	var maxVersion int
	if err := tx.NewSelect().
		Model((*tokenRecord)(nil)).
		ColumnExpr("COALESCE(MAX(version), 0)").
		Where("?TableAlias.environment = ?", s.environment).
		Scan(ctx, &maxVersion); err != nil {
		return 0, err
	}
	return maxVersion + 1, nil
}

// EnsureSchema creates the token table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *bun.DB) error {
	if db == nil {
		return fmt.Errorf("sqlstore: bun db is required")
	}
	_, err := db.NewCreateTable().
		Model((*tokenRecord)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

var _ core.TokenStore = (*TokenStore)(nil)
