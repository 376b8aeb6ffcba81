package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-brokerage/core"
)

const (
	tokenStatusActive  = "active"
	tokenStatusRevoked = "revoked"
)

type tokenRecord struct {
	bun.BaseModel `bun:"table:brokerage_tokens,alias:bt"`

	ID               string    `bun:"id,pk"`
	Environment      string    `bun:"environment,notnull"`
	Token            string    `bun:"token,notnull"`
	Secret           string    `bun:"secret,notnull"`
	Version          int       `bun:"version,notnull"`
	Status           string    `bun:"status,notnull"`
	RevocationReason string    `bun:"revocation_reason"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *tokenRecord) toDomain() core.AccessToken {
	if r == nil {
		return core.AccessToken{}
	}
	return core.AccessToken{Token: r.Token, Secret: r.Secret}
}
