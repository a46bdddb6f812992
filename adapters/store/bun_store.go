package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/layer-3/flowauth/core"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const pgUniqueViolation = "23505"

type pgChallenge struct {
	bun.BaseModel `bun:"table:nonce_challenges"`

	ID        int64     `bun:",pk,autoincrement"`
	Nonce     string    `bun:",unique,notnull"`
	AppID     string    `bun:"app_id,notnull"`
	IssuedAt  time.Time `bun:",notnull"`
	ExpiresAt time.Time `bun:",notnull"`
}

type pgRevokedToken struct {
	bun.BaseModel `bun:"table:revoked_tokens"`

	TokenID   string    `bun:",pk"`
	ExpiresAt time.Time `bun:",notnull"`
}

type pgDAO struct {
	bun.BaseModel `bun:"table:daos"`

	ID         string        `bun:",pk"`
	Name       string        `bun:",notnull"`
	MemberIDs  []string      `bun:",array"`
	MemberInfo []core.Member `bun:"type:jsonb"`
	CreatedBy  string        `bun:",notnull"`
	CreatedAt  time.Time     `bun:",notnull"`
}

// BunStore implements the nonce, token and DAO stores on PostgreSQL through bun
type BunStore struct {
	db *bun.DB
}

// OpenPostgres connects to PostgreSQL using the given DSN
func OpenPostgres(ctx context.Context, dsn string) (*bun.DB, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to ping postgres")
	}
	return bun.NewDB(sqlDB, pgdialect.New()), nil
}

// NewBunStore creates the store and its tables when missing
func NewBunStore(ctx context.Context, db *bun.DB) (*BunStore, error) {
	for _, model := range []any{(*pgChallenge)(nil), (*pgRevokedToken)(nil), (*pgDAO)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return nil, errors.Wrap(err, "bunStore.CreateTable")
		}
	}

	_, err := db.NewCreateIndex().
		Model((*pgChallenge)(nil)).
		Index("nonce_challenges_expires_at_idx").
		Column("expires_at").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "bunStore.CreateIndex")
	}

	return &BunStore{db: db}, nil
}

// Insert stores a challenge; the unique constraint on nonce rejects duplicates
func (s *BunStore) Insert(ctx context.Context, challenge *core.NonceChallenge) error {
	record := &pgChallenge{
		Nonce:     challenge.Nonce,
		AppID:     challenge.AppID,
		IssuedAt:  challenge.IssuedAt,
		ExpiresAt: challenge.ExpiresAt,
	}

	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.Field('C') == pgUniqueViolation {
			return core.ErrNonceExists
		}
		return errors.Wrap(err, "bunStore.Insert.Exec")
	}

	return nil
}

// Consume deletes the challenge with DELETE ... RETURNING, so exactly one caller gets the row
func (s *BunStore) Consume(ctx context.Context, nonce string) (*core.NonceChallenge, error) {
	record := new(pgChallenge)
	err := s.db.NewDelete().
		Model(record).
		Where("nonce = ?", nonce).
		Returning("*").
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrInvalidNonce
		}
		return nil, errors.Wrap(err, "bunStore.Consume.Delete")
	}

	return &core.NonceChallenge{
		Nonce:     record.Nonce,
		AppID:     record.AppID,
		IssuedAt:  record.IssuedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// PurgeExpired deletes challenges that expired before the given time
func (s *BunStore) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.NewDelete().
		Model((*pgChallenge)(nil)).
		Where("expires_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "bunStore.PurgeExpired.Delete")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "bunStore.PurgeExpired.RowsAffected")
	}
	return int(n), nil
}

// InvalidateToken records tokenID as revoked until expiry has elapsed
func (s *BunStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	now := time.Now().UTC()
	record := &pgRevokedToken{TokenID: tokenID, ExpiresAt: now.Add(expiry)}

	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (token_id) DO UPDATE").
		Set("expires_at = EXCLUDED.expires_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "bunStore.InvalidateToken.Insert")
	}

	if _, err := s.db.NewDelete().Model((*pgRevokedToken)(nil)).Where("expires_at < ?", now).Exec(ctx); err != nil {
		return errors.Wrap(err, "bunStore.InvalidateToken.Delete")
	}
	return nil
}

// IsTokenInvalidated reports whether tokenID was revoked and the revocation is still in force
func (s *BunStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*pgRevokedToken)(nil)).
		Where("token_id = ?", tokenID).
		Where("expires_at > ?", time.Now().UTC()).
		Exists(ctx)
	if err != nil {
		return false, errors.Wrap(err, "bunStore.IsTokenInvalidated.Exists")
	}
	return exists, nil
}

// CreateDAO stores a DAO document
func (s *BunStore) CreateDAO(ctx context.Context, dao *core.DAO) error {
	record := &pgDAO{
		ID:         dao.ID,
		Name:       dao.Name,
		MemberIDs:  dao.MemberIDs,
		MemberInfo: dao.Members,
		CreatedBy:  dao.CreatedBy,
		CreatedAt:  dao.CreatedAt,
	}

	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return errors.Wrap(err, "bunStore.CreateDAO.Exec")
	}
	return nil
}
