package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/layer-3/flowauth/core"
	"github.com/layer-3/flowauth/internal/logging"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLiteChallenge is the persisted form of a nonce challenge
type SQLiteChallenge struct {
	ID        uint      `gorm:"primaryKey"`
	Nonce     string    `gorm:"uniqueIndex;not null"`
	AppID     string    `gorm:"not null"`
	IssuedAt  time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
}

// SQLiteRevokedToken records a session revoked before its expiry
type SQLiteRevokedToken struct {
	TokenID   string    `gorm:"primaryKey"`
	ExpiresAt time.Time `gorm:"index;not null"`
}

// SQLiteDAO is the persisted form of a DAO
type SQLiteDAO struct {
	ID         string        `gorm:"primaryKey"`
	Name       string        `gorm:"not null"`
	MemberIDs  []string      `gorm:"serializer:json"`
	MemberInfo []core.Member `gorm:"serializer:json"`
	CreatedBy  string        `gorm:"index"`
	CreatedAt  time.Time
}

// GormStore implements the nonce, token and DAO stores on top of GORM
type GormStore struct {
	db *gorm.DB
}

// OpenSQLite opens a SQLite database at path, logging through log.
// A single connection serialises writers so concurrent requests wait instead of
// failing with SQLITE_BUSY.
func OpenSQLite(path string, log zerolog.Logger) (*gorm.DB, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger:         logging.NewGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sql.DB")
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// NewGormStore creates a store and migrates its tables
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&SQLiteChallenge{}, &SQLiteRevokedToken{}, &SQLiteDAO{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return &GormStore{db: db}, nil
}

// Insert stores a challenge; the unique index on nonce rejects duplicates
func (s *GormStore) Insert(ctx context.Context, challenge *core.NonceChallenge) error {
	record := SQLiteChallenge{
		Nonce:     challenge.Nonce,
		AppID:     challenge.AppID,
		IssuedAt:  challenge.IssuedAt,
		ExpiresAt: challenge.ExpiresAt,
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return core.ErrNonceExists
		}
		return errors.Wrap(err, "gormStore.Insert.Create")
	}

	return nil
}

// Consume reads the challenge and deletes it by primary key.
// The delete only counts if it removed the row, which makes the caller the single consumer.
func (s *GormStore) Consume(ctx context.Context, nonce string) (*core.NonceChallenge, error) {
	var record SQLiteChallenge
	found := s.db.WithContext(ctx).Where("nonce = ?", nonce).Limit(1).Find(&record)
	if found.Error != nil {
		return nil, errors.Wrap(found.Error, "gormStore.Consume.Find")
	}
	if found.RowsAffected == 0 {
		return nil, core.ErrInvalidNonce
	}

	result := s.db.WithContext(ctx).Where("id = ?", record.ID).Delete(&SQLiteChallenge{})
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "gormStore.Consume.Delete")
	}
	if result.RowsAffected != 1 {
		return nil, core.ErrInvalidNonce
	}

	return &core.NonceChallenge{
		Nonce:     record.Nonce,
		AppID:     record.AppID,
		IssuedAt:  record.IssuedAt,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// PurgeExpired deletes challenges that expired before the given time
func (s *GormStore) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	result := s.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&SQLiteChallenge{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "gormStore.PurgeExpired.Delete")
	}
	return int(result.RowsAffected), nil
}

// InvalidateToken records tokenID as revoked until expiry has elapsed
func (s *GormStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	now := time.Now().UTC()
	record := SQLiteRevokedToken{TokenID: tokenID, ExpiresAt: now.Add(expiry)}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"expires_at"}),
	}).Create(&record).Error
	if err != nil {
		return errors.Wrap(err, "gormStore.InvalidateToken.Create")
	}

	// Drop records whose token would have expired anyway
	if err := s.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&SQLiteRevokedToken{}).Error; err != nil {
		return errors.Wrap(err, "gormStore.InvalidateToken.Delete")
	}
	return nil
}

// IsTokenInvalidated reports whether tokenID was revoked and the revocation is still in force
func (s *GormStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&SQLiteRevokedToken{}).
		Where("token_id = ? AND expires_at > ?", tokenID, time.Now().UTC()).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "gormStore.IsTokenInvalidated.Count")
	}
	return count > 0, nil
}

// CreateDAO stores a DAO document
func (s *GormStore) CreateDAO(ctx context.Context, dao *core.DAO) error {
	record := SQLiteDAO{
		ID:         dao.ID,
		Name:       dao.Name,
		MemberIDs:  dao.MemberIDs,
		MemberInfo: dao.Members,
		CreatedBy:  dao.CreatedBy,
		CreatedAt:  dao.CreatedAt,
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return errors.Wrap(err, "gormStore.CreateDAO.Create")
	}
	return nil
}

// GetDAO loads a DAO by id
func (s *GormStore) GetDAO(ctx context.Context, id string) (*core.DAO, error) {
	var record SQLiteDAO
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&record).Error; err != nil {
		return nil, errors.Wrap(err, "gormStore.GetDAO.First")
	}

	return &core.DAO{
		ID:        record.ID,
		Name:      record.Name,
		MemberIDs: record.MemberIDs,
		Members:   record.MemberInfo,
		CreatedBy: record.CreatedBy,
		CreatedAt: record.CreatedAt,
	}, nil
}
