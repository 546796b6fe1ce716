// Package store persists committed nonces.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fd1az/amm-connector/internal/apperror"
)

// NonceRecord is the last committed nonce of one wallet on one chain.
type NonceRecord struct {
	ChainID   uint64 `gorm:"primaryKey;autoIncrement:false"`
	Address   string `gorm:"primaryKey;size:42"`
	Nonce     uint64
	UpdatedAt time.Time
}

// TableName pins the table name.
func (NonceRecord) TableName() string { return "wallet_nonces" }

// SQLiteNonceStore keeps nonces in a SQLite file (pure Go driver).
type SQLiteNonceStore struct {
	db *gorm.DB
}

// NewSQLiteNonceStore opens (or creates) the database at path.
func NewSQLiteNonceStore(path string) (*SQLiteNonceStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeNonceStoreFailed,
			apperror.WithCause(err),
			apperror.WithContext("open "+path))
	}

	if err := db.AutoMigrate(&NonceRecord{}); err != nil {
		return nil, apperror.New(apperror.CodeNonceStoreFailed,
			apperror.WithCause(err),
			apperror.WithContext("migrate"))
	}

	return &SQLiteNonceStore{db: db}, nil
}

// Load returns the last committed nonce for (chainID, addr).
func (s *SQLiteNonceStore) Load(ctx context.Context, chainID uint64, addr common.Address) (uint64, bool, error) {
	var rec NonceRecord
	err := s.db.WithContext(ctx).
		First(&rec, "chain_id = ? AND address = ?", chainID, addr.Hex()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, apperror.New(apperror.CodeNonceStoreFailed, apperror.WithCause(err))
	}
	return rec.Nonce, true, nil
}

// Save upserts the committed nonce for (chainID, addr).
func (s *SQLiteNonceStore) Save(ctx context.Context, chainID uint64, addr common.Address, nonce uint64) error {
	rec := NonceRecord{
		ChainID:   chainID,
		Address:   addr.Hex(),
		Nonce:     nonce,
		UpdatedAt: time.Now(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chain_id"}, {Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"nonce", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return apperror.New(apperror.CodeNonceStoreFailed, apperror.WithCause(err))
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *SQLiteNonceStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type memKey struct {
	chainID uint64
	addr    common.Address
}

// MemoryNonceStore keeps nonces for the life of the process.
type MemoryNonceStore struct {
	mu     sync.RWMutex
	nonces map[memKey]uint64
}

// NewMemoryNonceStore creates an empty in-memory store.
func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{nonces: make(map[memKey]uint64)}
}

// Load returns the last committed nonce for (chainID, addr).
func (s *MemoryNonceStore) Load(_ context.Context, chainID uint64, addr common.Address) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nonces[memKey{chainID, addr}]
	return n, ok, nil
}

// Save records the committed nonce for (chainID, addr).
func (s *MemoryNonceStore) Save(_ context.Context, chainID uint64, addr common.Address, nonce uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonces[memKey{chainID, addr}] = nonce
	return nil
}

// Close is a no-op.
func (s *MemoryNonceStore) Close() error { return nil }
