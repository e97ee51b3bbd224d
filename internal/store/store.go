package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrz1836/anchor/internal/driver"
	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store operation names reported to the Recorder.
const (
	OpCreateUser        = "create_user"
	OpGetUser           = "get_user"
	OpRecordTransaction = "record_transaction"
	OpUserTransactions  = "user_transactions"
)

// Recorder counts store operations.
type Recorder interface {
	RecordStoreOp(op string, err error)
}

// Store wraps a gorm handle.
type Store struct {
	db       *gorm.DB
	recorder Recorder
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) { s.recorder = r }
}

// WithNow overrides the clock used for default timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open connects to the database named by driverName and dsn and migrates it.
func Open(driverName, dsn string, opts ...Option) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driverName) {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, anchorerr.WithSuggestion(
			anchorerr.WithDetails(anchorerr.ErrConfigInvalid, map[string]string{"store.driver": driverName}),
			"use postgres or sqlite",
		)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, anchorerr.Classify(anchorerr.ErrStoreFailed, err)
	}
	return New(db, opts...)
}

// New wraps an existing handle and migrates it.
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	if err := AutoMigrate(db); err != nil {
		return nil, anchorerr.Classify(anchorerr.ErrStoreFailed, fmt.Errorf("migrating: %w", err))
	}
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateUser inserts u. A zero ID is replaced with a fresh one.
func (s *Store) CreateUser(ctx context.Context, u *User) (err error) {
	defer func() { s.record(OpCreateUser, err) }()

	if strings.TrimSpace(u.Email) == "" {
		return anchorerr.WithDetails(anchorerr.ErrInvalidInput, map[string]string{"field": "email"})
	}
	if u.WalletAddress != "" {
		if err := driver.ValidatePublicKey(u.WalletAddress); err != nil {
			return err
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		return anchorerr.Classify(anchorerr.ErrStoreFailed, err)
	}
	return nil
}

// GetUser loads a user by ID.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (u *User, err error) {
	defer func() { s.record(OpGetUser, err) }()

	var out User
	if err := s.db.WithContext(ctx).First(&out, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, anchorerr.WithDetails(anchorerr.ErrNotFound, map[string]string{"user": id.String()})
		}
		return nil, anchorerr.Classify(anchorerr.ErrStoreFailed, err)
	}
	return &out, nil
}

// RecordTransaction appends tx. A zero ID gets a fresh one and a zero
// Timestamp becomes now.
func (s *Store) RecordTransaction(ctx context.Context, tx *Transaction) (err error) {
	defer func() { s.record(OpRecordTransaction, err) }()

	if !tx.Type.Valid() {
		return anchorerr.WithSuggestion(
			anchorerr.WithDetails(anchorerr.ErrInvalidInput, map[string]string{"type": string(tx.Type)}),
			"use one of: swap, stake, loan",
		)
	}
	if tx.UserID == uuid.Nil {
		return anchorerr.WithDetails(anchorerr.ErrInvalidInput, map[string]string{"field": "user_id"})
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = s.now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(tx).Error; err != nil {
		return anchorerr.Classify(anchorerr.ErrStoreFailed, err)
	}
	return nil
}

// UserTransactions returns a user's transactions, oldest first.
func (s *Store) UserTransactions(ctx context.Context, userID uuid.UUID) (txs []Transaction, err error) {
	defer func() { s.record(OpUserTransactions, err) }()

	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp asc").
		Find(&txs).Error; err != nil {
		return nil, anchorerr.Classify(anchorerr.ErrStoreFailed, err)
	}
	return txs, nil
}

func (s *Store) record(op string, err error) {
	if s.recorder != nil {
		s.recorder.RecordStoreOp(op, err)
	}
}
