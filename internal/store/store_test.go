package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/anchor/internal/driver"
	"github.com/mrz1836/anchor/internal/metrics"
	anchorerr "github.com/mrz1836/anchor/pkg/errors"
)

func setupTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	s, err := Open(DriverSQLite, dsn, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_UnknownDriver(t *testing.T) {
	t.Parallel()
	_, err := Open("mysql", "whatever")
	require.ErrorIs(t, err, anchorerr.ErrConfigInvalid)
}

func TestOpen_SQLiteFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "anchor.db")
	s, err := Open("SQLite", path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// Reopening an existing database migrates cleanly
	s, err = Open(DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestCreateAndGetUser(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := setupTestStore(t, WithNow(func() time.Time { return fixed }))
	ctx := context.Background()

	u := &User{Email: "ada@example.com", Country: "GB", WalletAddress: driver.MockKey(driver.KindAlbedo)}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotEqual(t, uuid.Nil, u.ID)
	assert.True(t, fixed.Equal(u.CreatedAt))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.Email, got.Email)
	assert.Equal(t, "GB", got.Country)
	assert.Equal(t, u.WalletAddress, got.WalletAddress)
}

func TestCreateUser_Validation(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	ctx := context.Background()

	require.ErrorIs(t, s.CreateUser(ctx, &User{}), anchorerr.ErrInvalidInput)
	require.ErrorIs(t, s.CreateUser(ctx, &User{Email: "a@b.c", WalletAddress: "nope"}), anchorerr.ErrInvalidInput)

	require.NoError(t, s.CreateUser(ctx, &User{Email: "dup@example.com"}))
	err := s.CreateUser(ctx, &User{Email: "dup@example.com"})
	require.ErrorIs(t, err, anchorerr.ErrStoreFailed)
}

func TestGetUser_NotFound(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	_, err := s.GetUser(context.Background(), uuid.New())
	require.ErrorIs(t, err, anchorerr.ErrNotFound)
	assert.Equal(t, anchorerr.ExitNotFound, anchorerr.ExitCode(err))
}

func TestRecordTransaction(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	ctx := context.Background()
	user := uuid.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Inserted out of order; listed by timestamp
	for i, typ := range []TxType{TxLoan, TxSwap, TxStake} {
		tx := &Transaction{
			UserID:     user,
			Type:       typ,
			AssetFrom:  "XLM",
			AssetTo:    "USDC",
			AmountFrom: float64(10 * (i + 1)),
			AmountTo:   float64(i + 1),
			Currency:   "USD",
			Timestamp:  base.Add(time.Duration(2-i) * time.Hour),
		}
		require.NoError(t, s.RecordTransaction(ctx, tx))
		assert.NotEqual(t, uuid.Nil, tx.ID)
	}
	require.NoError(t, s.RecordTransaction(ctx, &Transaction{UserID: uuid.New(), Type: TxSwap}))

	txs, err := s.UserTransactions(ctx, user)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.Equal(t, TxStake, txs[0].Type)
	assert.Equal(t, TxSwap, txs[1].Type)
	assert.Equal(t, TxLoan, txs[2].Type)
	assert.InDelta(t, 30.0, txs[0].AmountFrom, 1e-9)

	none, err := s.UserTransactions(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordTransaction_Validation(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.RecordTransaction(ctx, &Transaction{UserID: uuid.New(), Type: "bridge"})
	require.ErrorIs(t, err, anchorerr.ErrInvalidInput)

	err = s.RecordTransaction(ctx, &Transaction{Type: TxSwap})
	require.ErrorIs(t, err, anchorerr.ErrInvalidInput)
}

func TestRecordTransaction_DefaultsTimestamp(t *testing.T) {
	t.Parallel()
	fixed := time.Date(2026, 5, 5, 5, 5, 5, 0, time.UTC)
	s := setupTestStore(t, WithNow(func() time.Time { return fixed }))

	tx := &Transaction{UserID: uuid.New(), Type: TxStake}
	require.NoError(t, s.RecordTransaction(context.Background(), tx))
	assert.True(t, fixed.Equal(tx.Timestamp))
}

func TestStore_RecordsMetrics(t *testing.T) {
	t.Parallel()
	m := metrics.New()
	s := setupTestStore(t, WithRecorder(m))
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &User{Email: "m@example.com"}))
	_, _ = s.GetUser(ctx, uuid.New())

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.StoreOpsTotal)
	assert.Equal(t, int64(1), snap.StoreOpsErrors)
}

func TestTxType_Valid(t *testing.T) {
	t.Parallel()
	assert.True(t, TxSwap.Valid())
	assert.True(t, TxStake.Valid())
	assert.True(t, TxLoan.Valid())
	assert.False(t, TxType("SWAP").Valid())
	assert.False(t, TxType("").Valid())
}
