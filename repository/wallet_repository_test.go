package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"marketplace-backend/repository"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	assert.NoError(t, err)
	return gormDB, mock
}

func TestWalletGet_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormWalletRepository(gormDB)

	accountID := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"account_id", "available", "pending", "total", "currency", "created_at", "updated_at"}).
		AddRow(accountID, int64(8500), int64(0), int64(8500), "USD", now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "wallets"`)).
		WithArgs(accountID, 1).
		WillReturnRows(rows)

	wallet, err := repo.Get(context.Background(), accountID)
	assert.NoError(t, err)
	assert.Equal(t, int64(8500), wallet.Available)
	assert.Equal(t, "USD", wallet.Currency)
}

func TestWalletGet_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormWalletRepository(gormDB)

	accountID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "wallets"`)).
		WithArgs(accountID, 1).
		WillReturnRows(sqlmock.NewRows([]string{}))

	wallet, err := repo.Get(context.Background(), accountID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Nil(t, wallet)
}

func TestWalletGetForUpdate_LocksRow(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormWalletRepository(gormDB)

	accountID := uuid.New()
	now := time.Now()
	rows := sqlmock.NewRows([]string{"account_id", "available", "pending", "total", "currency", "created_at", "updated_at"}).
		AddRow(accountID, int64(100), int64(0), int64(100), "USD", now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs(accountID, 1).
		WillReturnRows(rows)

	wallet, err := repo.GetForUpdate(context.Background(), accountID)
	assert.NoError(t, err)
	assert.Equal(t, int64(100), wallet.Available)
}

func TestWalletApplyDelta_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormWalletRepository(gormDB)

	accountID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "wallets"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ApplyDelta(context.Background(), accountID, 8500, 0, 8500)
	assert.NoError(t, err)
}

func TestWalletApplyDelta_MissingWallet(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormWalletRepository(gormDB)

	accountID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "wallets"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.ApplyDelta(context.Background(), accountID, 100, 0, 100)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
