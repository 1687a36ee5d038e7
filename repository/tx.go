package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repos bundles every repository bound to one database handle. Inside
// TxManager.Do it is bound to the transaction, so all reads and writes made
// through it commit or roll back together.
type Repos struct {
	Products    ProductRepository
	Vendors     VendorRepository
	Orders      OrderRepository
	Wallets     WalletRepository
	Ledger      LedgerRepository
	Payouts     PayoutRepository
	Idempotency IdempotencyRepository
}

// NewRepos binds all repositories to db, which may be a plain connection or
// an open transaction.
func NewRepos(db *gorm.DB) *Repos {
	return &Repos{
		Products:    NewGormProductRepository(db),
		Vendors:     NewGormVendorRepository(db),
		Orders:      NewGormOrderRepository(db),
		Wallets:     NewGormWalletRepository(db),
		Ledger:      NewGormLedgerRepository(db),
		Payouts:     NewGormPayoutRepository(db),
		Idempotency: NewGormIdempotencyRepository(db),
	}
}

// TxManager runs a function inside a single atomic transaction. An error
// returned from fn rolls back everything fn did through the supplied Repos.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context, r *Repos) error) error
}

type GormTxManager struct {
	db *gorm.DB
}

func NewGormTxManager(db *gorm.DB) TxManager {
	return &GormTxManager{db: db}
}

func (m *GormTxManager) Do(ctx context.Context, fn func(ctx context.Context, r *Repos) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewRepos(tx))
	})
}
