package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"marketplace-backend/models"
	"marketplace-backend/repository"
)

// memStore is a transactional in-memory store backing every repository
// interface. memTxManager snapshots it before running a block and restores
// the snapshot on error, mirroring the all-or-nothing semantics the real
// store provides. txMu serializes transactional blocks; dataMu guards the
// maps so non-transactional access (idempotency claims, balance reads) is
// safe alongside them.
type memStore struct {
	txMu     sync.Mutex
	dataMu   sync.Mutex
	products map[uuid.UUID]models.Product
	vendors  map[uuid.UUID]models.Vendor
	orders   map[uuid.UUID]models.Order
	wallets  map[uuid.UUID]models.Wallet
	ledger   []models.LedgerTransaction
	payouts  map[uuid.UUID]models.Payout
	idem     map[string]models.IdempotencyRecord
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[uuid.UUID]models.Product),
		vendors:  make(map[uuid.UUID]models.Vendor),
		orders:   make(map[uuid.UUID]models.Order),
		wallets:  make(map[uuid.UUID]models.Wallet),
		payouts:  make(map[uuid.UUID]models.Payout),
		idem:     make(map[string]models.IdempotencyRecord),
	}
}

func (s *memStore) snapshot() *memStore {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	clone := newMemStore()
	for k, v := range s.products {
		clone.products[k] = v
	}
	for k, v := range s.vendors {
		clone.vendors[k] = v
	}
	for k, v := range s.orders {
		items := make([]models.OrderItem, len(v.Items))
		copy(items, v.Items)
		v.Items = items
		clone.orders[k] = v
	}
	for k, v := range s.wallets {
		clone.wallets[k] = v
	}
	clone.ledger = make([]models.LedgerTransaction, len(s.ledger))
	copy(clone.ledger, s.ledger)
	for k, v := range s.payouts {
		clone.payouts[k] = v
	}
	for k, v := range s.idem {
		clone.idem[k] = v
	}
	return clone
}

func (s *memStore) restore(snap *memStore) {
	s.dataMu.Lock()
	defer s.dataMu.Unlock()
	s.products = snap.products
	s.vendors = snap.vendors
	s.orders = snap.orders
	s.wallets = snap.wallets
	s.ledger = snap.ledger
	s.payouts = snap.payouts
	s.idem = snap.idem
}

func (s *memStore) repos() *repository.Repos {
	return &repository.Repos{
		Products:    &memProducts{s},
		Vendors:     &memVendors{s},
		Orders:      &memOrders{s},
		Wallets:     &memWallets{s},
		Ledger:      &memLedger{s},
		Payouts:     &memPayouts{s},
		Idempotency: &memIdem{s},
	}
}

type memTxManager struct {
	store *memStore
}

func (m *memTxManager) Do(ctx context.Context, fn func(ctx context.Context, r *repository.Repos) error) error {
	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()
	snap := m.store.snapshot()
	if err := fn(ctx, m.store.repos()); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

type memProducts struct{ s *memStore }

func (r *memProducts) FindByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if p, ok := r.s.products[id]; ok {
		return &p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memProducts) FindByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memProducts) FindAll(_ context.Context, _, _ int) ([]models.Product, int64, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	var out []models.Product
	for _, p := range r.s.products {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, int64(len(out)), nil
}

type memVendors struct{ s *memStore }

func (r *memVendors) FindByIDs(_ context.Context, ids []uuid.UUID) ([]models.Vendor, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	var out []models.Vendor
	for _, id := range ids {
		if v, ok := r.s.vendors[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

type memOrders struct{ s *memStore }

func (r *memOrders) Create(_ context.Context, order *models.Order) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	r.s.orders[order.ID] = *order
	return nil
}

func (r *memOrders) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if o, ok := r.s.orders[id]; ok {
		return &o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memOrders) FindByIDAndUserID(_ context.Context, id, userID uuid.UUID) (*models.Order, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if o, ok := r.s.orders[id]; ok && o.UserID == userID {
		return &o, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memOrders) FindByUserID(_ context.Context, userID uuid.UUID, _, _ int) ([]models.Order, int64, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	var out []models.Order
	for _, o := range r.s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memOrders) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *memOrders) MarkPaid(_ context.Context, id uuid.UUID, gatewayRef string, paidAt time.Time) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.Status = models.OrderStatusPaid
	o.PaymentStatus = models.PaymentStatusPaid
	o.GatewayRef = &gatewayRef
	o.PaidAt = &paidAt
	r.s.orders[id] = o
	return nil
}

func (r *memOrders) UpdatePaymentStatus(_ context.Context, id uuid.UUID, paymentStatus string, gatewayRef string) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	o.PaymentStatus = paymentStatus
	if gatewayRef != "" {
		o.GatewayRef = &gatewayRef
	}
	r.s.orders[id] = o
	return nil
}

type memWallets struct{ s *memStore }

func (r *memWallets) Get(_ context.Context, accountID uuid.UUID) (*models.Wallet, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if w, ok := r.s.wallets[accountID]; ok {
		return &w, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memWallets) GetForUpdate(ctx context.Context, accountID uuid.UUID) (*models.Wallet, error) {
	return r.Get(ctx, accountID)
}

func (r *memWallets) Create(_ context.Context, wallet *models.Wallet) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	r.s.wallets[wallet.AccountID] = *wallet
	return nil
}

func (r *memWallets) ApplyDelta(_ context.Context, accountID uuid.UUID, availableDelta, pendingDelta, totalDelta int64) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	w, ok := r.s.wallets[accountID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	w.Available += availableDelta
	w.Pending += pendingDelta
	w.Total += totalDelta
	r.s.wallets[accountID] = w
	return nil
}

type memLedger struct{ s *memStore }

func (r *memLedger) Create(_ context.Context, tx *models.LedgerTransaction) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	tx.CreatedAt = time.Now()
	r.s.ledger = append(r.s.ledger, *tx)
	return nil
}

func (r *memLedger) FindByID(_ context.Context, id uuid.UUID) (*models.LedgerTransaction, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	for _, tx := range r.s.ledger {
		if tx.ID == id {
			return &tx, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memLedger) FindByAccountID(_ context.Context, accountID uuid.UUID, _, _ int) ([]models.LedgerTransaction, int64, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	var out []models.LedgerTransaction
	for _, tx := range r.s.ledger {
		if tx.AccountID == accountID || (tx.CounterpartyID != nil && *tx.CounterpartyID == accountID) {
			out = append(out, tx)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memLedger) CountByOrderID(_ context.Context, orderID uuid.UUID) (int64, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	var count int64
	for _, tx := range r.s.ledger {
		if tx.OrderID != nil && *tx.OrderID == orderID {
			count++
		}
	}
	return count, nil
}

func (r *memLedger) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	for i := range r.s.ledger {
		if r.s.ledger[i].ID == id {
			r.s.ledger[i].Status = status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type memPayouts struct{ s *memStore }

func (r *memPayouts) Create(_ context.Context, payout *models.Payout) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if payout.ID == uuid.Nil {
		payout.ID = uuid.New()
	}
	r.s.payouts[payout.ID] = *payout
	return nil
}

func (r *memPayouts) FindByID(_ context.Context, id uuid.UUID) (*models.Payout, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if p, ok := r.s.payouts[id]; ok {
		return &p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memPayouts) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	return r.FindByID(ctx, id)
}

func (r *memPayouts) FindByLedgerTxID(_ context.Context, ledgerTxID uuid.UUID) (*models.Payout, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	for _, p := range r.s.payouts {
		if p.LedgerTxID == ledgerTxID {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memPayouts) FindByStatus(_ context.Context, status string, _, _ int) ([]models.Payout, int64, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	var out []models.Payout
	for _, p := range r.s.payouts {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memPayouts) UpdateStatus(_ context.Context, id uuid.UUID, status string, approverID *uuid.UUID, rejectReason *string) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	p, ok := r.s.payouts[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Status = status
	if approverID != nil {
		p.ApproverID = approverID
	}
	if rejectReason != nil {
		p.RejectReason = rejectReason
	}
	r.s.payouts[id] = p
	return nil
}

type memIdem struct{ s *memStore }

func (r *memIdem) Claim(_ context.Context, key string) (bool, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if _, exists := r.s.idem[key]; exists {
		return false, nil
	}
	r.s.idem[key] = models.IdempotencyRecord{
		Key:    key,
		Status: models.IdempotencyStatusProcessing,
	}
	return true, nil
}

func (r *memIdem) Get(_ context.Context, key string) (*models.IdempotencyRecord, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	if rec, ok := r.s.idem[key]; ok {
		return &rec, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memIdem) Reclaim(_ context.Context, key string) (bool, error) {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	rec, ok := r.s.idem[key]
	if !ok || rec.Status != models.IdempotencyStatusFailed {
		return false, nil
	}
	rec.Status = models.IdempotencyStatusProcessing
	rec.LastError = nil
	r.s.idem[key] = rec
	return true, nil
}

func (r *memIdem) MarkCompleted(_ context.Context, key string, resultRef *uuid.UUID) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	rec, ok := r.s.idem[key]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rec.Status = models.IdempotencyStatusCompleted
	rec.ResultRef = resultRef
	r.s.idem[key] = rec
	return nil
}

func (r *memIdem) MarkFailed(_ context.Context, key string, reason string) error {
	r.s.dataMu.Lock()
	defer r.s.dataMu.Unlock()
	rec, ok := r.s.idem[key]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	rec.Status = models.IdempotencyStatusFailed
	rec.LastError = &reason
	r.s.idem[key] = rec
	return nil
}

// capturingPublisher records published events.
type capturingPublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, append([]byte(nil), value...))
	return nil
}

func (p *capturingPublisher) Close() error { return nil }
