package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketplace-backend/common/apperrors"
	"marketplace-backend/models"
	"marketplace-backend/repository"
)

type TransferResult struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	Amount        int64     `json:"amount"`
}

type WithdrawResult struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	Status       string    `json:"status"`
}

type LedgerListResponse struct {
	Transactions []models.LedgerTransaction `json:"transactions"`
	Meta         MetaData                   `json:"meta"`
}

type PayoutListResponse struct {
	Payouts []models.Payout `json:"payouts"`
	Meta    MetaData        `json:"meta"`
}

// WalletService owns transfers, withdrawals and payout approvals. Every
// mutation runs inside one transaction with the touched wallet rows locked;
// idempotency keys make retries return the prior result instead of
// re-executing.
type WalletService struct {
	tx              repository.TxManager
	repos           *repository.Repos
	guard           *IdempotencyGuard
	currency        string
	transferCeiling int64
	minWithdrawal   int64
	log             *zap.Logger
}

func NewWalletService(
	tx repository.TxManager,
	repos *repository.Repos,
	guard *IdempotencyGuard,
	currency string,
	transferCeiling int64,
	minWithdrawal int64,
	log *zap.Logger,
) *WalletService {
	return &WalletService{
		tx:              tx,
		repos:           repos,
		guard:           guard,
		currency:        currency,
		transferCeiling: transferCeiling,
		minWithdrawal:   minWithdrawal,
		log:             log,
	}
}

// GetBalance returns the account's wallet; accounts that were never credited
// read as a zero wallet.
func (s *WalletService) GetBalance(ctx context.Context, accountID uuid.UUID) (*models.Wallet, *apperrors.Error) {
	wallet, err := s.repos.Wallets.Get(ctx, accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.Wallet{AccountID: accountID, Currency: s.currency}, nil
	}
	if err != nil {
		return nil, apperrors.Internal("failed to fetch balance", err)
	}
	return wallet, nil
}

// Transfer moves amount from one wallet to another atomically. With an
// idempotency key, retries of the same transfer return the original result.
func (s *WalletService) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64, description string, idempotencyKey string) (*TransferResult, *apperrors.Error) {
	if amount <= 0 {
		return nil, apperrors.InvalidArgument("amount must be positive")
	}
	if amount > s.transferCeiling {
		return nil, apperrors.InvalidArgument("amount exceeds transfer ceiling")
	}
	if fromID == toID {
		return nil, apperrors.InvalidArgument("cannot transfer to the same account")
	}

	var key string
	if idempotencyKey != "" {
		key = models.IdempotencyKey(models.IdempotencyNamespaceTransfer, idempotencyKey)
		outcome, record, err := s.guard.Claim(ctx, key)
		if err != nil {
			return nil, apperrors.Internal("idempotency claim failed", err)
		}
		switch outcome {
		case ClaimCompleted:
			return s.priorTransferResult(ctx, record.ResultRef)
		case ClaimInFlight:
			return nil, apperrors.AlreadyExists("a transfer with this idempotency key is already in flight")
		}
	}

	var ledgerTxID uuid.UUID
	txErr := s.tx.Do(ctx, func(ctx context.Context, r *repository.Repos) error {
		// Lock both wallets in sorted id order so two opposing transfers
		// cannot deadlock each other.
		first, second := fromID, toID
		if second.String() < first.String() {
			first, second = second, first
		}
		if err := s.lockOrCreateWallet(ctx, r, first); err != nil {
			return err
		}
		if err := s.lockOrCreateWallet(ctx, r, second); err != nil {
			return err
		}

		from, err := r.Wallets.Get(ctx, fromID)
		if err != nil {
			return err
		}
		if from.Available < amount {
			return apperrors.FailedPrecondition("insufficient balance")
		}

		if err := r.Wallets.ApplyDelta(ctx, fromID, -amount, 0, -amount); err != nil {
			return err
		}
		if err := r.Wallets.ApplyDelta(ctx, toID, amount, 0, amount); err != nil {
			return err
		}

		ledgerTx := &models.LedgerTransaction{
			AccountID:      fromID,
			CounterpartyID: &toID,
			Type:           models.LedgerTypeTransfer,
			Amount:         amount,
			Status:         models.LedgerStatusCompleted,
		}
		if description != "" {
			ledgerTx.Description = &description
		}
		if err := r.Ledger.Create(ctx, ledgerTx); err != nil {
			return err
		}
		ledgerTxID = ledgerTx.ID
		return nil
	})
	if txErr != nil {
		if key != "" {
			s.guard.Fail(ctx, key, txErr)
		}
		return nil, apperrors.From(txErr)
	}

	if key != "" {
		s.guard.Complete(ctx, key, &ledgerTxID)
	}

	s.log.Info("Transfer completed",
		zap.String("from", fromID.String()),
		zap.String("to", toID.String()),
		zap.Int64("amount", amount),
		zap.String("transaction_id", ledgerTxID.String()),
	)
	return &TransferResult{TransactionID: ledgerTxID, Amount: amount}, nil
}

// Withdraw moves amount from available to pending and opens a payout
// request awaiting administrative approval.
func (s *WalletService) Withdraw(ctx context.Context, accountID uuid.UUID, amount int64, method, accountDetails string, idempotencyKey string) (*WithdrawResult, *apperrors.Error) {
	if amount < s.minWithdrawal {
		return nil, apperrors.InvalidArgument(
			fmt.Sprintf("amount below minimum withdrawal of %d", s.minWithdrawal))
	}
	if method == "" || accountDetails == "" {
		return nil, apperrors.InvalidArgument("method and account details are required")
	}

	var key string
	if idempotencyKey != "" {
		key = models.IdempotencyKey(models.IdempotencyNamespaceWithdrawal, idempotencyKey)
		outcome, record, err := s.guard.Claim(ctx, key)
		if err != nil {
			return nil, apperrors.Internal("idempotency claim failed", err)
		}
		switch outcome {
		case ClaimCompleted:
			return s.priorWithdrawResult(ctx, record.ResultRef)
		case ClaimInFlight:
			return nil, apperrors.AlreadyExists("a withdrawal with this idempotency key is already in flight")
		}
	}

	var payoutID, ledgerTxID uuid.UUID
	txErr := s.tx.Do(ctx, func(ctx context.Context, r *repository.Repos) error {
		wallet, err := r.Wallets.GetForUpdate(ctx, accountID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.FailedPrecondition("insufficient balance")
		}
		if err != nil {
			return err
		}
		if wallet.Available < amount {
			return apperrors.FailedPrecondition("insufficient balance")
		}

		// available -> pending; total unchanged until approval.
		if err := r.Wallets.ApplyDelta(ctx, accountID, -amount, amount, 0); err != nil {
			return err
		}

		ledgerTx := &models.LedgerTransaction{
			AccountID: accountID,
			Type:      models.LedgerTypeWithdrawal,
			Amount:    amount,
			Status:    models.LedgerStatusPending,
		}
		if err := r.Ledger.Create(ctx, ledgerTx); err != nil {
			return err
		}
		ledgerTxID = ledgerTx.ID

		payout := &models.Payout{
			AccountID:      accountID,
			Amount:         amount,
			Method:         method,
			AccountDetails: accountDetails,
			Status:         models.PayoutStatusPending,
			LedgerTxID:     ledgerTx.ID,
		}
		if err := r.Payouts.Create(ctx, payout); err != nil {
			return err
		}
		payoutID = payout.ID
		return nil
	})
	if txErr != nil {
		if key != "" {
			s.guard.Fail(ctx, key, txErr)
		}
		return nil, apperrors.From(txErr)
	}

	if key != "" {
		s.guard.Complete(ctx, key, &ledgerTxID)
	}

	s.log.Info("Withdrawal requested",
		zap.String("account", accountID.String()),
		zap.Int64("amount", amount),
		zap.String("payout_id", payoutID.String()),
	)
	return &WithdrawResult{WithdrawalID: payoutID, Status: models.PayoutStatusPending}, nil
}

// ApproveWithdrawal completes the debit: the amount leaves pending and
// total. Restricted to administrators by the route layer.
func (s *WalletService) ApproveWithdrawal(ctx context.Context, payoutID, approverID uuid.UUID) *apperrors.Error {
	txErr := s.tx.Do(ctx, func(ctx context.Context, r *repository.Repos) error {
		payout, err := r.Payouts.FindByIDForUpdate(ctx, payoutID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("withdrawal not found")
			}
			return err
		}
		if payout.Status != models.PayoutStatusPending {
			return apperrors.FailedPrecondition("withdrawal is not pending")
		}

		if _, err := r.Wallets.GetForUpdate(ctx, payout.AccountID); err != nil {
			return err
		}
		if err := r.Wallets.ApplyDelta(ctx, payout.AccountID, 0, -payout.Amount, -payout.Amount); err != nil {
			return err
		}
		if err := r.Payouts.UpdateStatus(ctx, payoutID, models.PayoutStatusApproved, &approverID, nil); err != nil {
			return err
		}
		return r.Ledger.UpdateStatus(ctx, payout.LedgerTxID, models.LedgerStatusCompleted)
	})
	if txErr != nil {
		return apperrors.From(txErr)
	}

	s.log.Info("Withdrawal approved",
		zap.String("payout_id", payoutID.String()),
		zap.String("approver", approverID.String()),
	)
	return nil
}

// RejectWithdrawal reverses the pending hold back to available.
func (s *WalletService) RejectWithdrawal(ctx context.Context, payoutID, approverID uuid.UUID, reason string) *apperrors.Error {
	txErr := s.tx.Do(ctx, func(ctx context.Context, r *repository.Repos) error {
		payout, err := r.Payouts.FindByIDForUpdate(ctx, payoutID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("withdrawal not found")
			}
			return err
		}
		if payout.Status != models.PayoutStatusPending {
			return apperrors.FailedPrecondition("withdrawal is not pending")
		}

		if _, err := r.Wallets.GetForUpdate(ctx, payout.AccountID); err != nil {
			return err
		}
		if err := r.Wallets.ApplyDelta(ctx, payout.AccountID, payout.Amount, -payout.Amount, 0); err != nil {
			return err
		}
		if err := r.Payouts.UpdateStatus(ctx, payoutID, models.PayoutStatusRejected, &approverID, &reason); err != nil {
			return err
		}
		return r.Ledger.UpdateStatus(ctx, payout.LedgerTxID, models.LedgerStatusFailed)
	})
	if txErr != nil {
		return apperrors.From(txErr)
	}

	s.log.Info("Withdrawal rejected",
		zap.String("payout_id", payoutID.String()),
		zap.String("approver", approverID.String()),
	)
	return nil
}

// GetLedger returns the account's ledger history, newest first.
func (s *WalletService) GetLedger(ctx context.Context, accountID uuid.UUID, page, limit int) (*LedgerListResponse, *apperrors.Error) {
	txs, total, err := s.repos.Ledger.FindByAccountID(ctx, accountID, page, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch ledger", err)
	}
	return &LedgerListResponse{
		Transactions: txs,
		Meta: MetaData{
			Page:       page,
			Limit:      limit,
			TotalItems: total,
			TotalPages: calculateTotalPages(total, limit),
			HasMore:    total > int64(page*limit),
		},
	}, nil
}

// ListPayouts returns payouts filtered by status (admin view).
func (s *WalletService) ListPayouts(ctx context.Context, status string, page, limit int) (*PayoutListResponse, *apperrors.Error) {
	payouts, total, err := s.repos.Payouts.FindByStatus(ctx, status, page, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to fetch payouts", err)
	}
	return &PayoutListResponse{
		Payouts: payouts,
		Meta: MetaData{
			Page:       page,
			Limit:      limit,
			TotalItems: total,
			TotalPages: calculateTotalPages(total, limit),
			HasMore:    total > int64(page*limit),
		},
	}, nil
}

func (s *WalletService) lockOrCreateWallet(ctx context.Context, r *repository.Repos, accountID uuid.UUID) error {
	_, err := r.Wallets.GetForUpdate(ctx, accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.Wallets.Create(ctx, &models.Wallet{AccountID: accountID, Currency: s.currency})
	}
	return err
}

func (s *WalletService) priorTransferResult(ctx context.Context, resultRef *uuid.UUID) (*TransferResult, *apperrors.Error) {
	if resultRef == nil {
		return nil, apperrors.Internal("completed transfer has no result reference", nil)
	}
	ledgerTx, err := s.repos.Ledger.FindByID(ctx, *resultRef)
	if err != nil {
		return nil, apperrors.Internal("failed to load prior transfer result", err)
	}
	return &TransferResult{TransactionID: ledgerTx.ID, Amount: ledgerTx.Amount}, nil
}

func (s *WalletService) priorWithdrawResult(ctx context.Context, resultRef *uuid.UUID) (*WithdrawResult, *apperrors.Error) {
	if resultRef == nil {
		return nil, apperrors.Internal("completed withdrawal has no result reference", nil)
	}
	// The idempotency record references the ledger row; the payout points
	// back at it.
	payout, err := s.repos.Payouts.FindByLedgerTxID(ctx, *resultRef)
	if err != nil {
		return nil, apperrors.Internal("failed to load prior withdrawal result", err)
	}
	return &WithdrawResult{WithdrawalID: payout.ID, Status: payout.Status}, nil
}
