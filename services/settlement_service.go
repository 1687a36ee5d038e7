package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"marketplace-backend/common/apperrors"
	"marketplace-backend/events"
	"marketplace-backend/models"
	awspkg "marketplace-backend/pkg/aws"
	"marketplace-backend/repository"
)

// SettlementResult reports what a settlement attempt actually did.
type SettlementResult struct {
	OrderID        uuid.UUID
	AlreadySettled bool
	LedgerTxIDs    []uuid.UUID
	VendorCredits  []models.VendorCredit
	UserID         uuid.UUID
	Amount         int64
}

// SettlementService turns a verified payment confirmation into vendor
// credits. The whole unit — order state, vendor attribution, commission
// split, wallet credits, ledger records — commits or rolls back as one
// transaction. Event fan-out happens only after the commit.
type SettlementService struct {
	tx             repository.TxManager
	guard          *IdempotencyGuard
	producer       events.Publisher
	sns            awspkg.SNSPublisher
	snsTopicArn    string
	currency       string
	defaultRateBps int
	log            *zap.Logger
}

func NewSettlementService(
	tx repository.TxManager,
	guard *IdempotencyGuard,
	producer events.Publisher,
	sns awspkg.SNSPublisher,
	snsTopicArn string,
	currency string,
	defaultRateBps int,
	log *zap.Logger,
) *SettlementService {
	return &SettlementService{
		tx:             tx,
		guard:          guard,
		producer:       producer,
		sns:            sns,
		snsTopicArn:    snsTopicArn,
		currency:       currency,
		defaultRateBps: defaultRateBps,
		log:            log,
	}
}

// HandlePaymentSucceeded is the single entry point for gateway success
// notifications. eventToken is the gateway's transaction/event id; amount is
// the amount the gateway reports as collected (0 skips the cross-check).
// Duplicate deliveries return nil without re-executing side effects.
func (s *SettlementService) HandlePaymentSucceeded(ctx context.Context, eventToken string, orderID uuid.UUID, gatewayRef string, amount int64) *apperrors.Error {
	key := models.IdempotencyKey(models.IdempotencyNamespaceWebhook, eventToken)

	outcome, _, err := s.guard.Claim(ctx, key)
	if err != nil {
		return apperrors.Internal("idempotency claim failed", err)
	}
	if outcome != ClaimAcquired {
		s.log.Info("Duplicate payment notification ignored",
			zap.String("event", eventToken),
			zap.String("order_id", orderID.String()),
		)
		return nil
	}

	result, settleErr := s.settle(ctx, orderID, gatewayRef, amount)
	if settleErr != nil {
		s.guard.Fail(ctx, key, settleErr)
		return apperrors.From(settleErr)
	}

	var resultRef *uuid.UUID
	if len(result.LedgerTxIDs) > 0 {
		resultRef = &result.LedgerTxIDs[0]
	}
	s.guard.Complete(ctx, key, resultRef)

	if !result.AlreadySettled {
		s.publishSettlementEvent(ctx, result, gatewayRef)
	}
	return nil
}

// HandlePaymentFailed records a failed or canceled payment against the
// order. Idempotency-guarded like the success path.
func (s *SettlementService) HandlePaymentFailed(ctx context.Context, eventToken string, orderID uuid.UUID, gatewayRef, paymentStatus string) *apperrors.Error {
	key := models.IdempotencyKey(models.IdempotencyNamespaceWebhook, eventToken)

	outcome, _, err := s.guard.Claim(ctx, key)
	if err != nil {
		return apperrors.Internal("idempotency claim failed", err)
	}
	if outcome != ClaimAcquired {
		return nil
	}

	txErr := s.tx.Do(ctx, func(ctx context.Context, r *repository.Repos) error {
		order, err := r.Orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("order not found")
			}
			return err
		}
		// A settled order never transitions back; late failure events for it
		// are ignored.
		if order.PaymentStatus == models.PaymentStatusPaid {
			return nil
		}
		return r.Orders.UpdatePaymentStatus(ctx, orderID, paymentStatus, gatewayRef)
	})
	if txErr != nil {
		s.guard.Fail(ctx, key, txErr)
		return apperrors.From(txErr)
	}

	s.guard.Complete(ctx, key, nil)
	s.log.Info("Payment marked failed",
		zap.String("order_id", orderID.String()),
		zap.String("payment_status", paymentStatus),
	)
	return nil
}

// settle runs the seven settlement steps inside one transaction.
func (s *SettlementService) settle(ctx context.Context, orderID uuid.UUID, gatewayRef string, amount int64) (*SettlementResult, error) {
	result := &SettlementResult{OrderID: orderID}

	err := s.tx.Do(ctx, func(ctx context.Context, r *repository.Repos) error {
		order, err := r.Orders.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("order not found")
			}
			return err
		}
		result.UserID = order.UserID
		result.Amount = order.TotalPrice

		// Idempotent at this layer too, independent of the guard.
		if order.PaymentStatus == models.PaymentStatusPaid {
			result.AlreadySettled = true
			return nil
		}

		// An unpaid order must have no settlement ledger rows; any here mean
		// a torn earlier attempt and the order needs manual review before it
		// can be credited.
		existing, err := r.Ledger.CountByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if existing > 0 {
			return apperrors.Internal(
				fmt.Sprintf("order %s is unpaid but already has %d ledger records", orderID, existing), nil)
		}

		var computed int64
		for _, item := range order.Items {
			computed += item.UnitPrice * int64(item.Quantity)
		}
		if computed != order.TotalPrice {
			return apperrors.FailedPrecondition(
				fmt.Sprintf("order %s total mismatch: stored %d, computed %d", orderID, order.TotalPrice, computed))
		}
		if amount > 0 && amount != order.TotalPrice {
			return apperrors.FailedPrecondition(
				fmt.Sprintf("gateway amount %d does not match order total %d", amount, order.TotalPrice))
		}

		if err := s.verifyVendorAttribution(ctx, r, order); err != nil {
			return err
		}

		subtotals := groupByVendor(order.Items)
		rates, err := s.vendorRates(ctx, r, subtotals)
		if err != nil {
			return err
		}

		// Deterministic vendor order keeps wallet lock acquisition stable
		// across concurrent settlements.
		vendorIDs := sortedVendorIDs(subtotals)
		now := time.Now().UTC()

		for _, vendorID := range vendorIDs {
			subtotal := subtotals[vendorID]
			fee := subtotal * int64(rates[vendorID]) / 10000
			credit := subtotal - fee

			if err := s.creditWallet(ctx, r, vendorID, credit); err != nil {
				return err
			}

			ledgerTx := &models.LedgerTransaction{
				OrderID:     &order.ID,
				AccountID:   vendorID,
				Type:        models.LedgerTypeOrderPayment,
				Amount:      credit,
				PlatformFee: fee,
				Status:      models.LedgerStatusCompleted,
				GatewayRef:  &gatewayRef,
			}
			if err := r.Ledger.Create(ctx, ledgerTx); err != nil {
				return err
			}

			result.LedgerTxIDs = append(result.LedgerTxIDs, ledgerTx.ID)
			result.VendorCredits = append(result.VendorCredits, models.VendorCredit{
				VendorID:    vendorID.String(),
				Amount:      credit,
				PlatformFee: fee,
			})
		}

		return r.Orders.MarkPaid(ctx, order.ID, gatewayRef, now)
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindSecurity {
			s.log.Error("Settlement aborted: vendor attribution mismatch",
				zap.String("order_id", orderID.String()),
				zap.Error(err),
			)
		} else {
			s.log.Error("Settlement failed",
				zap.String("order_id", orderID.String()),
				zap.Error(err),
			)
		}
		return nil, err
	}

	if result.AlreadySettled {
		s.log.Info("Order already settled, no-op",
			zap.String("order_id", orderID.String()),
		)
	} else {
		s.log.Info("Order settled",
			zap.String("order_id", orderID.String()),
			zap.Int("vendors", len(result.VendorCredits)),
			zap.Int64("amount", result.Amount),
		)
	}
	return result, nil
}

// verifyVendorAttribution re-reads every product inside the settlement
// transaction and confirms the recorded owner matches the line item. The
// window between order creation and payment confirmation is an attack
// surface (product reassignment, forged payloads), so the check runs again
// here even though vendor ids were written from the catalog at creation.
func (s *SettlementService) verifyVendorAttribution(ctx context.Context, r *repository.Repos, order *models.Order) error {
	ids := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := r.Products.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, item := range order.Items {
		product, ok := byID[item.ProductID]
		if !ok {
			return apperrors.Security(
				fmt.Sprintf("product %s on order %s no longer exists", item.ProductID, order.ID))
		}
		if product.VendorID != item.VendorID {
			return apperrors.Security(
				fmt.Sprintf("vendor attribution mismatch on order %s: item claims %s, product %s belongs to %s",
					order.ID, item.VendorID, item.ProductID, product.VendorID))
		}
	}
	return nil
}

// vendorRates resolves each vendor's commission rate in basis points; a
// vendor with rate 0 uses the platform default.
func (s *SettlementService) vendorRates(ctx context.Context, r *repository.Repos, subtotals map[uuid.UUID]int64) (map[uuid.UUID]int, error) {
	ids := sortedVendorIDs(subtotals)
	vendors, err := r.Vendors.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	rates := make(map[uuid.UUID]int, len(ids))
	for _, id := range ids {
		rates[id] = s.defaultRateBps
	}
	for _, v := range vendors {
		if v.CommissionRateBps > 0 {
			rates[v.ID] = v.CommissionRateBps
		}
	}
	return rates, nil
}

// creditWallet locks (creating lazily on first credit) the vendor wallet and
// applies the credit as a relative delta.
func (s *SettlementService) creditWallet(ctx context.Context, r *repository.Repos, accountID uuid.UUID, credit int64) error {
	_, err := r.Wallets.GetForUpdate(ctx, accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		wallet := &models.Wallet{AccountID: accountID, Currency: s.currency}
		if err := r.Wallets.Create(ctx, wallet); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}
	return r.Wallets.ApplyDelta(ctx, accountID, credit, 0, credit)
}

func (s *SettlementService) publishSettlementEvent(ctx context.Context, result *SettlementResult, gatewayRef string) {
	event := models.PaymentEvent{
		Type:       "payment_succeeded",
		OrderID:    result.OrderID.String(),
		UserID:     result.UserID.String(),
		Amount:     result.Amount,
		Currency:   s.currency,
		GatewayRef: gatewayRef,
		Vendors:    result.VendorCredits,
		Timestamp:  time.Now().UTC(),
	}
	payload, _ := json.Marshal(event)

	// Both sinks are best-effort; the settlement already committed.
	if s.producer != nil {
		if err := s.producer.Publish(ctx, event.OrderID, payload); err != nil {
			s.log.Warn("Failed to publish settlement event to Kafka",
				zap.String("order_id", event.OrderID),
				zap.Error(err),
			)
		}
	}
	if s.sns != nil && s.snsTopicArn != "" {
		if err := s.sns.Publish(ctx, s.snsTopicArn, payload); err != nil {
			s.log.Warn("Failed to publish settlement event to SNS",
				zap.String("order_id", event.OrderID),
				zap.Error(err),
			)
		}
	}
}

func groupByVendor(items []models.OrderItem) map[uuid.UUID]int64 {
	subtotals := make(map[uuid.UUID]int64)
	for _, item := range items {
		subtotals[item.VendorID] += item.UnitPrice * int64(item.Quantity)
	}
	return subtotals
}

func sortedVendorIDs(subtotals map[uuid.UUID]int64) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(subtotals))
	for id := range subtotals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}
