package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"marketplace-backend/middleware"
	"marketplace-backend/services"
)

type WalletController struct {
	walletService *services.WalletService
}

func NewWalletController(walletService *services.WalletService) *WalletController {
	return &WalletController{walletService: walletService}
}

// GetBalance returns the authenticated account's wallet.
func (wc *WalletController) GetBalance(c *gin.Context) {
	accountID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	wallet, appErr := wc.walletService.GetBalance(c.Request.Context(), accountID)
	if appErr != nil {
		c.JSON(appErr.Status(), gin.H{"error": appErr.Message})
		return
	}

	c.JSON(http.StatusOK, wallet)
}

// Transfer moves funds from the authenticated account to another.
func (wc *WalletController) Transfer(c *gin.Context) {
	fromID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		ToAccount      uuid.UUID `json:"to_account" binding:"required"`
		Amount         int64     `json:"amount" binding:"required,min=1"`
		Description    string    `json:"description"`
		IdempotencyKey string    `json:"idempotency_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	result, appErr := wc.walletService.Transfer(c.Request.Context(), fromID, req.ToAccount, req.Amount, req.Description, req.IdempotencyKey)
	if appErr != nil {
		c.JSON(appErr.Status(), gin.H{"error": appErr.Message})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Withdraw opens a payout request for the authenticated account.
func (wc *WalletController) Withdraw(c *gin.Context) {
	accountID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Amount         int64  `json:"amount" binding:"required,min=1"`
		Method         string `json:"method" binding:"required"`
		AccountDetails string `json:"account_details" binding:"required"`
		IdempotencyKey string `json:"idempotency_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	result, appErr := wc.walletService.Withdraw(c.Request.Context(), accountID, req.Amount, req.Method, req.AccountDetails, req.IdempotencyKey)
	if appErr != nil {
		c.JSON(appErr.Status(), gin.H{"error": appErr.Message})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ApproveWithdrawal completes a pending payout. Admin only (enforced by the
// route group).
func (wc *WalletController) ApproveWithdrawal(c *gin.Context) {
	approverID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid withdrawal id"})
		return
	}

	if appErr := wc.walletService.ApproveWithdrawal(c.Request.Context(), payoutID, approverID); appErr != nil {
		c.JSON(appErr.Status(), gin.H{"error": appErr.Message})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RejectWithdrawal reverses a pending payout. Admin only.
func (wc *WalletController) RejectWithdrawal(c *gin.Context) {
	approverID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	payoutID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid withdrawal id"})
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	if appErr := wc.walletService.RejectWithdrawal(c.Request.Context(), payoutID, approverID, req.Reason); appErr != nil {
		c.JSON(appErr.Status(), gin.H{"error": appErr.Message})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetLedger returns the authenticated account's transaction history.
func (wc *WalletController) GetLedger(c *gin.Context) {
	accountID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, limit := parsePaginationParams(c)
	result, appErr := wc.walletService.GetLedger(c.Request.Context(), accountID, page, limit)
	if appErr != nil {
		c.JSON(appErr.Status(), gin.H{"error": appErr.Message})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListPayouts returns payouts filtered by status. Admin only.
func (wc *WalletController) ListPayouts(c *gin.Context) {
	page, limit := parsePaginationParams(c)
	status := c.DefaultQuery("status", "pending")

	result, appErr := wc.walletService.ListPayouts(c.Request.Context(), status, page, limit)
	if appErr != nil {
		c.JSON(appErr.Status(), gin.H{"error": appErr.Message})
		return
	}

	c.JSON(http.StatusOK, result)
}
