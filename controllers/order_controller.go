package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"marketplace-backend/middleware"
	"marketplace-backend/services"
)

type OrderController struct {
	orderService *services.OrderService
}

func NewOrderController(orderService *services.OrderService) *OrderController {
	return &OrderController{orderService: orderService}
}

// CreateOrder handles checkout requests.
func (oc *OrderController) CreateOrder(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	result, appErr := oc.orderService.CreateOrder(c.Request.Context(), userID, &req)
	if appErr != nil {
		c.JSON(appErr.Status(), gin.H{"error": appErr.Message})
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetOrders returns paginated orders for the authenticated user.
func (oc *OrderController) GetOrders(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	page, limit := parsePaginationParams(c)
	result, appErr := oc.orderService.GetUserOrders(c.Request.Context(), userID, page, limit)
	if appErr != nil {
		c.JSON(appErr.Status(), gin.H{"error": appErr.Message})
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetOrder returns a single order owned by the authenticated user.
func (oc *OrderController) GetOrder(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	order, appErr := oc.orderService.GetOrderByID(c.Request.Context(), userID, orderID)
	if appErr != nil {
		c.JSON(appErr.Status(), gin.H{"error": appErr.Message})
		return
	}

	c.JSON(http.StatusOK, order)
}

func parsePaginationParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
