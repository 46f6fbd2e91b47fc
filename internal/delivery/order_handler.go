package delivery

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type OrderHandler struct {
	useCase domain.OrderUseCase
	log     *logrus.Logger
}

func NewOrderHandler(uc domain.OrderUseCase, logger *logrus.Logger) *OrderHandler {
	return &OrderHandler{
		useCase: uc,
		log:     logger,
	}
}

func (h *OrderHandler) RegisterRoutes(router gin.IRouter) {
	orders := router.Group("/orders")
	{
		orders.GET("", h.ListOrders)
		orders.GET("/:id", h.GetOrderByID)
		orders.POST("", h.CreateOrder)
		orders.PATCH("/:id/status", h.UpdateOrderStatus)
	}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req domain.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("Failed to bind JSON for create order: %v", err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	order, err := h.useCase.CreateOrder(c.Request.Context(), &req, c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		if mapErrorToStatus(err) == http.StatusInternalServerError {
			h.log.Errorf("Failed to create order for user %s: %v", req.UserID, err)
		} else {
			h.log.Warnf("Order for user %s rejected: %v", req.UserID, err)
		}
		respondError(c, err)
		return
	}

	h.log.Infof("Order %s created successfully for user %s", order.ID, order.UserID)
	SuccessResponse(c, http.StatusCreated, "Order created successfully", order)
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	id := c.Param("id")
	if !validID(id) {
		h.log.Warnf("Invalid order ID parameter: %s", id)
		ErrorResponse(c, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	order, err := h.useCase.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.log.Warnf("Failed to get order by ID %s: %v", id, err)
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", order)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	filter := domain.OrderFilter{
		UserID: c.Query("userId"),
		Status: domain.OrderStatus(c.Query("status")),
	}

	orders, err := h.useCase.ListOrders(c.Request.Context(), filter)
	if err != nil {
		h.log.Warnf("Failed to list orders: %v", err)
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "", orders)
}

func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	id := c.Param("id")
	if !validID(id) {
		h.log.Warnf("Invalid order ID parameter for status update: %s", id)
		ErrorResponse(c, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	var body struct {
		Status domain.OrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		h.log.Warnf("Failed to bind JSON for order %s status update: %v", id, err)
		ErrorResponse(c, http.StatusBadRequest, "Invalid request body: 'status' field is required")
		return
	}

	order, err := h.useCase.UpdateOrderStatus(c.Request.Context(), id, body.Status)
	if err != nil {
		h.log.Warnf("Failed to update status of order %s: %v", id, err)
		respondError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, "Order status updated", order)
}
