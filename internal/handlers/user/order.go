package user

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront_back_end/internal/handlers"
	"storefront_back_end/internal/models"
)

// Orders est le service de commandes utilisé par OrderHandler
type Orders interface {
	Create(ctx context.Context, buyer models.Principal, lines []models.OrderLine) (*models.CreatedOrder, error)
	ListForBuyer(ctx context.Context, buyer models.Principal) ([]models.OrderDetail, error)
	GetForBuyer(ctx context.Context, buyer models.Principal, orderID int64) (*models.OrderDetail, error)
}

// StatusSubscriber fournit le flux des changements de statut d'une commande
type StatusSubscriber interface {
	SubscribeOrderStatus(ctx context.Context, orderID int64) (<-chan models.OrderStatusEvent, error)
}

type OrderHandler struct {
	orders Orders
	events StatusSubscriber
	log    *zap.Logger
}

func NewOrderHandler(orders Orders, events StatusSubscriber, log *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, events: events, log: log}
}

// CreateOrder : POST /orders {items:[{productId, quantity}]}
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	buyer, ok := handlers.MustPrincipal(c)
	if !ok {
		return
	}

	var in struct {
		Items []models.OrderLine `json:"items"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		handlers.BadJSON(c, err)
		return
	}

	created, err := h.orders.Create(c.Request.Context(), buyer, in.Items)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// GetMyOrders : GET /orders
func (h *OrderHandler) GetMyOrders(c *gin.Context) {
	buyer, ok := handlers.MustPrincipal(c)
	if !ok {
		return
	}

	orders, err := h.orders.ListForBuyer(c.Request.Context(), buyer)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetOrderByID : GET /orders/:id, 404 si absente, 403 si elle appartient à un autre acheteur
func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	buyer, ok := handlers.MustPrincipal(c)
	if !ok {
		return
	}
	id, ok := handlers.ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orders.GetForBuyer(c.Request.Context(), buyer, id)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
