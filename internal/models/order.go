package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusPaymentPending OrderStatus = "payment_pending"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusPaymentFailed  OrderStatus = "payment_failed"
)

type Order struct {
	ID                    int64       `json:"id"`
	UserID                string      `json:"userId"`
	Status                OrderStatus `json:"status"`
	CreatedAt             time.Time   `json:"createdAt"`
	StripePaymentIntentID *string     `json:"stripePaymentIntentId"`
}

// OrderItem : le prix est un instantané du prix produit à la création
type OrderItem struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"orderId"`
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// LineTotal = prix unitaire × quantité
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderLine est une ligne demandée par l'acheteur
type OrderLine struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// OrderWithTotal expose la commande avec son total calculé
type OrderWithTotal struct {
	Order
	OrderTotal decimal.Decimal `json:"orderTotal"`
}

// OrderDetail : commande, total recalculé et lignes
type OrderDetail struct {
	OrderWithTotal
	Items []OrderItem `json:"items"`
}

// CreatedOrder est la réponse de création : {order, items}
type CreatedOrder struct {
	Order OrderWithTotal `json:"order"`
	Items []OrderItem    `json:"items"`
}

// OrderTotal somme prix × quantité ; jamais stocké en base
func OrderTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// NewOrderDetail assemble une commande et ses lignes
func NewOrderDetail(order Order, items []OrderItem) OrderDetail {
	if items == nil {
		items = []OrderItem{}
	}
	return OrderDetail{
		OrderWithTotal: OrderWithTotal{Order: order, OrderTotal: OrderTotal(items)},
		Items:          items,
	}
}

// OrderStatusEvent est publié à chaque changement de statut
type OrderStatusEvent struct {
	OrderID int64       `json:"orderId"`
	UserID  string      `json:"userId"`
	Status  OrderStatus `json:"status"`
	At      time.Time   `json:"at"`
}
