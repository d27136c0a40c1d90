package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/metrics"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/repository"
	"storefront_back_end/internal/utils"
)

// OrderService crée et lit les commandes des acheteurs
type OrderService struct {
	db       repository.TxBeginner
	orders   *repository.OrderRepository
	products *repository.ProductRepository
	audit    Auditor
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewOrderService(
	db repository.TxBeginner,
	orders *repository.OrderRepository,
	products *repository.ProductRepository,
	audit Auditor,
	m *metrics.Metrics,
	log *zap.Logger,
) *OrderService {
	if audit == nil {
		audit = nopAuditor{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OrderService{db: db, orders: orders, products: products, audit: audit, metrics: m, log: log}
}

// validateLines rejette une demande vide ou mal formée, avant toute transaction
func validateLines(lines []models.OrderLine) error {
	if len(lines) == 0 {
		return apperr.Validation("Order must contain at least one item")
	}
	fields := make(map[string]string)
	for i, line := range lines {
		if line.ProductID <= 0 {
			fields[fmt.Sprintf("items[%d].productId", i)] = "must be a positive integer"
		}
		if line.Quantity <= 0 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "must be greater than 0"
		}
	}
	if len(fields) > 0 {
		return apperr.InvalidFields(fields)
	}
	return nil
}

// Create enregistre la commande et ses lignes dans une seule transaction.
// Chaque ligne prend le prix du produit lu dans la transaction ;
// un produit absent annule toute la commande.
func (s *OrderService) Create(ctx context.Context, buyer models.Principal, lines []models.OrderLine) (*models.CreatedOrder, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	var created models.CreatedOrder
	err := repository.RunInTx(ctx, s.db, func(tx pgx.Tx) error {
		orders := s.orders.WithTx(tx)
		products := s.products.WithTx(tx)

		order, err := orders.Create(ctx, buyer.ID, models.OrderStatusPending)
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(lines))
		for _, line := range lines {
			price, err := products.Price(ctx, line.ProductID)
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.NotFound("Product %d not found", line.ProductID)
			}
			if err != nil {
				return err
			}

			item, err := orders.AddItem(ctx, models.OrderItem{
				OrderID:   order.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     price,
			})
			if err != nil {
				// produit supprimé entre la lecture du prix et l'insertion
				if errors.Is(err, repository.ErrReferenced) {
					return apperr.NotFound("Product %d not found", line.ProductID)
				}
				return err
			}
			items = append(items, *item)
		}

		created = models.CreatedOrder{
			Order: models.OrderWithTotal{Order: *order, OrderTotal: models.OrderTotal(items)},
			Items: items,
		}
		return nil
	})
	if err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperr.Internal(err, "Failed to create order")
	}

	s.metrics.OrderCreated()
	s.audit.Record(ctx, utils.NewAuditEntry(buyer, utils.ACTION_ORDER_CREATE, utils.RESOURCE_ORDER,
		strconv.FormatInt(created.Order.ID, 10), created))
	s.log.Info("🛒 Commande créée",
		zap.Int64("order_id", created.Order.ID),
		zap.String("user_id", buyer.ID),
		zap.Int("items", len(created.Items)),
		zap.String("total", created.Order.OrderTotal.StringFixed(2)),
	)
	return &created, nil
}

// ListForBuyer retourne toutes les commandes de l'acheteur avec lignes et total
func (s *OrderService) ListForBuyer(ctx context.Context, buyer models.Principal) ([]models.OrderDetail, error) {
	orders, err := s.orders.ListByUser(ctx, buyer.ID)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to fetch orders")
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	itemsByOrder, err := s.orders.ItemsByOrders(ctx, ids...)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to fetch orders")
	}

	details := make([]models.OrderDetail, 0, len(orders))
	for _, o := range orders {
		details = append(details, models.NewOrderDetail(o, itemsByOrder[o.ID]))
	}
	return details, nil
}

// GetForBuyer retourne une commande : 404 si absente, 403 si elle appartient à un autre acheteur
func (s *OrderService) GetForBuyer(ctx context.Context, buyer models.Principal, orderID int64) (*models.OrderDetail, error) {
	order, err := s.ownedOrder(ctx, buyer, orderID, "Not authorized to view this order")
	if err != nil {
		return nil, err
	}

	itemsByOrder, err := s.orders.ItemsByOrders(ctx, order.ID)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to fetch order")
	}
	detail := models.NewOrderDetail(*order, itemsByOrder[order.ID])
	return &detail, nil
}

// ownedOrder charge la commande et vérifie qu'elle appartient à l'acheteur
func (s *OrderService) ownedOrder(ctx context.Context, buyer models.Principal, orderID int64, forbidden string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Order not found")
	}
	if err != nil {
		return nil, apperr.Internal(err, "Failed to fetch order")
	}
	if order.UserID != buyer.ID {
		return nil, apperr.Forbidden("%s", forbidden)
	}
	return order, nil
}
