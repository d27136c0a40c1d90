package repository

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"storefront_back_end/internal/models"
)

var orderColumns = []string{"id", "user_id", "status", "created_at", "stripe_payment_intent_id"}

type OrderRepository struct {
	exec    DBTX
	builder squirrel.StatementBuilderType
}

func NewOrderRepository(exec DBTX) *OrderRepository {
	return &OrderRepository{exec: exec, builder: newBuilder()}
}

func (r *OrderRepository) WithTx(tx pgx.Tx) *OrderRepository {
	if tx == nil {
		return r
	}
	return &OrderRepository{exec: tx, builder: r.builder}
}

// Create insère une commande vide pour l'acheteur
func (r *OrderRepository) Create(ctx context.Context, userID string, status models.OrderStatus) (*models.Order, error) {
	stmt, args, err := r.builder.Insert("orders").
		Columns("user_id", "status", "created_at").
		Values(userID, string(status), time.Now().UTC()).
		Suffix("RETURNING id, user_id, status, created_at, stripe_payment_intent_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert order sql: %w", err)
	}

	order, err := scanOrder(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", translate(err))
	}
	return order, nil
}

// AddItem insère une ligne de commande
func (r *OrderRepository) AddItem(ctx context.Context, item models.OrderItem) (*models.OrderItem, error) {
	stmt, args, err := r.builder.Insert("order_items").
		Columns("order_id", "product_id", "quantity", "price").
		Values(item.OrderID, item.ProductID, item.Quantity, item.Price).
		Suffix("RETURNING id, order_id, product_id, quantity, price").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert order item sql: %w", err)
	}

	created, err := scanOrderItem(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, fmt.Errorf("insert order item: %w", translate(err))
	}
	return created, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	stmt, args, err := r.builder.Select(orderColumns...).
		From("orders").
		Where(squirrel.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select order sql: %w", err)
	}

	order, err := scanOrder(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, translate(err)
	}
	return order, nil
}

// ListByUser retourne les commandes d'un acheteur, les plus récentes d'abord
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	stmt, args, err := r.builder.Select(orderColumns...).
		From("orders").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list orders sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]models.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}

// ItemsByOrders charge les lignes de plusieurs commandes en une requête
func (r *OrderRepository) ItemsByOrders(ctx context.Context, orderIDs ...int64) (map[int64][]models.OrderItem, error) {
	out := make(map[int64][]models.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}

	stmt, args, err := r.builder.Select("id", "order_id", "product_id", "quantity", "price").
		From("order_items").
		Where(squirrel.Eq{"order_id": orderIDs}).
		OrderBy("order_id ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select order items sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out[item.OrderID] = append(out[item.OrderID], *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}
	return out, nil
}

// SetPaymentIntent enregistre l'intent Stripe et le nouveau statut
func (r *OrderRepository) SetPaymentIntent(ctx context.Context, orderID int64, intentID string, status models.OrderStatus) error {
	stmt, args, err := r.builder.Update("orders").
		Set("stripe_payment_intent_id", intentID).
		Set("status", string(status)).
		Where(squirrel.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update order intent sql: %w", err)
	}

	res, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update order intent: %w", translate(err))
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatusByIntent met à jour les commandes liées à un intent et les retourne
func (r *OrderRepository) UpdateStatusByIntent(ctx context.Context, intentID string, status models.OrderStatus) ([]models.Order, error) {
	stmt, args, err := r.builder.Update("orders").
		Set("status", string(status)).
		Where(squirrel.Eq{"stripe_payment_intent_id": intentID}).
		Suffix("RETURNING id, user_id, status, created_at, stripe_payment_intent_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update order status sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	defer rows.Close()

	orders := make([]models.Order, 0, 1)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate updated orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o      models.Order
		status string
	)
	if err := row.Scan(&o.ID, &o.UserID, &status, &o.CreatedAt, &o.StripePaymentIntentID); err != nil {
		return nil, err
	}
	o.Status = models.OrderStatus(status)
	return &o, nil
}

func scanOrderItem(row pgx.Row) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
		return nil, err
	}
	return &item, nil
}
