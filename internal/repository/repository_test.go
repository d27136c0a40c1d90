package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront_back_end/internal/models"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestRunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit on success", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		mock.ExpectExec(`UPDATE orders`).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		err := RunInTx(ctx, mock, func(tx pgx.Tx) error {
			_, err := tx.Exec(ctx, "UPDATE orders SET status = 'paid'")
			return err
		})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback keeps the callback error", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
		mock.ExpectRollback()

		sentinel := errors.New("product missing")
		err := RunInTx(ctx, mock, func(pgx.Tx) error { return sentinel })
		require.ErrorIs(t, err, sentinel)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		mock := newMock(t)
		mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted}).WillReturnError(errors.New("pool exhausted"))

		called := false
		err := RunInTx(ctx, mock, func(pgx.Tx) error { called = true; return nil })
		require.Error(t, err)
		assert.False(t, called)
	})
}

func TestProductRepository_Price(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery(`SELECT price FROM products WHERE id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"price"}).AddRow(decimal.RequireFromString("12.50")))
	mock.ExpectQuery(`SELECT price FROM products WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	price, err := repo.Price(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "12.5", price.String())

	_, err = repo.Price(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Delete(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectExec(`DELETE FROM products`).WithArgs(int64(1)).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM products`).WithArgs(int64(2)).WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`DELETE FROM products`).WithArgs(int64(3)).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "order_items_product_id_fkey"})

	require.NoError(t, repo.Delete(ctx, 1))
	assert.ErrorIs(t, repo.Delete(ctx, 2), ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, 3), ErrReferenced)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_List(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)
	repo := NewProductRepository(mock)

	now := time.Now().UTC()
	image := "http://minio:9000/products/a.png"
	rows := pgxmock.NewRows(productColumns).
		AddRow(int64(2), "Lamp", "Desk lamp", decimal.RequireFromString("30.00"), &image, "seller-1", now, now).
		AddRow(int64(1), "Mug", "", decimal.RequireFromString("8.00"), nil, "seller-1", now, now)
	mock.ExpectQuery(`SELECT .* FROM products ORDER BY created_at DESC`).WillReturnRows(rows)

	products, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Lamp", products[0].Name)
	require.NotNil(t, products[0].Image)
	assert.Equal(t, image, *products[0].Image)
	assert.Nil(t, products[1].Image)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CreateAndAddItem(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO orders \(user_id,status,created_at\)`).
		WithArgs("buyer-1", "pending", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(orderColumns).AddRow(int64(10), "buyer-1", "pending", now, nil))

	price := decimal.RequireFromString("10.00")
	mock.ExpectQuery(`INSERT INTO order_items`).
		WithArgs(int64(10), int64(1), 2, price).
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "price"}).
			AddRow(int64(100), int64(10), int64(1), 2, price))

	order, err := repo.Create(ctx, "buyer-1", models.OrderStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(10), order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Nil(t, order.StripePaymentIntentID)

	item, err := repo.AddItem(ctx, models.OrderItem{OrderID: 10, ProductID: 1, Quantity: 2, Price: price})
	require.NoError(t, err)
	assert.Equal(t, int64(100), item.ID)
	assert.True(t, item.LineTotal().Equal(decimal.RequireFromString("20.00")))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_ItemsByOrders(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)
	repo := NewOrderRepository(mock)

	rows := pgxmock.NewRows([]string{"id", "order_id", "product_id", "quantity", "price"}).
		AddRow(int64(1), int64(10), int64(1), 2, decimal.RequireFromString("10.00")).
		AddRow(int64(2), int64(10), int64(2), 1, decimal.RequireFromString("5.00")).
		AddRow(int64(3), int64(11), int64(1), 1, decimal.RequireFromString("10.00"))
	mock.ExpectQuery(`FROM order_items WHERE order_id IN \(\$1,\$2\)`).
		WithArgs(int64(10), int64(11)).
		WillReturnRows(rows)

	items, err := repo.ItemsByOrders(ctx, 10, 11)
	require.NoError(t, err)
	assert.Len(t, items[10], 2)
	assert.Len(t, items[11], 1)
	assert.Equal(t, "25", models.OrderTotal(items[10]).String())

	empty, err := repo.ItemsByOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_UpdateStatusByIntent(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)
	repo := NewOrderRepository(mock)
	intent := "pi_123"

	mock.ExpectQuery(`UPDATE orders SET status = \$1 WHERE stripe_payment_intent_id = \$2 RETURNING`).
		WithArgs("paid", intent).
		WillReturnRows(pgxmock.NewRows(orderColumns).AddRow(int64(10), "buyer-1", "paid", time.Now(), &intent))

	orders, err := repo.UpdateStatusByIntent(ctx, intent, models.OrderStatusPaid)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, models.OrderStatusPaid, orders[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantRepository_NamesByUser(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)
	repo := NewGrantRepository(mock)

	mock.ExpectQuery(`SELECT r.name FROM roles r JOIN user_roles ur`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("customer").AddRow("seller"))
	mock.ExpectQuery(`SELECT DISTINCT p.name FROM permissions p`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"name"}).AddRow("create:product").AddRow("read:product"))

	roles, err := repo.RoleNamesByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"customer", "seller"}, roles)

	perms, err := repo.PermissionNamesByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"create:product", "read:product"}, perms)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantRepository_AssignRoleByName(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)
	repo := NewGrantRepository(mock)

	mock.ExpectExec(`INSERT INTO user_roles \(user_id,role_id\) SELECT`).
		WithArgs("user-1", "seller").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectExec(`INSERT INTO user_roles`).
		WithArgs("user-1", "ghost").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("ghost").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	require.NoError(t, repo.AssignRoleByName(ctx, "user-1", "seller"))
	assert.ErrorIs(t, repo.AssignRoleByName(ctx, "user-1", "ghost"), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateConflict(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(pgxmock.AnyArg(), "jane@example.com", "Jane", "hash", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(ctx, models.User{Email: " Jane@Example.com ", Name: "Jane", PasswordHash: "hash"})
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrantRepository_SeedGrants(t *testing.T) {
	mock := newMock(t)
	mock.MatchExpectationsInOrder(false)

	for _, p := range models.DefaultPermissions {
		mock.ExpectQuery(`INSERT INTO permissions`).
			WithArgs(pgxmock.AnyArg(), p.Name, p.Description).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("perm-" + p.Name))
	}
	grants := 0
	for name, role := range models.DefaultRoles {
		mock.ExpectQuery(`INSERT INTO roles`).
			WithArgs(pgxmock.AnyArg(), name, role.Description).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("role-" + name))
		for _, perm := range role.Permissions {
			mock.ExpectExec(`INSERT INTO role_permissions`).
				WithArgs("role-"+name, "perm-"+perm).
				WillReturnResult(pgxmock.NewResult("INSERT", 1))
			grants++
		}
	}

	require.NoError(t, NewGrantRepository(mock).SeedGrants(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 12, grants)
}
