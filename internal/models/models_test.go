package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPrincipalPermissions(t *testing.T) {
	admin := Principal{ID: "u-admin", Grants: NewGrants([]string{RoleAdmin}, nil)}
	seller := Principal{ID: "u-seller", Grants: NewGrants([]string{RoleSeller}, []string{PermCreateProduct})}
	customer := Principal{ID: "u-customer", Grants: DefaultGrants()}

	t.Run("admin bypasses every permission check", func(t *testing.T) {
		assert.True(t, admin.HasPermissions(PermDeleteProduct))
		assert.True(t, admin.HasPermissions("anything:at-all", PermManageOrders))
	})

	t.Run("seller holds exactly create:product", func(t *testing.T) {
		assert.True(t, seller.HasPermissions(PermCreateProduct))
		assert.False(t, seller.HasPermissions(PermDeleteProduct))
		assert.False(t, seller.HasPermissions(PermCreateProduct, PermDeleteProduct))
	})

	t.Run("role intersection", func(t *testing.T) {
		assert.True(t, seller.HasAnyRole(RoleAdmin, RoleSeller))
		assert.False(t, customer.HasAnyRole(RoleAdmin, RoleSeller))
		assert.True(t, customer.HasAnyRole(RoleCustomer))
	})

	t.Run("empty requirement admits", func(t *testing.T) {
		assert.True(t, customer.HasPermissions())
	})
}

func TestGrantsDeduplicate(t *testing.T) {
	g := NewGrants([]string{"seller", "seller"}, []string{"b", "a", "b"})
	assert.Equal(t, []string{"seller"}, g.RoleNames())
	assert.Equal(t, []string{"a", "b"}, g.PermissionNames())
}

func TestOrderTotal(t *testing.T) {
	items := []OrderItem{
		{ProductID: 1, Quantity: 2, Price: decimal.RequireFromString("10.00")},
		{ProductID: 2, Quantity: 1, Price: decimal.RequireFromString("5.00")},
	}

	detail := NewOrderDetail(Order{ID: 1, Status: OrderStatusPending}, items)

	assert.True(t, detail.OrderTotal.Equal(decimal.RequireFromString("25.00")))
	assert.Len(t, detail.Items, 2)
}

func TestNewOrderDetailWithoutItems(t *testing.T) {
	detail := NewOrderDetail(Order{ID: 3}, nil)
	assert.NotNil(t, detail.Items)
	assert.True(t, detail.OrderTotal.IsZero())
}
