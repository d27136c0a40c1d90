package models

import "time"

// Role représente un rôle attribuable à un utilisateur
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Permission est toujours accordée à un rôle, jamais directement à un utilisateur
type Permission struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Rôles prédéfinis
const (
	RoleAdmin    = "admin"
	RoleSeller   = "seller"
	RoleCustomer = "customer"
)

// Permissions prédéfinies
const (
	PermManageAll     = "manage:all"
	PermCreateProduct = "create:product"
	PermUpdateProduct = "update:product"
	PermDeleteProduct = "delete:product"
	PermReadProduct   = "read:product"
	PermManageOrders  = "manage:orders"
)

// DefaultPermissions liste les permissions créées par le seed
var DefaultPermissions = []Permission{
	{Name: PermManageAll, Description: "Full system access"},
	{Name: PermCreateProduct, Description: "Can create products"},
	{Name: PermUpdateProduct, Description: "Can update products"},
	{Name: PermDeleteProduct, Description: "Can delete products"},
	{Name: PermReadProduct, Description: "Can view products"},
	{Name: PermManageOrders, Description: "Can manage orders"},
}

// DefaultRoles associe chaque rôle du seed à ses permissions
var DefaultRoles = map[string]struct {
	Description string
	Permissions []string
}{
	RoleAdmin: {
		Description: "Administrator with full access",
		Permissions: []string{
			PermManageAll, PermCreateProduct, PermUpdateProduct,
			PermDeleteProduct, PermReadProduct, PermManageOrders,
		},
	},
	RoleSeller: {
		Description: "Can manage their own products",
		Permissions: []string{
			PermCreateProduct, PermUpdateProduct, PermDeleteProduct,
			PermReadProduct, PermManageOrders,
		},
	},
	RoleCustomer: {
		Description: "Regular customer",
		Permissions: []string{PermReadProduct},
	},
}

// AuditLog représente une entrée du journal d'audit
type AuditLog struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	UserEmail  string    `json:"userEmail"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resourceId,omitempty"`
	OldValue   string    `json:"oldValue,omitempty"`
	NewValue   string    `json:"newValue,omitempty"`
	Success    bool      `json:"success"`
	Timestamp  time.Time `json:"timestamp"`
}
