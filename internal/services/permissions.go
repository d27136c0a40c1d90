package services

import (
	"context"
	"fmt"

	"storefront_back_end/internal/models"
)

// GrantStore lit les rôles et permissions attribués à un utilisateur
type GrantStore interface {
	RoleNamesByUser(ctx context.Context, userID string) ([]string, error)
	PermissionNamesByUser(ctx context.Context, userID string) ([]string, error)
}

// PermissionResolver calcule les droits effectifs d'un utilisateur
type PermissionResolver struct {
	store GrantStore
}

func NewPermissionResolver(store GrantStore) *PermissionResolver {
	return &PermissionResolver{store: store}
}

// Resolve retourne rôles et permissions de l'utilisateur.
// Sans aucun rôle attribué, l'utilisateur est un simple client sans permission.
func (r *PermissionResolver) Resolve(ctx context.Context, userID string) (models.Grants, error) {
	roles, err := r.store.RoleNamesByUser(ctx, userID)
	if err != nil {
		return models.Grants{}, fmt.Errorf("lecture des rôles: %w", err)
	}
	if len(roles) == 0 {
		return models.DefaultGrants(), nil
	}

	permissions, err := r.store.PermissionNamesByUser(ctx, userID)
	if err != nil {
		return models.Grants{}, fmt.Errorf("lecture des permissions: %w", err)
	}
	return models.NewGrants(roles, permissions), nil
}
