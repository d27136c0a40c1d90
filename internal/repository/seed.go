package repository

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"storefront_back_end/internal/models"
)

// SeedGrants crée les permissions et rôles par défaut puis les relie.
// Rejouable : chaque étape est idempotente.
func (r *GrantRepository) SeedGrants(ctx context.Context) error {
	permIDs := make(map[string]string, len(models.DefaultPermissions))
	for _, p := range models.DefaultPermissions {
		id, err := r.EnsurePermission(ctx, p.Name, p.Description)
		if err != nil {
			return err
		}
		permIDs[p.Name] = id
	}

	for _, name := range slices.Sorted(maps.Keys(models.DefaultRoles)) {
		role := models.DefaultRoles[name]
		roleID, err := r.EnsureRole(ctx, name, role.Description)
		if err != nil {
			return err
		}
		for _, perm := range role.Permissions {
			permID, ok := permIDs[perm]
			if !ok {
				return fmt.Errorf("role %s: unknown permission %s", name, perm)
			}
			if err := r.GrantPermission(ctx, roleID, permID); err != nil {
				return err
			}
		}
	}
	return nil
}
