package models

import (
	"maps"
	"slices"
)

// Grants est l'ensemble plat des rôles et permissions d'un utilisateur.
type Grants struct {
	Roles       map[string]struct{}
	Permissions map[string]struct{}
}

// NewGrants construit un Grants dédupliqué à partir de listes de noms
func NewGrants(roles, permissions []string) Grants {
	g := Grants{
		Roles:       make(map[string]struct{}, len(roles)),
		Permissions: make(map[string]struct{}, len(permissions)),
	}
	for _, r := range roles {
		g.Roles[r] = struct{}{}
	}
	for _, p := range permissions {
		g.Permissions[p] = struct{}{}
	}
	return g
}

// DefaultGrants est attribué à un utilisateur sans aucun rôle
func DefaultGrants() Grants {
	return NewGrants([]string{RoleCustomer}, nil)
}

// Principal est l'utilisateur authentifié d'une requête. Jamais persisté.
type Principal struct {
	ID    string
	Email string
	// TokenID identifie le jeton porteur (révocation au logout)
	TokenID string
	Grants  Grants
}

// HasAnyRole est vrai si au moins un des rôles est détenu
func (p Principal) HasAnyRole(names ...string) bool {
	for _, n := range names {
		if _, ok := p.Grants.Roles[n]; ok {
			return true
		}
	}
	return false
}

func (p Principal) IsAdmin() bool {
	return p.HasAnyRole(RoleAdmin)
}

// HasPermissions est vrai si toutes les permissions sont détenues.
// Le rôle admin passe toujours.
func (p Principal) HasPermissions(names ...string) bool {
	if p.IsAdmin() {
		return true
	}
	for _, n := range names {
		if _, ok := p.Grants.Permissions[n]; !ok {
			return false
		}
	}
	return true
}

// RoleNames retourne les rôles sous forme de liste triée
func (g Grants) RoleNames() []string {
	return sortedKeys(g.Roles)
}

func (g Grants) PermissionNames() []string {
	return sortedKeys(g.Permissions)
}

func sortedKeys(set map[string]struct{}) []string {
	return slices.Sorted(maps.Keys(set))
}
