package services

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/repository"
	"storefront_back_end/internal/utils"
)

// RoleAssigner attribue un rôle existant à un utilisateur
type RoleAssigner interface {
	AssignRoleByName(ctx context.Context, userID, roleName string) error
}

// UserGrants est la vue admin des droits d'un utilisateur
type UserGrants struct {
	UserID      string   `json:"userId"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// RoleService : administration des rôles, réservée aux admins
type RoleService struct {
	users    UserDirectory
	assigner RoleAssigner
	resolver *PermissionResolver
	audit    Auditor
	log      *zap.Logger
}

func NewRoleService(users UserDirectory, assigner RoleAssigner, resolver *PermissionResolver, audit Auditor, log *zap.Logger) *RoleService {
	if audit == nil {
		audit = nopAuditor{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RoleService{users: users, assigner: assigner, resolver: resolver, audit: audit, log: log}
}

// Grants retourne les rôles et permissions effectifs d'un utilisateur
func (s *RoleService) Grants(ctx context.Context, userID string) (*UserGrants, error) {
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	g, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err, "Unable to resolve permissions")
	}
	return &UserGrants{UserID: userID, Roles: g.RoleNames(), Permissions: g.PermissionNames()}, nil
}

// AssignRole attribue roleName à userID ; sans effet si déjà attribué
func (s *RoleService) AssignRole(ctx context.Context, actor models.Principal, userID, roleName string) (*UserGrants, error) {
	roleName = strings.ToLower(strings.TrimSpace(roleName))
	if roleName == "" {
		return nil, apperr.InvalidFields(map[string]string{"role": "is required"})
	}
	if err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}

	if err := s.assigner.AssignRoleByName(ctx, userID, roleName); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Validation("Unknown role: %s", roleName)
		}
		return nil, apperr.Internal(err, "Failed to assign role")
	}

	s.audit.Record(ctx, utils.NewAuditEntry(actor, utils.ACTION_USER_ROLE_ASSIGN, utils.RESOURCE_USER, userID,
		map[string]string{"role": roleName}))
	s.log.Info("🔑 Rôle attribué", zap.String("user_id", userID), zap.String("role", roleName), zap.String("by", actor.ID))

	return s.Grants(ctx, userID)
}

func (s *RoleService) ensureUser(ctx context.Context, userID string) error {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal(err, "Failed to load user")
	}
	return nil
}
