package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/repository"
	"storefront_back_end/internal/utils"
)

const minPasswordLength = 8

// TokenRevoker garde la blacklist des jetons révoqués
type TokenRevoker interface {
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsTokenRevoked(ctx context.Context, tokenID string) (bool, error)
}

// IdentityService gère comptes, jetons JWT et révocation
type IdentityService struct {
	db     repository.TxBeginner
	users  *repository.UserRepository
	grants *repository.GrantRepository
	tokens TokenRevoker
	secret []byte
	ttl    time.Duration
	audit  Auditor
	log    *zap.Logger
	now    func() time.Time
}

func NewIdentityService(
	db repository.TxBeginner,
	users *repository.UserRepository,
	grants *repository.GrantRepository,
	tokens TokenRevoker,
	secret string,
	ttl time.Duration,
	audit Auditor,
	log *zap.Logger,
) *IdentityService {
	if audit == nil {
		audit = nopAuditor{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IdentityService{
		db:     db,
		users:  users,
		grants: grants,
		tokens: tokens,
		secret: []byte(secret),
		ttl:    ttl,
		audit:  audit,
		log:    log,
		now:    time.Now,
	}
}

// Register crée le compte et lui attribue le rôle seller ou customer, dans une transaction
func (s *IdentityService) Register(ctx context.Context, in models.RegisterInput) (*models.UserSummary, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	role := strings.ToLower(strings.TrimSpace(in.Role))
	if role == "" {
		role = models.RoleCustomer
	}

	fields := make(map[string]string)
	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		fields["email"] = "must be a valid email address"
	}
	if len(in.Password) < minPasswordLength {
		fields["password"] = "must be at least 8 characters"
	}
	if in.Name == "" {
		fields["name"] = "is required"
	}
	// admin ne s'obtient que par le seed
	if role != models.RoleSeller && role != models.RoleCustomer {
		fields["role"] = "must be seller or customer"
	}
	if len(fields) > 0 {
		return nil, apperr.InvalidFields(fields)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to register user")
	}

	var created *models.User
	err = repository.RunInTx(ctx, s.db, func(tx pgx.Tx) error {
		u, err := s.users.WithTx(tx).Create(ctx, models.User{
			Email:        in.Email,
			Name:         in.Name,
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}
		if err := s.grants.WithTx(tx).AssignRoleByName(ctx, u.ID, role); err != nil {
			return err
		}
		created = u
		return nil
	})
	if errors.Is(err, repository.ErrConflict) {
		return nil, apperr.Validation("Email already registered")
	}
	if err != nil {
		return nil, apperr.Internal(err, "Failed to register user")
	}

	summary := &models.UserSummary{ID: created.ID, Email: created.Email, Name: created.Name, Roles: []string{role}}
	s.audit.Record(ctx, utils.NewAuditEntry(models.Principal{ID: created.ID, Email: created.Email},
		utils.ACTION_USER_REGISTER, utils.RESOURCE_USER, created.ID, summary))
	s.log.Info("👤 Utilisateur inscrit", zap.String("user_id", created.ID), zap.String("role", role))
	return summary, nil
}

// Login vérifie les identifiants et émet un jeton. Même erreur pour email inconnu et mauvais mot de passe.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*models.LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthenticated("Invalid credentials")
	}
	if err != nil {
		return nil, apperr.Internal(err, "Failed to login")
	}

	ok, err := utils.VerifyPassword(password, u.PasswordHash)
	if err != nil && !errors.Is(err, utils.ErrInvalidHash) {
		return nil, apperr.Internal(err, "Failed to login")
	}
	if !ok {
		return nil, apperr.Unauthenticated("Invalid credentials")
	}

	token, _, err := utils.GenerateJWT(s.secret, u.ID, u.Email, s.ttl, s.now())
	if err != nil {
		return nil, apperr.Internal(err, "Failed to login")
	}

	roles, err := s.grants.RoleNamesByUser(ctx, u.ID)
	if err != nil {
		return nil, apperr.Internal(err, "Failed to login")
	}
	if len(roles) == 0 {
		roles = []string{models.RoleCustomer}
	}

	return &models.LoginResult{
		User:  models.UserSummary{ID: u.ID, Email: u.Email, Name: u.Name, Roles: roles},
		Token: token,
	}, nil
}

// Verify valide le jeton porteur et retourne le principal, sans ses droits
func (s *IdentityService) Verify(ctx context.Context, token string) (models.Principal, error) {
	claims, err := utils.ParseJWT(s.secret, token)
	if err != nil {
		return models.Principal{}, apperr.Unauthenticated("Invalid or expired token")
	}

	revoked, err := s.tokens.IsTokenRevoked(ctx, claims.ID)
	if err != nil {
		// Redis indisponible : on refuse
		s.log.Error("❌ Vérification blacklist impossible", zap.Error(err))
		return models.Principal{}, &apperr.Error{Kind: apperr.KindUnauthenticated, Message: "Unable to verify token", Err: err}
	}
	if revoked {
		return models.Principal{}, apperr.Unauthenticated("Token has been revoked")
	}

	return models.Principal{ID: claims.Subject, Email: claims.Email, TokenID: claims.ID}, nil
}

// Logout révoque le jeton jusqu'à son expiration
func (s *IdentityService) Logout(ctx context.Context, token string) error {
	claims, err := utils.ParseJWT(s.secret, token)
	if err != nil {
		return apperr.Unauthenticated("Invalid or expired token")
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if err := s.tokens.RevokeToken(ctx, claims.ID, ttl); err != nil {
		return apperr.Internal(err, "Failed to logout")
	}
	s.log.Info("👋 Déconnexion", zap.String("user_id", claims.Subject))
	return nil
}
