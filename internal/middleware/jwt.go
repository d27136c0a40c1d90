package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/logger"
	"storefront_back_end/internal/models"
)

const principalKey = "principal"

// TokenVerifier valide un jeton porteur
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (models.Principal, error)
}

// GrantResolver charge rôles et permissions d'un utilisateur
type GrantResolver interface {
	Resolve(ctx context.Context, userID string) (models.Grants, error)
}

// AuthRequired vérifie le jeton puis résout les droits de l'utilisateur.
// Tout échec, y compris la lecture des droits, donne un 401.
func AuthRequired(tokens TokenVerifier, grants GrantResolver, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "Missing or malformed Authorization header")
			return
		}

		ctx := c.Request.Context()
		principal, err := tokens.Verify(ctx, token)
		if err != nil {
			msg := "Invalid token"
			var appErr *apperr.Error
			if errors.As(err, &appErr) && appErr.Kind == apperr.KindUnauthenticated {
				msg = appErr.Message
			}
			logger.FromContext(ctx, log).Debug("❌ Jeton refusé", zap.Error(err))
			abortJSON(c, http.StatusUnauthorized, msg)
			return
		}

		principal.Grants, err = grants.Resolve(ctx, principal.ID)
		if err != nil {
			logger.FromContext(ctx, log).Error("❌ Résolution des permissions impossible",
				zap.String("user_id", principal.ID), zap.Error(err))
			abortJSON(c, http.StatusUnauthorized, "Unable to resolve permissions")
			return
		}

		c.Set(principalKey, principal)
		c.Set("user_id", principal.ID)
		reqLog := logger.FromContext(ctx, log).With(zap.String("user_id", principal.ID))
		c.Request = c.Request.WithContext(logger.WithContext(ctx, reqLog))
		c.Next()
	}
}

// BearerToken extrait le jeton de l'en-tête Authorization
func BearerToken(c *gin.Context) (string, bool) {
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// CurrentPrincipal retourne l'utilisateur authentifié de la requête
func CurrentPrincipal(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

func abortJSON(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
