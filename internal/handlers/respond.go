// Package handlers regroupe les helpers HTTP communs aux handlers gin.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront_back_end/internal/apperr"
	"storefront_back_end/internal/logger"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/models"
)

// RespondError traduit une erreur de service en réponse JSON.
// Les erreurs internes sont loguées avec leur cause ; le client ne voit que le message.
func RespondError(c *gin.Context, log *zap.Logger, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal(err, "Internal server error")
	}

	status := appErr.Kind.HTTPStatus()
	if appErr.Kind == apperr.KindInternal {
		logger.FromContext(c.Request.Context(), log).Error("❌ "+appErr.Message,
			zap.String("path", c.FullPath()), zap.Error(appErr.Err))
	}

	body := gin.H{"error": appErr.Message}
	if len(appErr.Fields) > 0 {
		body["details"] = appErr.Fields
	}
	c.AbortWithStatusJSON(status, body)
}

// ParseID lit un paramètre d'URL entier positif ; répond 400 sinon
func ParseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// MustPrincipal retourne l'utilisateur authentifié ; répond 401 si absent
func MustPrincipal(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
	}
	return p, ok
}

// BadJSON répond 400 pour un corps illisible
func BadJSON(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
}
