package admin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront_back_end/internal/handlers"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/services"
)

// Roles est le service d'administration des rôles
type Roles interface {
	Grants(ctx context.Context, userID string) (*services.UserGrants, error)
	AssignRole(ctx context.Context, actor models.Principal, userID, roleName string) (*services.UserGrants, error)
}

type RoleHandler struct {
	roles Roles
	log   *zap.Logger
}

func NewRoleHandler(roles Roles, log *zap.Logger) *RoleHandler {
	return &RoleHandler{roles: roles, log: log}
}

// GetUserGrants : GET /admin/users/:id/grants
func (h *RoleHandler) GetUserGrants(c *gin.Context) {
	grants, err := h.roles.Grants(c.Request.Context(), c.Param("id"))
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, grants)
}

// AssignRole : POST /admin/users/:id/roles {role}
func (h *RoleHandler) AssignRole(c *gin.Context) {
	actor, ok := handlers.MustPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.BadJSON(c, err)
		return
	}

	grants, err := h.roles.AssignRole(c.Request.Context(), actor, c.Param("id"), req.Role)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, grants)
}
