package user

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront_back_end/internal/handlers"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/models"
)

// Identity est le service de comptes utilisé par AuthHandler
type Identity interface {
	Register(ctx context.Context, in models.RegisterInput) (*models.UserSummary, error)
	Login(ctx context.Context, email, password string) (*models.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

type AuthHandler struct {
	identity Identity
	log      *zap.Logger
}

func NewAuthHandler(identity Identity, log *zap.Logger) *AuthHandler {
	return &AuthHandler{identity: identity, log: log}
}

// Register : POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var in models.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		handlers.BadJSON(c, err)
		return
	}

	user, err := h.identity.Register(c.Request.Context(), in)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// Login : POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var in struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		handlers.BadJSON(c, err)
		return
	}

	res, err := h.identity.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Logout : POST /auth/logout, révoque le jeton courant
func (h *AuthHandler) Logout(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or malformed Authorization header"})
		return
	}
	if err := h.identity.Logout(c.Request.Context(), token); err != nil {
		handlers.RespondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
