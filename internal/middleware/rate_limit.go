package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront_back_end/internal/cache"
	"storefront_back_end/internal/config"
	"storefront_back_end/internal/logger"
)

// RateLimiter applique les limites par email et par IP stockées dans Redis.
// Redis indisponible : la requête passe, l'incident est logué.
type RateLimiter struct {
	store *cache.Store
	cfg   config.RateLimitSettings
	log   *zap.Logger
}

func NewRateLimiter(store *cache.Store, cfg config.RateLimitSettings, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{store: store, cfg: cfg, log: log}
}

// Login limite les tentatives de connexion échouées par email
func (rl *RateLimiter) Login() gin.HandlerFunc {
	return func(c *gin.Context) {
		// lire le body sans le consommer
		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Next()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

		var input struct {
			Email string `json:"email"`
		}
		if err := json.Unmarshal(bodyBytes, &input); err != nil || input.Email == "" {
			c.Next()
			return
		}

		email := strings.ToLower(strings.TrimSpace(input.Email))
		key := "login_attempts:" + email
		cooldownKey := "login_cooldown:" + email

		if rl.blocked(c, cooldownKey, "Too many failed attempts. Try again in %d minutes") {
			return
		}

		attempts, err := rl.store.Attempts(c.Request.Context(), key)
		if err != nil {
			rl.warn(c, "login", err)
		}
		if attempts >= rl.cfg.LoginMaxAttempts {
			rl.startCooldown(c, cooldownKey, key, rl.cfg.LoginCooldown)
			tooMany(c, rl.cfg.LoginCooldown,
				fmt.Sprintf("Too many failed attempts. Account locked for %d minutes", int(rl.cfg.LoginCooldown.Minutes())))
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusUnauthorized:
			n, err := rl.store.Hit(c.Request.Context(), key, rl.cfg.LoginCooldown)
			if err != nil {
				rl.warn(c, "login", err)
				return
			}
			logger.FromContext(c.Request.Context(), rl.log).Warn("🔒 Échec de connexion",
				zap.String("email", logger.MaskEmail(email)), zap.Int("attempts", n))
		case http.StatusOK:
			if err := rl.store.Reset(c.Request.Context(), key, cooldownKey); err != nil {
				rl.warn(c, "login", err)
			}
		}
	}
}

// Register limite les inscriptions réussies par IP
func (rl *RateLimiter) Register() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		key := "register_attempts:" + ip
		cooldownKey := "register_cooldown:" + ip

		if rl.blocked(c, cooldownKey, "Too many registrations. Try again in %d minutes") {
			return
		}

		attempts, err := rl.store.Attempts(c.Request.Context(), key)
		if err != nil {
			rl.warn(c, "register", err)
		}
		if attempts >= rl.cfg.RegisterMaxAttempts {
			rl.startCooldown(c, cooldownKey, key, rl.cfg.RegisterCooldown)
			tooMany(c, rl.cfg.RegisterCooldown,
				fmt.Sprintf("Too many registrations. Try again in %d minutes", int(rl.cfg.RegisterCooldown.Minutes())))
			return
		}

		c.Next()

		if c.Writer.Status() == http.StatusCreated {
			if _, err := rl.store.Hit(c.Request.Context(), key, rl.cfg.RegisterCooldown); err != nil {
				rl.warn(c, "register", err)
			}
		}
	}
}

// API limite le nombre de requêtes par IP sur une fenêtre fixe
func (rl *RateLimiter) API() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "api_requests:" + c.ClientIP()

		n, err := rl.store.Hit(c.Request.Context(), key, rl.cfg.APIWindow)
		if err != nil {
			rl.warn(c, "api", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.cfg.APIMaxRequests))
		if n > rl.cfg.APIMaxRequests {
			c.Header("X-RateLimit-Remaining", "0")
			tooMany(c, rl.cfg.APIWindow, "Too many requests. Slow down")
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(rl.cfg.APIMaxRequests-n))
		c.Next()
	}
}

// blocked répond 429 si un cooldown est actif
func (rl *RateLimiter) blocked(c *gin.Context, cooldownKey, format string) bool {
	ttl, active, err := rl.store.Cooldown(c.Request.Context(), cooldownKey)
	if err != nil {
		rl.warn(c, cooldownKey, err)
		return false
	}
	if !active {
		return false
	}
	minutes := int(ttl.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	tooMany(c, ttl, fmt.Sprintf(format, minutes))
	return true
}

func (rl *RateLimiter) startCooldown(c *gin.Context, cooldownKey, counterKey string, d time.Duration) {
	if err := rl.store.StartCooldown(c.Request.Context(), cooldownKey, counterKey, d); err != nil {
		rl.warn(c, cooldownKey, err)
	}
}

func (rl *RateLimiter) warn(c *gin.Context, scope string, err error) {
	logger.FromContext(c.Request.Context(), rl.log).Warn("⚠️ Rate limit indisponible",
		zap.String("scope", scope), zap.Error(err))
}

func tooMany(c *gin.Context, retryAfter time.Duration, msg string) {
	secs := int(retryAfter.Seconds())
	c.Header("Retry-After", strconv.Itoa(secs))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       msg,
		"retry_after": secs,
	})
}
