package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront_back_end/internal/config"
	"storefront_back_end/internal/handlers"
	"storefront_back_end/internal/handlers/admin"
	"storefront_back_end/internal/handlers/payement"
	"storefront_back_end/internal/handlers/product"
	"storefront_back_end/internal/handlers/user"
	"storefront_back_end/internal/metrics"
	"storefront_back_end/internal/middleware"
	"storefront_back_end/internal/models"
	"storefront_back_end/internal/utils"
)

// Deps regroupe tout ce dont le routeur a besoin
type Deps struct {
	Config  *config.Config
	Log     *zap.Logger
	Metrics *metrics.Metrics

	Tokens      middleware.TokenVerifier
	Grants      middleware.GrantResolver
	RateLimiter *middleware.RateLimiter
	Audit       middleware.Auditor

	Identity user.Identity
	Orders   user.Orders
	Events   user.StatusSubscriber
	Catalog  product.Catalog
	Payments payement.Payments
	Roles    admin.Roles

	Health map[string]handlers.Pinger
}

// New construit le moteur gin et enregistre toutes les routes
func New(d Deps) *gin.Engine {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.Metrics(d.Metrics))
	r.Use(cors.New(corsConfig(d.Config.App.CORSOrigins)))

	r.GET("/healthz", handlers.Health(d.Health))
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	Register(r.Group("/api"), d)
	return r
}

// Register monte l'API sous rg
func Register(rg *gin.RouterGroup, d Deps) {
	authRequired := middleware.AuthRequired(d.Tokens, d.Grants, d.Log)

	// le websocket vit plus longtemps que REQUEST_TIMEOUT
	streams := rg.Group("", d.RateLimiter.API())
	api := rg.Group("", d.RateLimiter.API(), middleware.Timeout(d.Config.App.RequestTimeout))

	// =============================================
	// AUTH
	// =============================================
	authH := user.NewAuthHandler(d.Identity, d.Log)
	auth := api.Group("/auth")
	{
		auth.POST("/register", d.RateLimiter.Register(), authH.Register)
		auth.POST("/login", d.RateLimiter.Login(), authH.Login)
		auth.POST("/logout", authRequired, authH.Logout)
	}

	// =============================================
	// PRODUITS
	// =============================================
	productH := product.NewProductHandler(d.Catalog, d.Log)
	products := api.Group("/products")
	{
		products.GET("", productH.GetAllProducts)
		products.GET("/search", productH.SearchProducts)
		products.GET("/:id", productH.GetProductByID)

		products.POST("", authRequired,
			middleware.AuditFailures(d.Audit, utils.ACTION_PRODUCT_CREATE, utils.RESOURCE_PRODUCT),
			middleware.RequirePermission(models.PermCreateProduct),
			productH.CreateProduct)
		products.PUT("/:id", authRequired,
			middleware.AuditFailures(d.Audit, utils.ACTION_PRODUCT_UPDATE, utils.RESOURCE_PRODUCT),
			middleware.RequirePermission(models.PermUpdateProduct),
			productH.UpdateProduct)
		products.DELETE("/:id", authRequired,
			middleware.AuditFailures(d.Audit, utils.ACTION_PRODUCT_DELETE, utils.RESOURCE_PRODUCT),
			middleware.RequirePermission(models.PermDeleteProduct),
			productH.DeleteProduct)
	}

	// =============================================
	// COMMANDES
	// =============================================
	orderH := user.NewOrderHandler(d.Orders, d.Events, d.Log)
	orders := api.Group("/orders", authRequired)
	{
		orders.POST("", orderH.CreateOrder)
		orders.GET("", orderH.GetMyOrders)
		orders.GET("/:id", orderH.GetOrderByID)
	}
	streams.GET("/orders/:id/events", authRequired, orderH.OrderEvents)

	// =============================================
	// STRIPE
	// =============================================
	paymentH := payement.NewPaymentHandler(d.Payments, d.Log)
	stripeGroup := api.Group("/stripe")
	{
		stripeGroup.POST("/payment-intent", authRequired,
			middleware.AuditFailures(d.Audit, utils.ACTION_ORDER_PAYMENT_START, utils.RESOURCE_ORDER),
			paymentH.CreatePaymentIntent)
		stripeGroup.POST("/webhook", paymentH.StripeWebhook)
		stripeGroup.GET("/keys", paymentH.GetKeys)
	}

	// =============================================
	// ADMIN
	// =============================================
	roleH := admin.NewRoleHandler(d.Roles, d.Log)
	adminGroup := api.Group("/admin", authRequired, middleware.RequireAdmin())
	{
		adminGroup.GET("/users/:id/grants", roleH.GetUserGrants)
		adminGroup.POST("/users/:id/roles",
			middleware.AuditFailures(d.Audit, utils.ACTION_USER_ROLE_ASSIGN, utils.RESOURCE_USER),
			roleH.AssignRole)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
