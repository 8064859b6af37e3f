package handler

import (
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/middleware"
	"github.com/labstack/echo/v4"
)

// Handlers bundles every HTTP handler mounted by RegisterRoutes
type Handlers struct {
	Auth        *AuthHandler
	User        *UserHandler
	Account     *AccountHandler
	Category    *CategoryHandler
	Transaction *TransactionHandler
	Transfer    *TransferHandler
	WebSocket   *WebSocketHandler
	Health      *HealthHandler
}

// RegisterRoutes sets up all API routes
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, loginLimiter *middleware.RateLimiter, h Handlers) {
	e.GET("/health", h.Health.Health)

	// Token is passed as a query parameter
	e.GET("/ws", h.WebSocket.HandleWS)

	// API version 1
	api := e.Group("/api/v1")

	// Public auth routes (rate limited)
	public := api.Group("", middleware.RateLimitMiddleware(loginLimiter))
	public.POST("/register", h.Auth.Register)
	public.POST("/token", h.Auth.Token)

	// User routes (protected)
	users := api.Group("/users")
	users.Use(authMiddleware.Authenticate())
	users.GET("/me", h.User.GetMe)
	users.PUT("/me", h.User.UpdateMe)

	// Account routes (protected)
	accounts := api.Group("/accounts")
	accounts.Use(authMiddleware.Authenticate())
	accounts.POST("", h.Account.CreateAccount)
	accounts.GET("", h.Account.GetAccounts)
	accounts.GET("/:id", h.Account.GetAccount)
	accounts.PUT("/:id", h.Account.UpdateAccount)
	accounts.DELETE("/:id", h.Account.DeleteAccount)

	// Category routes (protected)
	categories := api.Group("/categories")
	categories.Use(authMiddleware.Authenticate())
	categories.POST("", h.Category.CreateCategory)
	categories.GET("", h.Category.GetCategories)
	categories.GET("/:id", h.Category.GetCategory)
	categories.PUT("/:id", h.Category.UpdateCategory)
	categories.DELETE("/:id", h.Category.DeleteCategory)

	// Transaction routes (protected)
	transactions := api.Group("/transactions")
	transactions.Use(authMiddleware.Authenticate())
	transactions.POST("", h.Transaction.CreateTransaction)
	transactions.GET("", h.Transaction.GetTransactions)
	transactions.GET("/export", h.Transfer.Export)
	transactions.POST("/export/link", h.Transfer.ExportLink)
	transactions.POST("/import", h.Transfer.Import)
	transactions.GET("/:id", h.Transaction.GetTransaction)
	transactions.PUT("/:id", h.Transaction.ReplaceTransaction)
	transactions.PATCH("/:id", h.Transaction.PatchTransaction)
	transactions.DELETE("/:id", h.Transaction.DeleteTransaction)
}
