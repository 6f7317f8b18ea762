package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/briefkasten-app/briefkasten/api/handlers"
	"github.com/briefkasten-app/briefkasten/api/middleware"
	"github.com/briefkasten-app/briefkasten/interfaces"
	"github.com/briefkasten-app/briefkasten/internal/tracing"
	"github.com/briefkasten-app/briefkasten/services"
)

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(ctx context.Context, r *gin.Engine, s *services.Services, repos *interfaces.Repositories, apikey string) {
	if s == nil {
		panic("Services cannot be nil")
	}
	if repos == nil {
		panic("Repositories cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	r.GET("/health", handlers.HealthCheck)

	apiKeyMiddleware := middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  "X-BRIEFKASTEN-API-KEY",
		ValidAPIKey: apikey,
	})

	api := r.Group("/v1")
	api.Use(apiKeyMiddleware)
	{
		accounts := api.Group("/accounts")
		{
			accounts.GET("", handlers.ListAccounts(repos))
			accounts.POST("", handlers.CreateAccount(repos))
			accounts.GET("/:id", handlers.GetAccount(repos))
			accounts.DELETE("/:id", handlers.DeleteAccount(repos))
			accounts.POST("/:id/test", handlers.TestAccountConnection(s.SyncService))
			accounts.POST("/:id/sync", handlers.TriggerSync(s.SyncService))
			accounts.GET("/:id/status", handlers.SyncStatus(s.SyncService))
		}

		api.POST("/sync", handlers.TriggerSyncAll(s.SyncService))

		emails := api.Group("/emails")
		{
			emails.GET("", handlers.ListEmails(repos))
			emails.POST("/flag", handlers.SetEmailFlag(s.SyncService))
			emails.POST("/delete", handlers.DeleteEmail(s.SyncService))
		}

		categories := api.Group("/categories")
		{
			categories.GET("", handlers.ListCategories(repos))
			categories.POST("", handlers.CreateCategory(repos))
			categories.PUT("/:name", handlers.RenameCategory(repos))
			categories.DELETE("/:name", handlers.DeleteCategory(repos))
		}
	}
}
