package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"project_portal/internal/config"
	"project_portal/internal/domain"
	"project_portal/internal/middleware"
	"project_portal/pkg/logger"
)

type RouterDeps struct {
	Auth      *middleware.AuthMiddleware
	RateLimit *middleware.RateLimitMiddleware
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

func NewRouter(h *Handlers, deps RouterDeps, cfg *config.Config, log logger.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(cfg.CORS))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))

	router.GET("/health", h.Health.Check)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}
	router.GET("/ws", h.WebSocket.Serve)

	anonymous := domain.RateLimitPolicy{Scope: domain.RateLimitScopeIP, Requests: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window}
	authenticated := domain.RateLimitPolicy{Scope: domain.RateLimitScopeAuth, Requests: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window}

	v1 := router.Group("/api/v1")
	{
		public := v1.Group("/auth")
		{
			public.POST("/register", deps.RateLimit.Limit(anonymous), h.Auth.Register)
			public.POST("/login", deps.RateLimit.Limit(anonymous), h.Auth.Login)
		}

		protected := v1.Group("")
		protected.Use(deps.Auth.RequireAuth(), deps.RateLimit.Limit(authenticated))
		{
			protected.GET("/auth/me", h.User.GetMe)
			protected.GET("/auth/users", h.User.List)

			projects := protected.Group("/projects")
			{
				projects.POST("", h.Project.Create)
				projects.GET("", h.Project.List)
				projects.GET("/:id", h.Project.Get)
				projects.PUT("/:id", h.Project.Update)
				projects.DELETE("/:id", h.Project.Delete)
				projects.GET("/:id/tasks", h.Project.Tasks)
				projects.GET("/:id/online", h.Project.Online)
				projects.GET("/:id/activity", h.Project.Activity)
			}

			tasks := protected.Group("/tasks")
			{
				tasks.POST("", h.Task.Create)
				tasks.GET("", h.Task.List)
				tasks.GET("/:id", h.Task.Get)
				tasks.PUT("/:id", h.Task.Update)
				tasks.DELETE("/:id", h.Task.Delete)
			}

			messages := protected.Group("/messages")
			{
				messages.GET("/:projectId", h.Chat.History)
				messages.POST("", h.Chat.Send)
			}

			protected.GET("/dashboard", h.Dashboard.Summary)
		}
	}

	return router
}
