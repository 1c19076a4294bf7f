package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvagent/internal/api/middleware"
	"cvagent/internal/auth"
)

// RegisterRoutes mounts the page and API routes on the router.
func RegisterRoutes(
	router *gin.Engine,
	db *gorm.DB,
	docHandler *DocumentHandler,
	authService *auth.AuthService,
	redisClient redis.UniversalClient,
	logger *slog.Logger,
	allowedOrigins []string,
) {
	accountHandler := NewAccountHandler(db, authService, redisClient, logger)
	dashboardHandler := NewDashboardHandler(db)
	wsHandler := NewWsHandler(redisClient, authService, logger, allowedOrigins)

	authRequired := middleware.AuthMiddleware(authService)
	authOptional := middleware.OptionalAuthMiddleware(authService)

	router.GET("/ws", wsHandler.HandleConnection)

	router.GET("/signup/", accountHandler.SignupForm)
	router.POST("/signup/", accountHandler.Signup)
	router.GET("/login/", accountHandler.LoginForm)
	router.POST("/login/", accountHandler.Login)
	router.GET("/logout/", accountHandler.Logout)

	agent := router.Group("/agent")
	{
		agent.GET("/generate/", authOptional, docHandler.GenerateForm)
		agent.POST("/generate/", authOptional, docHandler.Generate)
		agent.POST("/test-post/", docHandler.TestPost)
	}

	router.GET("/dashboard/", authRequired, dashboardHandler.Dashboard)

	documents := router.Group("/document")
	documents.Use(authRequired)
	{
		documents.GET("/:id/", docHandler.Detail)
		documents.GET("/:id/download/", docHandler.Download)
	}

	api := router.Group("/api/document")
	api.Use(authRequired)
	{
		api.POST("/:id/upload-image/", docHandler.UploadImage)
		api.POST("/:id/status/", docHandler.UpdateStatus)
		api.DELETE("/:id/delete/", docHandler.Delete)
	}
}
