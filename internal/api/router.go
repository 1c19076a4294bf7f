package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cvagent/internal/config"
)

// NewRouter builds the gin engine with the HTML template set and the health endpoint.
func NewRouter(cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	if cfg.API.TemplateDir != "" {
		router.LoadHTMLGlob(cfg.API.TemplateDir + "/*.html")
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}
