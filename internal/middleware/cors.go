// internal/middleware/cors.go
package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/propaintco/proppaint-backend/internal/config"
)

// CORS allows the admin frontend plus localhost during development. The
// public approval page is served from the same frontend origin.
func CORS(cfg *config.Config) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowOrigins: []string{cfg.Frontend.BaseURL},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Disposition",
			"X-Total-Count", "X-Page", "X-Per-Page", "X-Total-Pages",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	if cfg.Environment != "production" {
		corsConfig.AllowOrigins = append(corsConfig.AllowOrigins,
			"http://localhost:3000", "http://localhost:5173")
	}

	return cors.New(corsConfig)
}
