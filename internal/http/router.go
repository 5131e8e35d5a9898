package httpserver

import (
	"cucumber_hub/internal/http/handlers"
	"cucumber_hub/internal/http/middleware"
	"cucumber_hub/internal/service"
	"cucumber_hub/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Handler  *handlers.Handler
	WS       *ws.WSHandler
	Verifier service.Verifier
	Limiter  *middleware.RateLimiter
	Metrics  prometheus.Gatherer
}

// RegisterRoutes маршруты API, websocket и служебные
func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/healthz", d.Handler.Health)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{})))
	}

	r.GET("/ws/rooms/:room", d.WS.HandleWS())

	api := r.Group("/api", middleware.Auth(d.Verifier))
	rooms := api.Group("/rooms/:room")
	{
		rooms.POST("/start", d.Handler.StartGame)
		rooms.POST("/moves", d.Limiter.Middleware(), d.Handler.ProposeMove)
		rooms.GET("/moves", d.Handler.Moves)
		rooms.GET("/state", d.Handler.State)
		rooms.POST("/close", d.Handler.CloseRoom)
	}
}

// CORS для фронта на другом домене. allowedOrigin пустой - разрешаем любой Origin.
func CORS(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (allowedOrigin == "" || origin == allowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
