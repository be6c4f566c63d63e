package routes

import (
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/propfolio/commission_backend/controllers"
	"github.com/propfolio/commission_backend/middleware"
	"github.com/propfolio/commission_backend/rollover"
	"github.com/propfolio/commission_backend/websocket"
)

// RegisterDashboardRoutes sets up the dashboard and rollover admin routes
func RegisterDashboardRoutes(e *echo.Echo, db *mongo.Database, engine *rollover.Engine, redisClient *redis.Client, hub *websocket.Hub) {
	dashboardController := controllers.NewDashboardController(db, engine, redisClient, hub)
	rolloverController := controllers.NewRolloverController(db, engine, hub)

	// Dashboard routes (any authenticated agent)
	dashboard := e.Group("/api/dashboard")
	dashboard.Use(middleware.JWTMiddleware())
	dashboard.Use(middleware.RequireUserType("agent", "admin"))
	dashboard.Use(middleware.ActivityTracker(db))
	dashboard.GET("/:month", dashboardController.GetDashboard)

	// Live dashboard refresh notifications
	dashboard.GET("/ws", func(c echo.Context) error {
		return websocket.HandleWebSocket(c, hub)
	})

	// Rollover administration routes
	admin := e.Group("/api/admin/rollover")
	admin.Use(middleware.JWTMiddleware())
	admin.Use(middleware.RequireUserType("admin"))
	admin.GET("/:month/status", rolloverController.GetStatus)
	admin.POST("/:month/recalculate", rolloverController.Recalculate)
}
