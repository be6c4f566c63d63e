package controllers

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/propfolio/commission_backend/models"
	"github.com/propfolio/commission_backend/rollover"
	"github.com/propfolio/commission_backend/utils"
	"github.com/propfolio/commission_backend/websocket"
)

// dashboardCacheTTL keeps repeat reads of the same month cheap without
// letting merged rollover items go stale for long.
const dashboardCacheTTL = 60 * time.Second

// DashboardController serves the monthly commission dashboard. Every read
// runs the rollover sync first so the aggregation below always sees
// reconciled records; a rollover failure degrades to a dashboard without
// rollover items rather than failing the request.
type DashboardController struct {
	DB     *mongo.Database
	Engine *rollover.Engine
	Redis  *redis.Client
	Hub    *websocket.Hub
}

// NewDashboardController creates a new dashboard controller
func NewDashboardController(db *mongo.Database, engine *rollover.Engine, redisClient *redis.Client, hub *websocket.Hub) *DashboardController {
	return &DashboardController{DB: db, Engine: engine, Redis: redisClient, Hub: hub}
}

// GetDashboard returns the reconciled dashboard for one month
func (dc *DashboardController) GetDashboard(c echo.Context) error {
	month := c.Param("month")
	if !rollover.IsValidMonth(month) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Month must be in YYYY-MM format",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	// Serve from cache when a recent read already reconciled this month
	if dc.Redis != nil {
		cached, err := dc.Redis.Get(ctx, dashboardCacheKey(month)).Result()
		if err == nil && cached != "" {
			return c.JSON(http.StatusOK, models.Response{
				Status:  http.StatusOK,
				Message: "Dashboard data retrieved",
				Data:    json.RawMessage(cached),
			})
		}
	}

	// Reconcile first; the dashboard must never fail because rollover did
	result, err := dc.Engine.Sync(ctx, month)
	if err != nil {
		log.Printf("Rollover sync failed for %s, serving dashboard without rollover: %v", month, err)
	} else if result.ItemsMerged > 0 && dc.Hub != nil {
		dc.Hub.NotifyRolloverSynced(month, result.ItemsMerged)
	}

	agents, err := dc.aggregateMonth(ctx, month)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to load dashboard data",
		})
	}

	payload := models.DashboardResponse{
		Month:    month,
		Agents:   agents,
		Rollover: result,
	}

	if dc.Redis != nil {
		if encoded, err := json.Marshal(payload); err == nil {
			if err := dc.Redis.Set(ctx, dashboardCacheKey(month), encoded, dashboardCacheTTL).Err(); err != nil {
				log.Printf("Failed to cache dashboard for %s: %v", month, err)
			}
		}
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Dashboard data retrieved",
		Data:    payload,
	})
}

func dashboardCacheKey(month string) string {
	return "dashboard:" + month
}

// aggregateMonth builds the per-agent summary rows for a month's records.
// Records with unreadable commission data still appear (with zero native
// items) so agents don't silently vanish from the dashboard.
func (dc *DashboardController) aggregateMonth(ctx context.Context, month string) ([]models.AgentDashboardSummary, error) {
	cursor, err := dc.DB.Collection(rollover.CollectionAgentMonthRecords).Find(ctx, bson.M{"month": month})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.AgentMonthRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	summaries := make([]models.AgentDashboardSummary, 0, len(records))
	for _, rec := range records {
		summary := models.AgentDashboardSummary{
			AgentKey:  rollover.ResolveAgentKey(rec),
			AgentName: rec.AgentName,
		}

		pairs, err := rollover.NormalizePairs(rec.CommissionData)
		if err != nil {
			log.Printf("Dashboard: unreadable commission data for %q in %s: %v", rec.AgentName, month, err)
		}
		for _, pair := range pairs {
			if pair.CommissionValue == nil {
				continue
			}
			amount, err := utils.ParseFloat(*pair.CommissionValue)
			if err != nil || math.IsNaN(amount) {
				continue
			}
			summary.NativeItems++
			summary.NativeTotal += amount
		}

		if rec.RolloverData != "" && rec.RolloverData != "[]" {
			items, err := rollover.DecodeItems(rec.RolloverData)
			if err != nil {
				log.Printf("Dashboard: unreadable rollover data for %q in %s: %v", rec.AgentName, month, err)
			}
			for _, item := range items {
				summary.RolloverItems++
				if item.CommissionValue != nil {
					if amount, err := utils.ParseFloat(*item.CommissionValue); err == nil && !math.IsNaN(amount) {
						summary.RolloverTotal += amount
					}
				}
			}
			summary.Rollovers = items
		}

		summaries = append(summaries, summary)
	}
	return summaries, nil
}
