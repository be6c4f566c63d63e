package controllers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/propfolio/commission_backend/middleware"
	"github.com/propfolio/commission_backend/models"
	"github.com/propfolio/commission_backend/rollover"
	"github.com/propfolio/commission_backend/utils"
	"github.com/propfolio/commission_backend/websocket"
)

// RolloverController exposes the rollover status ledger and the manual
// recalculation trigger for admins
type RolloverController struct {
	DB     *mongo.Database
	Engine *rollover.Engine
	Hub    *websocket.Hub
}

// NewRolloverController creates a new rollover controller
func NewRolloverController(db *mongo.Database, engine *rollover.Engine, hub *websocket.Hub) *RolloverController {
	return &RolloverController{DB: db, Engine: engine, Hub: hub}
}

// GetStatus returns the status ledger entry for a month
func (rc *RolloverController) GetStatus(c echo.Context) error {
	month := c.Param("month")
	if !rollover.IsValidMonth(month) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Month must be in YYYY-MM format",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	status, err := rc.Engine.Status(ctx, month)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to read rollover status",
		})
	}
	if status == nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Rollover has not run for this month",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Rollover status retrieved",
		Data:    status,
	})
}

// Recalculate clears a month's calculation cache and re-runs the full
// calculate-then-apply sync. Existing per-record rollover data is not
// cleared: the applicator only ever fills gaps, so recalculation cannot
// duplicate already-merged items.
func (rc *RolloverController) Recalculate(c echo.Context) error {
	month := c.Param("month")
	if !rollover.IsValidMonth(month) {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Month must be in YYYY-MM format",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 60*time.Second)
	defer cancel()

	if err := rc.Engine.Reset(ctx, month); err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to clear rollover cache",
		})
	}

	result, err := rc.Engine.Sync(ctx, month)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Rollover recalculation failed",
		})
	}

	actorID := middleware.GetUserIDFromToken(c)
	utils.WriteAuditLog(rc.DB, actorID, "rollover_recalculate", month,
		fmt.Sprintf("agentsUpdated=%d itemsMerged=%d reason=%s", result.AgentsUpdated, result.ItemsMerged, result.Reason))

	if result.ItemsMerged > 0 && rc.Hub != nil {
		rc.Hub.NotifyRolloverSynced(month, result.ItemsMerged)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Rollover recalculated",
		Data:    result,
	})
}
