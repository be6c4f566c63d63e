// utils/audit.go
package utils

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/propfolio/commission_backend/models"
)

// WriteAuditLog records an administrative action. Audit writes are
// best-effort: a failure is logged and never blocks the action itself.
func WriteAuditLog(db *mongo.Database, actorID, action, target, detail string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entry := models.AuditLog{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Action:    action,
		Target:    target,
		Detail:    detail,
		CreatedAt: time.Now(),
	}

	_, err := db.Collection("audit_logs").InsertOne(ctx, entry)
	if err != nil {
		log.Printf("Failed to write audit log for %s on %s: %v", action, target, err)
	}
}
