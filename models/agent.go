package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Agent is a commissioned salesperson with dashboard access.
type Agent struct {
	ID             primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	FullName       string             `json:"fullName" bson:"fullName"`
	Email          string             `json:"email" bson:"email"`
	PhoneNumber    string             `json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`
	Password       string             `json:"password,omitempty" bson:"password"`
	Role           string             `json:"role" bson:"role"` // "agent" or "admin"
	Region         string             `json:"region,omitempty" bson:"region,omitempty"`
	LastActivityAt *time.Time         `json:"lastActivityAt,omitempty" bson:"lastActivityAt,omitempty"`
	CreatedAt      time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// AgentMonthRecord is one agent's performance document for one calendar
// month, written by the ingestion pipeline. The rollover engine reads it and
// writes exactly one field back: RolloverData (plus the sync timestamp).
//
// AgentKey is the composite "<agentId>_<YYYYMM>" identifier. Legacy records
// ingested before the composite key existed only carry AgentName.
//
// CommissionData is deliberately untyped: depending on which ingestion path
// wrote the record it is either a native array of pairs, a JSON string, a
// double-encoded JSON string, or an escaped-quote string. The rollover
// normalizer is the only code allowed to interpret it.
type AgentMonthRecord struct {
	ID               primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	AgentKey         string             `json:"agentKey,omitempty" bson:"agentKey,omitempty"`
	AgentName        string             `json:"agentName" bson:"agentName"`
	Month            string             `json:"month" bson:"month"` // YYYY-MM
	MonthLabel       string             `json:"monthLabel,omitempty" bson:"monthLabel,omitempty"`
	CommissionData   interface{}        `json:"commissionData,omitempty" bson:"commissionData,omitempty"`
	EarnedDetails    []EarnedDetail     `json:"earnedDetails,omitempty" bson:"earnedDetails,omitempty"`
	RolloverData     string             `json:"rolloverData,omitempty" bson:"rolloverData,omitempty"`
	LastRolloverSync *time.Time         `json:"lastRolloverSync,omitempty" bson:"lastRolloverSync,omitempty"`
	CreatedAt        time.Time          `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt        time.Time          `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// LoginRequest is the credential payload for agent/admin login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Response model
type Response struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AgentDashboardSummary is one agent's aggregated row on the month dashboard.
type AgentDashboardSummary struct {
	AgentKey      string         `json:"agentKey"`
	AgentName     string         `json:"agentName"`
	NativeItems   int            `json:"nativeItems"`
	NativeTotal   float64        `json:"nativeTotal"`
	RolloverItems int            `json:"rolloverItems"`
	RolloverTotal float64        `json:"rolloverTotal"`
	Rollovers     []RolloverItem `json:"rollovers,omitempty"`
}

// DashboardResponse is the payload for a month's dashboard read.
type DashboardResponse struct {
	Month    string                  `json:"month"`
	Agents   []AgentDashboardSummary `json:"agents"`
	Rollover interface{}             `json:"rollover,omitempty"`
}

// AuditLog records an administrative action against the rollover engine.
type AuditLog struct {
	ID        string    `json:"id" bson:"_id"`
	ActorID   string    `json:"actorId" bson:"actorId"`
	Action    string    `json:"action" bson:"action"`
	Target    string    `json:"target" bson:"target"`
	Detail    string    `json:"detail,omitempty" bson:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
