package rollover

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/propfolio/commission_backend/models"
)

// Collection names used by the rollover engine.
const (
	CollectionAgentMonthRecords = "agent_month_records"
	CollectionRolloverMappings  = "rollover_mappings"
	CollectionRolloverStatus    = "rollover_status"
)

// Store is the storage collaborator the engine runs against. The production
// implementation is Mongo; tests use an in-memory fake.
type Store interface {
	// AgentRecordsByMonth returns every agent record for the given month.
	AgentRecordsByMonth(ctx context.Context, month string) ([]models.AgentMonthRecord, error)
	// AgentRecordsMissingRollover returns the month's records whose rollover
	// field is absent, null, empty, or the empty-array literal.
	AgentRecordsMissingRollover(ctx context.Context, month string) ([]models.AgentMonthRecord, error)
	// WriteRolloverData fills one record's rollover field and stamps the sync time.
	WriteRolloverData(ctx context.Context, id primitive.ObjectID, serialized string) error
	// MappingsByMonth returns the persisted calculation cache for a target month.
	MappingsByMonth(ctx context.Context, month string) ([]models.RolloverMapping, error)
	// UpsertMapping writes one (month, agentKey) cache entry, last writer wins.
	UpsertMapping(ctx context.Context, mapping models.RolloverMapping) error
	// StatusByMonth returns the status ledger entry for a month, nil if none.
	StatusByMonth(ctx context.Context, month string) (*models.RolloverStatus, error)
	// UpsertStatus writes the status ledger entry for a month.
	UpsertStatus(ctx context.Context, status models.RolloverStatus) error
	// ClearMonth drops the month's mapping cache and status entry so a manual
	// recalculation starts fresh.
	ClearMonth(ctx context.Context, month string) error
}

// MongoStore implements Store on a Mongo database.
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore creates a Mongo-backed store for the rollover engine.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) AgentRecordsByMonth(ctx context.Context, month string) ([]models.AgentMonthRecord, error) {
	cursor, err := s.db.Collection(CollectionAgentMonthRecords).Find(ctx, bson.M{"month": month})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.AgentMonthRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *MongoStore) AgentRecordsMissingRollover(ctx context.Context, month string) ([]models.AgentMonthRecord, error) {
	filter := bson.M{
		"month": month,
		"$or": []bson.M{
			{"rolloverData": bson.M{"$exists": false}},
			{"rolloverData": nil},
			{"rolloverData": ""},
			{"rolloverData": "[]"},
		},
	}
	cursor, err := s.db.Collection(CollectionAgentMonthRecords).Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.AgentMonthRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *MongoStore) WriteRolloverData(ctx context.Context, id primitive.ObjectID, serialized string) error {
	_, err := s.db.Collection(CollectionAgentMonthRecords).UpdateOne(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"rolloverData":     serialized,
			"lastRolloverSync": time.Now(),
			"updatedAt":        time.Now(),
		}},
	)
	return err
}

func (s *MongoStore) MappingsByMonth(ctx context.Context, month string) ([]models.RolloverMapping, error) {
	cursor, err := s.db.Collection(CollectionRolloverMappings).Find(ctx, bson.M{"month": month})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var mappings []models.RolloverMapping
	if err := cursor.All(ctx, &mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}

func (s *MongoStore) UpsertMapping(ctx context.Context, mapping models.RolloverMapping) error {
	filter := bson.M{"month": mapping.Month, "agentKey": mapping.AgentKey}
	update := bson.M{"$set": bson.M{
		"month":        mapping.Month,
		"agentKey":     mapping.AgentKey,
		"items":        mapping.Items,
		"itemCount":    mapping.ItemCount,
		"calculatedAt": mapping.CalculatedAt,
	}}
	_, err := s.db.Collection(CollectionRolloverMappings).UpdateOne(
		ctx, filter, update, options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) StatusByMonth(ctx context.Context, month string) (*models.RolloverStatus, error) {
	var status models.RolloverStatus
	err := s.db.Collection(CollectionRolloverStatus).FindOne(ctx, bson.M{"month": month}).Decode(&status)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &status, nil
}

func (s *MongoStore) UpsertStatus(ctx context.Context, status models.RolloverStatus) error {
	filter := bson.M{"month": status.Month}
	update := bson.M{"$set": bson.M{
		"month":       status.Month,
		"applied":     status.Applied,
		"appliedAt":   status.AppliedAt,
		"itemsMerged": status.ItemsMerged,
		"reason":      status.Reason,
		"sourceMonth": status.SourceMonth,
	}}
	_, err := s.db.Collection(CollectionRolloverStatus).UpdateOne(
		ctx, filter, update, options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) ClearMonth(ctx context.Context, month string) error {
	if _, err := s.db.Collection(CollectionRolloverMappings).DeleteMany(ctx, bson.M{"month": month}); err != nil {
		return err
	}
	_, err := s.db.Collection(CollectionRolloverStatus).DeleteMany(ctx, bson.M{"month": month})
	return err
}
