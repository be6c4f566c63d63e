package rollover

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/propfolio/commission_backend/models"
)

// fakeStore is an in-memory Store for engine tests. It mimics the Mongo
// store's selection semantics, including the "missing rollover" filter.
type fakeStore struct {
	mu         sync.Mutex
	records    []models.AgentMonthRecord
	mappings   map[string]models.RolloverMapping // month + "/" + agentKey
	statuses   map[string]models.RolloverStatus
	failWrites bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		mappings: make(map[string]models.RolloverMapping),
		statuses: make(map[string]models.RolloverStatus),
	}
}

func (s *fakeStore) addRecord(rec models.AgentMonthRecord) primitive.ObjectID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	s.records = append(s.records, rec)
	return rec.ID
}

func (s *fakeStore) recordByID(id primitive.ObjectID) *models.AgentMonthRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			rec := s.records[i]
			return &rec
		}
	}
	return nil
}

func (s *fakeStore) AgentRecordsByMonth(_ context.Context, month string) ([]models.AgentMonthRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AgentMonthRecord
	for _, rec := range s.records {
		if rec.Month == month {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) AgentRecordsMissingRollover(_ context.Context, month string) ([]models.AgentMonthRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AgentMonthRecord
	for _, rec := range s.records {
		if rec.Month == month && (rec.RolloverData == "" || rec.RolloverData == "[]") {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) WriteRolloverData(_ context.Context, id primitive.ObjectID, serialized string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return errors.New("write rejected")
	}
	for i := range s.records {
		if s.records[i].ID == id {
			now := time.Now()
			s.records[i].RolloverData = serialized
			s.records[i].LastRolloverSync = &now
			return nil
		}
	}
	return errors.New("record not found")
}

func (s *fakeStore) MappingsByMonth(_ context.Context, month string) ([]models.RolloverMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RolloverMapping
	for _, m := range s.mappings {
		if m.Month == month {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertMapping(_ context.Context, mapping models.RolloverMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[mapping.Month+"/"+mapping.AgentKey] = mapping
	return nil
}

func (s *fakeStore) StatusByMonth(_ context.Context, month string) (*models.RolloverStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.statuses[month]; ok {
		return &status, nil
	}
	return nil, nil
}

func (s *fakeStore) UpsertStatus(_ context.Context, status models.RolloverStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[status.Month] = status
	return nil
}

func (s *fakeStore) ClearMonth(_ context.Context, month string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, m := range s.mappings {
		if m.Month == month {
			delete(s.mappings, key)
		}
	}
	delete(s.statuses, month)
	return nil
}

func (s *fakeStore) mappingCount(month string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.mappings {
		if m.Month == month {
			n++
		}
	}
	return n
}

// strptr and floatptr keep fixture literals readable.
func strptr(s string) *string { return &s }

func floatptr(f float64) *float64 { return &f }
