package stubs

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"booklist/internal/models"
	"booklist/internal/storage"
)

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu      sync.RWMutex
	records map[string]models.Record
	now     func() time.Time
	failErr error
	calls   []string
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		records: make(map[string]models.Record),
		now:     time.Now,
	}
}

// Initialize is a no-op, the mock starts empty
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// Seed inserts records as-is, keeping their ids and created times
func (m *MockDB) Seed(records ...models.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range records {
		m.records[r.ID] = r
	}
}

// FailWith makes every following call return err until cleared with nil
func (m *MockDB) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failErr = err
}

// Calls returns the operations performed so far, e.g. "list", "create", "update:rec1"
func (m *MockDB) Calls() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.calls)
}

// List returns the records matching q, ordered by q's sort key
func (m *MockDB) List(ctx context.Context, q storage.ListQuery) ([]models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "list")
	if m.failErr != nil {
		return nil, m.failErr
	}

	records := make([]models.Record, 0, len(m.records))
	for _, r := range m.records {
		if q.Search == "" || strings.Contains(r.Fields.Title, q.Search) {
			records = append(records, r)
		}
	}

	slices.SortFunc(records, func(a, b models.Record) int {
		c := compareRecords(a, b, q.SortField)
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		if q.SortDirection == models.SortDesc {
			return -c
		}
		return c
	})

	return records, nil
}

func compareRecords(a, b models.Record, field string) int {
	switch field {
	case models.SortTitle:
		return strings.Compare(a.Fields.Title, b.Fields.Title)
	case models.SortAuthor:
		return strings.Compare(a.Fields.Author, b.Fields.Author)
	case models.SortRating:
		return a.Fields.Rating - b.Fields.Rating
	default:
		return strings.Compare(a.CreatedTime, b.CreatedTime)
	}
}

// Create stores a new record with a generated id
func (m *MockDB) Create(ctx context.Context, fields models.Fields) (models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "create")
	if m.failErr != nil {
		return models.Record{}, m.failErr
	}

	rec := models.Record{
		ID:          storage.NewRecordID(),
		CreatedTime: m.now().UTC().Format(time.RFC3339Nano),
		Fields:      fields,
	}
	m.records[rec.ID] = rec
	return rec, nil
}

// Update overwrites the fields of an existing record
func (m *MockDB) Update(ctx context.Context, id string, fields models.Fields) (models.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, "update:"+id)
	if m.failErr != nil {
		return models.Record{}, m.failErr
	}

	rec, ok := m.records[id]
	if !ok {
		return models.Record{}, storage.ErrNotFound
	}
	rec.Fields = fields
	m.records[id] = rec
	return rec, nil
}

// Close is a no-op for the mock database
func (m *MockDB) Close() error {
	return nil
}
