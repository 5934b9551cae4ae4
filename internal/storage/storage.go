package storage

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"

	"booklist/internal/models"
)

// ErrNotFound is returned when an update targets a record the store does not know
var ErrNotFound = errors.New("record not found")

// ListQuery narrows and orders a list request
type ListQuery struct {
	SortField     string
	SortDirection string
	// Search is matched against the title by the store itself
	Search string
}

// Storage defines the interface for the remote book store
type Storage interface {
	// List returns every record matching q, ordered by q's single sort key
	List(ctx context.Context, q ListQuery) ([]models.Record, error)

	// Create writes one record; the store assigns id and createdTime
	Create(ctx context.Context, fields models.Fields) (models.Record, error)

	// Update overwrites the editable fields of record id
	Update(ctx context.Context, id string, fields models.Fields) (models.Record, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}

// NewRecordID returns an id shaped like the hosted store's: "rec" followed by
// 14 hex characters
func NewRecordID() string {
	id := uuid.New()
	return "rec" + hex.EncodeToString(id[:7])
}
