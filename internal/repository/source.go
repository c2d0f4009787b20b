package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"studium/internal/model"
)

// ErrNotFound is returned when no row matches the lookup.
var ErrNotFound = errors.New("record not found")

// SourceRepository defines data access for sources using SQL queries only.
// No business logic here, only persistence.
type SourceRepository interface {
	// Create inserts a new source row and returns it as stored, including
	// the server-assigned timestamps.
	Create(ctx context.Context, src *model.Source) (*model.Source, error)

	// FindByID returns a source by its ID or ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*model.Source, error)

	// ListByOwner returns every source of ownerID, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]model.Source, error)
}
