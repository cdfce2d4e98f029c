package expense

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound reports a lookup for an expense that does not exist.
var ErrNotFound = errors.New("expense: not found")

// UpdateParams carries a partial update. Nil fields are left untouched.
type UpdateParams struct {
	CategoryL1 *string `json:"category_l1"`
	CategoryL2 *string `json:"category_l2"`
	Notes      *string `json:"notes"`
	IsHidden   *bool   `json:"is_hidden"`
}

// Suggestion is a category proposal produced by the classification layer.
// It never confirms a record on its own.
type Suggestion struct {
	L1 string
	L2 string
}

// Repository is the storage surface of the expense domain.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	List(ctx context.Context, filter ListFilter, opts ListOptions) ([]Record, int, error)
	Update(ctx context.Context, id uuid.UUID, p UpdateParams) (*Record, error)
	// Confirm stores the user's category decision and marks the record
	// confirmed.
	Confirm(ctx context.Context, id uuid.UUID, l1, l2 string) (*Record, error)
	// SetHidden flips visibility for a batch and returns the affected
	// count.
	SetHidden(ctx context.Context, ids []uuid.UUID, hidden bool) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteBatch removes a set of records and returns the affected count.
	DeleteBatch(ctx context.Context, ids []uuid.UUID) (int64, error)
	// ClearCategories drops user categories and confirmation for a batch,
	// leaving AI suggestions in place.
	ClearCategories(ctx context.Context, ids []uuid.UUID) (int64, error)
	// ListUnclassified returns visible records with no AI suggestion yet,
	// oldest first.
	ListUnclassified(ctx context.Context, limit int) ([]Record, error)
	// SaveSuggestion records an AI category proposal without touching
	// user-owned fields.
	SaveSuggestion(ctx context.Context, id uuid.UUID, s Suggestion) error
}
