package store

import (
	"context"
	"errors"

	"github.com/seantiz/duckview/internal/model"
)

// ErrInvalidTransition is returned when a view state transition is not allowed.
var ErrInvalidTransition = errors.New("invalid state transition")

// Stats holds aggregate view and query statistics.
type Stats struct {
	TotalViews      int            `json:"total_views"`
	ViewsByState    map[string]int `json:"views_by_state"`
	ViewsByProfile  map[string]int `json:"views_by_profile"`
	TotalQueries    int            `json:"total_queries"`
	QueriesByStatus map[string]int `json:"queries_by_status"`
	AvgQueryMS      float64        `json:"avg_query_ms"`
}

// Store defines the persistence operations for views and their query history.
type Store interface {
	CreateView(ctx context.Context, v *model.View) error
	GetView(ctx context.Context, id string) (*model.View, error)
	ListViews(ctx context.Context, limit, offset int) ([]*model.View, int, error)
	UpdateViewState(ctx context.Context, id, state, errMsg string) error
	SetViewBundle(ctx context.Context, id, bundle string) error
	InsertQuery(ctx context.Context, q *model.QueryRecord) error
	ListQueries(ctx context.Context, viewID string) ([]model.QueryRecord, error)
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}
