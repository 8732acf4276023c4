package store

import (
	"context"
	"errors"

	"github.com/kiranshivaraju/crashdesk/pkg/models"
	"github.com/kiranshivaraju/crashdesk/pkg/reportquery"
)

var ErrNotFound = errors.New("resource not found")
var ErrConstraint = errors.New("check constraint violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateReport(ctx context.Context, report *models.NewErrorReport) (int64, error)
	GetReport(ctx context.Context, id int64) (*models.ErrorReport, error)

	// ListReports returns summary rows (no problem blob or config) matching filter.
	ListReports(ctx context.Context, filter reportquery.Filter) ([]*models.ErrorReport, error)
	// EachReport streams summary rows to fn in listing order. Iteration stops
	// at the first error returned by fn, which EachReport then returns.
	EachReport(ctx context.Context, filter reportquery.Filter, fn func(*models.ErrorReport) error) error
	CountReports(ctx context.Context, filter reportquery.Filter) (int, error)
	ListReportIDs(ctx context.Context, filter reportquery.Filter) ([]int64, error)

	// ToggleResolved flips the resolved flag. Returns ErrNotFound for unknown ids.
	ToggleResolved(ctx context.Context, id int64) error
	// ResolveReports marks every existing id as resolved and returns how many rows matched.
	ResolveReports(ctx context.Context, ids []int64) (int64, error)
}
