package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/crashdesk/pkg/models"
	"github.com/kiranshivaraju/crashdesk/pkg/reportquery"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
	qb   reportquery.Builder
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Writes ---

func (s *PostgresStore) CreateReport(ctx context.Context, r *models.NewErrorReport) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO error_reports (version, revision, os, reporting_user, message, stacktrace, problem, config)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		r.Version, r.Revision, r.OS, r.ReportingUser, r.Message, r.Stacktrace, r.Problem, r.Config,
	).Scan(&id)
	if err != nil {
		if isCheckViolation(err) {
			return 0, ErrConstraint
		}
		return 0, fmt.Errorf("create report: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ToggleResolved(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE error_reports SET resolved = NOT resolved WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("toggle resolved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ResolveReports(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE error_reports SET resolved = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("resolve reports: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- Reads ---

func (s *PostgresStore) GetReport(ctx context.Context, id int64) (*models.ErrorReport, error) {
	var r models.ErrorReport
	err := s.pool.QueryRow(ctx,
		`SELECT id, report_date, resolved, version, revision, os, reporting_user, message, stacktrace, problem, config
		 FROM error_reports WHERE id = $1`, id,
	).Scan(&r.ID, &r.ReportDate, &r.Resolved, &r.Version, &r.Revision, &r.OS, &r.ReportingUser,
		&r.Message, &r.Stacktrace, &r.Problem, &r.Config)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	r.HasProblem = len(r.Problem) > 0
	return &r, nil
}

func (s *PostgresStore) ListReports(ctx context.Context, filter reportquery.Filter) ([]*models.ErrorReport, error) {
	reports := []*models.ErrorReport{}
	err := s.EachReport(ctx, filter, func(r *models.ErrorReport) error {
		reports = append(reports, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *PostgresStore) EachReport(ctx context.Context, filter reportquery.Filter, fn func(*models.ErrorReport) error) error {
	query, args := s.qb.Build(filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r models.ErrorReport
		if err := rows.Scan(&r.ID, &r.ReportDate, &r.Resolved, &r.Version, &r.Revision, &r.OS,
			&r.ReportingUser, &r.Message, &r.Stacktrace, &r.HasProblem); err != nil {
			return fmt.Errorf("scan report: %w", err)
		}
		if err := fn(&r); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountReports(ctx context.Context, filter reportquery.Filter) (int, error) {
	query, args := s.qb.BuildCount(filter)
	var total int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return total, nil
}

func (s *PostgresStore) ListReportIDs(ctx context.Context, filter reportquery.Filter) ([]int64, error) {
	query, args := s.qb.BuildIDs(filter)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list report ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect report ids: %w", err)
	}
	return ids, nil
}

// isCheckViolation checks if a pgx error is a CHECK or NOT NULL constraint violation.
func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514" || pgErr.Code == "23502"
	}
	return false
}
