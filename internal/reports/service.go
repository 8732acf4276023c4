// Package reports implements error report intake and triage on top of the store.
package reports

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kiranshivaraju/crashdesk/internal/metrics"
	"github.com/kiranshivaraju/crashdesk/internal/store"
	"github.com/kiranshivaraju/crashdesk/pkg/models"
	"github.com/kiranshivaraju/crashdesk/pkg/reportquery"
	"github.com/kiranshivaraju/crashdesk/pkg/revision"
)

// Submission is one intake request as received from a client.
// Empty required strings count as missing; nil optional fields are stored as NULL.
type Submission struct {
	Secret        string
	Version       string
	Message       string
	Stacktrace    string
	OS            *string
	ReportingUser *string
	Problem       []byte
	Config        *string
}

// Service orchestrates report intake, listing and resolution.
type Service struct {
	store           store.Store
	secret          string
	maxProblemBytes int64
}

// NewService creates a new Service. maxProblemBytes <= 0 disables the size check.
func NewService(st store.Store, secret string, maxProblemBytes int64) *Service {
	return &Service{
		store:           st,
		secret:          secret,
		maxProblemBytes: maxProblemBytes,
	}
}

// Submit validates sub and inserts it as a new unresolved report.
// Authorization and validation failures never reach the store.
func (s *Service) Submit(ctx context.Context, sub Submission) (int64, error) {
	if err := s.CheckSecret(sub.Secret); err != nil {
		return 0, err
	}

	if err := validate(sub, s.maxProblemBytes); err != nil {
		metrics.RecordIntake(metrics.OutcomeInvalid)
		return 0, err
	}

	// An empty upload is no upload.
	if len(sub.Problem) == 0 {
		sub.Problem = nil
	}

	id, err := s.store.CreateReport(ctx, &models.NewErrorReport{
		Version:       sub.Version,
		Revision:      revision.Ptr(sub.Version),
		OS:            sub.OS,
		ReportingUser: sub.ReportingUser,
		Message:       sub.Message,
		Stacktrace:    sub.Stacktrace,
		Problem:       sub.Problem,
		Config:        sub.Config,
	})
	if err != nil {
		slog.Error("report insert failed", "error", err, "version", sub.Version)
		metrics.RecordIntake(metrics.OutcomeFailed)
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	metrics.RecordIntake(metrics.OutcomeAccepted)
	slog.Info("report received", "id", id, "version", sub.Version)
	return id, nil
}

// CheckSecret returns ErrUnauthorized unless secret matches the configured
// intake token. Rejections are counted like any other intake outcome.
func (s *Service) CheckSecret(secret string) error {
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.secret)) != 1 {
		metrics.RecordIntake(metrics.OutcomeUnauthorized)
		return ErrUnauthorized
	}
	return nil
}

func validate(sub Submission, maxProblemBytes int64) error {
	switch {
	case sub.Message == "":
		return ErrMissingMessage
	case sub.Version == "":
		return ErrMissingVersion
	case sub.Stacktrace == "":
		return ErrMissingStacktrace
	case maxProblemBytes > 0 && int64(len(sub.Problem)) > maxProblemBytes:
		return ErrProblemTooLarge
	}
	return nil
}

// List returns summary rows matching filter, newest first.
func (s *Service) List(ctx context.Context, filter reportquery.Filter) ([]*models.ErrorReport, error) {
	reports, err := s.store.ListReports(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return reports, nil
}

// Each streams summary rows matching filter to fn, newest first.
// Errors returned by fn are passed through unchanged.
func (s *Service) Each(ctx context.Context, filter reportquery.Filter, fn func(*models.ErrorReport) error) error {
	var fnErr error
	err := s.store.EachReport(ctx, filter, func(r *models.ErrorReport) error {
		fnErr = fn(r)
		return fnErr
	})
	if err != nil {
		if fnErr != nil && errors.Is(err, fnErr) {
			return fnErr
		}
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Count returns the number of reports matching filter, ignoring its limit.
func (s *Service) Count(ctx context.Context, filter reportquery.Filter) (int, error) {
	n, err := s.store.CountReports(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return n, nil
}

// Get returns the full report including problem blob and config.
func (s *Service) Get(ctx context.Context, id int64) (*models.ErrorReport, error) {
	r, err := s.store.GetReport(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return r, nil
}

// Toggle flips the resolved flag of one report. Unknown ids are a no-op.
func (s *Service) Toggle(ctx context.Context, id int64) error {
	err := s.store.ToggleResolved(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		slog.Debug("toggle on unknown report ignored", "id", id)
		return nil
	}
	if err != nil {
		slog.Error("toggle resolved failed", "error", err, "id", id)
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Resolve marks every listed report resolved. Unknown ids are skipped and an
// empty list does not touch the store.
func (s *Service) Resolve(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	n, err := s.store.ResolveReports(ctx, ids)
	if err != nil {
		slog.Error("bulk resolve failed", "error", err, "ids", len(ids))
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	metrics.RecordResolved(n)
	return nil
}

// ResolveMatching resolves every report matching filter (its limit is ignored)
// and returns how many ids were selected.
func (s *Service) ResolveMatching(ctx context.Context, filter reportquery.Filter) (int, error) {
	ids, err := s.store.ListReportIDs(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := s.Resolve(ctx, ids); err != nil {
		return 0, err
	}
	slog.Info("reports resolved", "count", len(ids))
	return len(ids), nil
}
