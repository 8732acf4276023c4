package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	mw "github.com/kiranshivaraju/crashdesk/internal/api/middleware"
	"github.com/kiranshivaraju/crashdesk/internal/api/response"
	"github.com/kiranshivaraju/crashdesk/internal/reports"
	"github.com/kiranshivaraju/crashdesk/pkg/models"
	"github.com/kiranshivaraju/crashdesk/pkg/reportquery"
)

const (
	traceHeadLines   = 3
	listMessageBytes = 300
	problemFilename  = "error.marla"
	listPath         = "/errors"
	detailPath       = "/error"
)

// Lister streams reports matching a filter, newest first.
type Lister interface {
	Each(ctx context.Context, filter reportquery.Filter, fn func(*models.ErrorReport) error) error
}

// ListService is what the list page reads from the report service.
type ListService interface {
	Lister
	Count(ctx context.Context, filter reportquery.Filter) (int, error)
}

// Resolver bulk-resolves every report matching a filter.
type Resolver interface {
	ResolveMatching(ctx context.Context, filter reportquery.Filter) (int, error)
}

// Toggler flips the resolved flag of one report.
type Toggler interface {
	Toggle(ctx context.Context, id int64) error
}

// ReportReader loads single reports.
type ReportReader interface {
	Get(ctx context.Context, id int64) (*models.ErrorReport, error)
}

// FeedInvalidator retires cached feed documents after a status change.
type FeedInvalidator interface {
	Invalidate(ctx context.Context) error
}

type listRow struct {
	ID         int64
	Version    string
	ReportDate time.Time
	Message    string
	Trace      []string
	Resolved   bool
}

type listPage struct {
	User            string
	Form            url.Values
	IncludeResolved bool
	Filtered        bool
	ClearURL        string
	Total           int
	ResolveAll      url.Values
	FeedURL         string
	Rows            []listRow
}

// NewListHandler returns the handler for GET /errors.
func NewListHandler(svc ListService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := ParseFilter(q)
		carried := filterQuery(q)

		total, err := svc.Count(r.Context(), filter)
		if err != nil {
			response.Text(w, http.StatusInternalServerError, "failed to load reports")
			return
		}

		var rows []listRow
		err = svc.Each(r.Context(), filter, func(e *models.ErrorReport) error {
			rows = append(rows, listRow{
				ID:         e.ID,
				Version:    e.Version,
				ReportDate: e.ReportDate,
				Message:    reports.Truncate(e.Message, listMessageBytes),
				Trace:      reports.HeadLines(e.Stacktrace, traceHeadLines),
				Resolved:   e.Resolved,
			})
			return nil
		})
		if err != nil {
			response.Text(w, http.StatusInternalServerError, "failed to load reports")
			return
		}

		unfiltered := url.Values{}
		if filter.IncludeResolved {
			unfiltered.Set("resolved", "1")
		}
		user, _ := mw.GetUser(r)

		render(w, http.StatusOK, "list", listPage{
			User:            user,
			Form:            q,
			IncludeResolved: filter.IncludeResolved,
			Filtered:        filter.Active(),
			ClearURL:        withQuery(listPath, unfiltered),
			Total:           total,
			ResolveAll:      carried,
			FeedURL:         withQuery("/feed", carried),
			Rows:            rows,
		})
	}
}

// NewResolveAllHandler returns the handler for POST /errors. It resolves
// everything matching the posted filter and redirects back to that listing.
func NewResolveAllHandler(svc Resolver, feeds FeedInvalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			response.Text(w, http.StatusBadRequest, "malformed form")
			return
		}

		if _, err := svc.ResolveMatching(r.Context(), ParseFilter(r.Form)); err != nil {
			response.Text(w, http.StatusInternalServerError, "failed to resolve reports")
			return
		}
		invalidateFeeds(r.Context(), feeds)
		http.Redirect(w, r, withQuery(listPath, filterQuery(r.Form)), http.StatusSeeOther)
	}
}

// NewToggleHandler returns the handler for POST /error. It flips the status
// of the posted id and redirects to its detail page.
func NewToggleHandler(svc Toggler, feeds FeedInvalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.FormValue("id"), 10, 64)
		if err != nil {
			response.Text(w, http.StatusNotFound, "report not found")
			return
		}

		if err := svc.Toggle(r.Context(), id); err != nil {
			response.Text(w, http.StatusInternalServerError, "failed to update report")
			return
		}
		invalidateFeeds(r.Context(), feeds)
		http.Redirect(w, r, fmt.Sprintf("%s?id=%d", detailPath, id), http.StatusSeeOther)
	}
}

type detailPage struct {
	ID            int64
	Version       string
	ReportDate    time.Time
	Resolved      bool
	OS            string
	ReportingUser string
	Message       string
	Stacktrace    string
	Config        string
	HasProblem    bool
}

// NewDetailHandler returns the handler for GET /error. A missing id goes back
// to the list and "download" streams the problem file.
func NewDetailHandler(svc ReportReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if !q.Has("id") {
			http.Redirect(w, r, listPath, http.StatusSeeOther)
			return
		}
		id, err := strconv.ParseInt(q.Get("id"), 10, 64)
		if err != nil {
			response.Text(w, http.StatusNotFound, "report not found")
			return
		}

		report, err := svc.Get(r.Context(), id)
		if errors.Is(err, reports.ErrNotFound) {
			response.Text(w, http.StatusNotFound, "report not found")
			return
		}
		if err != nil {
			response.Text(w, http.StatusInternalServerError, "failed to load report")
			return
		}

		if q.Has("download") {
			if len(report.Problem) == 0 {
				response.Text(w, http.StatusNotFound, "no problem uploaded")
				return
			}
			response.Attachment(w, problemFilename, report.Problem)
			return
		}

		render(w, http.StatusOK, "detail", detailPage{
			ID:            report.ID,
			Version:       report.Version,
			ReportDate:    report.ReportDate,
			Resolved:      report.Resolved,
			OS:            deref(report.OS),
			ReportingUser: deref(report.ReportingUser),
			Message:       report.Message,
			Stacktrace:    report.Stacktrace,
			Config:        deref(report.Config),
			HasProblem:    len(report.Problem) > 0,
		})
	}
}

// invalidateFeeds is best effort; the status change has already happened.
func invalidateFeeds(ctx context.Context, feeds FeedInvalidator) {
	if feeds == nil {
		return
	}
	if err := feeds.Invalidate(ctx); err != nil {
		slog.Warn("feed cache invalidation failed", "error", err)
	}
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
