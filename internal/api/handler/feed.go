package handler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/feeds"
	"github.com/kiranshivaraju/crashdesk/internal/api/response"
	"github.com/kiranshivaraju/crashdesk/internal/cache"
	"github.com/kiranshivaraju/crashdesk/internal/reports"
	"github.com/kiranshivaraju/crashdesk/pkg/models"
	"github.com/kiranshivaraju/crashdesk/pkg/reportquery"
)

const (
	feedTitle       = "Crash Report Feed"
	feedDescription = "Errors reported by clients"
	rssContentType  = "application/rss+xml; charset=utf-8"
	feedTitleBytes  = 200
)

// FeedSource loads the newest reports matching a filter.
type FeedSource interface {
	List(ctx context.Context, filter reportquery.Filter) ([]*models.ErrorReport, error)
}

// FeedOptions configures the RSS presenter.
type FeedOptions struct {
	BaseURL  string
	Size     int
	CacheTTL time.Duration
}

// NewFeedHandler returns the handler for GET /feed. Rendered documents are
// cached per filter for CacheTTL until the next status change; cache failures
// fall back to rendering.
func NewFeedHandler(src FeedSource, c cache.Cache, opts FeedOptions) http.HandlerFunc {
	feedCache := cache.NewFeedCache(c)

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var key string
		if opts.CacheTTL > 0 {
			var err error
			key, err = feedCache.Key(r.Context(), feedHash(filterQuery(q).Encode()))
			if err != nil {
				slog.Warn("feed cache read failed", "error", err)
			}
		}
		if key != "" {
			doc, found, err := c.Get(r.Context(), key)
			if err != nil {
				slog.Warn("feed cache read failed", "error", err)
			} else if found {
				writeFeed(w, doc)
				return
			}
		}

		filter := ParseFilter(q)
		filter.Limit = opts.Size

		feed := &feeds.Feed{
			Title:       feedTitle,
			Link:        &feeds.Link{Href: opts.BaseURL},
			Description: feedDescription,
			Created:     time.Now().UTC(),
		}
		rows, err := src.List(r.Context(), filter)
		if err != nil {
			response.Text(w, http.StatusInternalServerError, "failed to load reports")
			return
		}
		for _, e := range rows {
			feed.Items = append(feed.Items, feedItem(opts.BaseURL, e))
		}

		rss, err := feed.ToRss()
		if err != nil {
			slog.Error("render feed failed", "error", err)
			response.Text(w, http.StatusInternalServerError, "failed to render feed")
			return
		}
		doc := []byte(rss)

		if key != "" {
			if err := c.Set(r.Context(), key, doc, opts.CacheTTL); err != nil {
				slog.Warn("feed cache write failed", "error", err)
			}
		}
		writeFeed(w, doc)
	}
}

func feedItem(baseURL string, e *models.ErrorReport) *feeds.Item {
	lines := reports.HeadLines(e.Stacktrace, traceHeadLines)
	for i, l := range lines {
		lines[i] = html.EscapeString(l)
	}
	desc := "Error occurred in revision " + html.EscapeString(e.Version) +
		"<br /><strong>Stacktrace:</strong><br />" +
		strings.Join(lines, "<br />\n")

	return &feeds.Item{
		Title:       fmt.Sprintf("r%s - %s", e.Version, reports.Truncate(e.Message, feedTitleBytes)),
		Link:        &feeds.Link{Href: fmt.Sprintf("%s%s?id=%d", baseURL, detailPath, e.ID)},
		Description: desc,
		Created:     e.ReportDate,
	}
}

func feedHash(canonicalQuery string) string {
	sum := sha256.Sum256([]byte(canonicalQuery))
	return hex.EncodeToString(sum[:8])
}

func writeFeed(w http.ResponseWriter, doc []byte) {
	w.Header().Set("Content-Type", rssContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(doc)
}
