package handler

import (
	"context"
	"encoding/xml"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/kiranshivaraju/crashdesk/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rssDoc struct {
	Channel struct {
		Title       string `xml:"title"`
		Link        string `xml:"link"`
		Description string `xml:"description"`
		Items       []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
		} `xml:"item"`
	} `xml:"channel"`
}

func feedOpts() FeedOptions {
	return FeedOptions{BaseURL: "https://crash.example.com", Size: 25, CacheTTL: 30 * time.Second}
}

func fetchFeed(t *testing.T, h http.Handler, target string) (*httptest.ResponseRecorder, rssDoc) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var doc rssDoc
	require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &doc))
	return w, doc
}

func TestFeed_Renders(t *testing.T) {
	svc := &mockService{rows: sampleReports()}
	w, doc := fetchFeed(t, NewFeedHandler(svc, newMockCache(), feedOpts()), "/feed")

	assert.Equal(t, "application/rss+xml; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "Crash Report Feed", doc.Channel.Title)
	assert.Equal(t, "https://crash.example.com", doc.Channel.Link)
	assert.Equal(t, "Errors reported by clients", doc.Channel.Description)

	require.Len(t, doc.Channel.Items, 2)
	item := doc.Channel.Items[0]
	assert.Equal(t, "r42 - NullPointer", item.Title)
	assert.Equal(t, "https://crash.example.com/error?id=2", item.Link)
	assert.True(t, strings.HasPrefix(item.Description, "Error occurred in revision 42"))
	assert.Contains(t, item.Description, "at foo<br />\nat bar<br />\nat baz")
	assert.NotContains(t, item.Description, "at qux")
	assert.Contains(t, item.PubDate, "02 Mar 2024")

	require.Len(t, svc.filters, 1)
	assert.Equal(t, 25, svc.filters[0].Limit)
	assert.False(t, svc.filters[0].IncludeResolved)
}

func TestFeed_EscapesHTMLInDescription(t *testing.T) {
	svc := &mockService{rows: sampleReports()[1:]}
	svc.rows[0].Stacktrace = "<b>boom</b>"

	_, doc := fetchFeed(t, NewFeedHandler(svc, newMockCache(), feedOpts()), "/feed?resolved")

	require.Len(t, doc.Channel.Items, 1)
	assert.Contains(t, doc.Channel.Items[0].Description, "&lt;b&gt;boom&lt;/b&gt;")
	assert.True(t, svc.filters[0].IncludeResolved)
}

func TestFeed_ServedFromCache(t *testing.T) {
	svc := &mockService{rows: sampleReports()}
	c := newMockCache()
	h := NewFeedHandler(svc, c, feedOpts())

	w1, _ := fetchFeed(t, h, "/feed?contains=null")
	w2, _ := fetchFeed(t, h, "/feed?contains=null")

	assert.Equal(t, w1.Body.String(), w2.Body.String())
	assert.Equal(t, 1, svc.listCalls)
	require.Len(t, c.data, 1)
	for key, ttl := range c.ttls {
		assert.True(t, strings.HasPrefix(key, "feed:rss:0:"))
		assert.Equal(t, 30*time.Second, ttl)
	}

	fetchFeed(t, h, "/feed?contains=other")
	assert.Equal(t, 2, svc.listCalls)
}

func TestFeed_InvalidateRetiresCachedDocuments(t *testing.T) {
	svc := &mockService{rows: sampleReports()}
	c := newMockCache()
	h := NewFeedHandler(svc, c, feedOpts())

	_, before := fetchFeed(t, h, "/feed")
	require.Len(t, before.Channel.Items, 2)

	svc.rows = svc.rows[:1]
	require.NoError(t, cache.NewFeedCache(c).Invalidate(context.Background()))

	_, after := fetchFeed(t, h, "/feed")
	assert.Len(t, after.Channel.Items, 1)
	assert.Equal(t, 2, svc.listCalls)

	fetchFeed(t, h, "/feed")
	assert.Equal(t, 2, svc.listCalls)
}

func TestFeed_ToggleRetiresCachedDocuments(t *testing.T) {
	svc := &mockService{rows: sampleReports()}
	c := newMockCache()
	h := NewFeedHandler(svc, c, feedOpts())

	fetchFeed(t, h, "/feed")
	post(NewToggleHandler(svc, cache.NewFeedCache(c)), "/error", url.Values{"id": {"2"}})
	fetchFeed(t, h, "/feed")

	assert.Equal(t, 2, svc.listCalls)
}

func TestFeed_TruncatesLongTitles(t *testing.T) {
	svc := &mockService{rows: sampleReports()[:1]}
	svc.rows[0].Message = strings.Repeat("m", 250)

	_, doc := fetchFeed(t, NewFeedHandler(svc, newMockCache(), feedOpts()), "/feed")

	require.Len(t, doc.Channel.Items, 1)
	assert.Equal(t, "r42 - "+strings.Repeat("m", 200)+"…", doc.Channel.Items[0].Title)
}

func TestFeed_CacheFailureStillRenders(t *testing.T) {
	svc := &mockService{rows: sampleReports()}
	c := newMockCache()
	c.err = errors.New("redis down")

	_, doc := fetchFeed(t, NewFeedHandler(svc, c, feedOpts()), "/feed")
	assert.Len(t, doc.Channel.Items, 2)
}

func TestFeed_CachingDisabled(t *testing.T) {
	svc := &mockService{rows: sampleReports()}
	c := newMockCache()
	opts := feedOpts()
	opts.CacheTTL = 0
	h := NewFeedHandler(svc, c, opts)

	fetchFeed(t, h, "/feed")
	fetchFeed(t, h, "/feed")

	assert.Equal(t, 2, svc.listCalls)
	assert.Empty(t, c.data)
}

func TestFeed_StorageFailure(t *testing.T) {
	svc := &mockService{eachErr: errors.New("down")}
	w := httptest.NewRecorder()
	NewFeedHandler(svc, newMockCache(), feedOpts()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/feed", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
