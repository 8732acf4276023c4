package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	mw "github.com/kiranshivaraju/crashdesk/internal/api/middleware"
	"github.com/kiranshivaraju/crashdesk/internal/reports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(mw.SetUser(req.Context(), "maintainer"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func post(h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = req.WithContext(mw.SetUser(req.Context(), "maintainer"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// ========================================
// List
// ========================================

func TestList_RendersRows(t *testing.T) {
	svc := &mockService{rows: sampleReports()}
	w := get(NewListHandler(svc), "/errors?resolved=1&contains=n")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Contains(t, body, "Signed in as maintainer")
	assert.Contains(t, body, `<a href="/error?id=2">2</a>`)
	assert.Contains(t, body, "at foo<br />at bar<br />at baz")
	assert.NotContains(t, body, "at qux")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, `value="n"`)
	assert.Contains(t, body, "checked")

	require.Len(t, svc.filters, 1)
	assert.True(t, svc.filters[0].IncludeResolved)
	assert.Equal(t, "n", svc.filters[0].Contains)
	assert.Zero(t, svc.filters[0].Limit)
}

func TestList_TotalComesFromCount(t *testing.T) {
	svc := &mockService{rows: sampleReports(), total: 17}
	w := get(NewListHandler(svc), "/errors")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "17 report(s)")
}

func TestList_CountFailure(t *testing.T) {
	svc := &mockService{countErr: reports.ErrStorage}
	w := get(NewListHandler(svc), "/errors")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, svc.eachCalls)
}

func TestList_TruncatesLongMessages(t *testing.T) {
	rows := sampleReports()[:1]
	rows[0].Message = strings.Repeat("x", 400)
	w := get(NewListHandler(&mockService{rows: rows}), "/errors")

	body := w.Body.String()
	assert.Contains(t, body, strings.Repeat("x", 300)+"…")
	assert.NotContains(t, body, strings.Repeat("x", 301))
}

func TestList_ClearFilterLink(t *testing.T) {
	svc := &mockService{}

	w := get(NewListHandler(svc), "/errors?resolved=1")
	assert.NotContains(t, w.Body.String(), "Clear filter")

	w = get(NewListHandler(svc), "/errors?resolved=1&contains=npe")
	assert.Contains(t, w.Body.String(), `<a href="/errors?resolved=1">Clear filter</a>`)
}

func TestList_ResolveAllFormCarriesFilter(t *testing.T) {
	svc := &mockService{}
	w := get(NewListHandler(svc), "/errors?contains=npe&rmin=40")

	body := w.Body.String()
	assert.Contains(t, body, `<form method="post" action="/errors">`)
	assert.Contains(t, body, `<input type="hidden" name="contains" value="npe" />`)
	assert.Contains(t, body, `<input type="hidden" name="rmin" value="40" />`)
	assert.Contains(t, body, `<form method="post" action="/logout">`)
}

func TestList_GetNeverResolves(t *testing.T) {
	svc := &mockService{rows: sampleReports()}
	w := get(NewListHandler(svc), "/errors?resolve_all&contains=npe")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, svc.resolvedFilters)
}

func TestList_StorageFailure(t *testing.T) {
	svc := &mockService{eachErr: reports.ErrStorage}
	w := get(NewListHandler(svc), "/errors")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// ========================================
// Resolve all
// ========================================

func TestResolveAll(t *testing.T) {
	svc := &mockService{rows: sampleReports()}
	feeds := &mockInvalidator{}
	w := post(NewResolveAllHandler(svc, feeds), "/errors", url.Values{"contains": {"npe"}, "rmin": {"40"}})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/errors?contains=npe&rmin=40", w.Header().Get("Location"))
	require.Len(t, svc.resolvedFilters, 1)
	assert.Equal(t, "npe", svc.resolvedFilters[0].Contains)
	require.NotNil(t, svc.resolvedFilters[0].RevMin)
	assert.Equal(t, int64(40), *svc.resolvedFilters[0].RevMin)
	assert.Equal(t, 1, feeds.calls)
}

func TestResolveAll_Failure(t *testing.T) {
	feeds := &mockInvalidator{}
	w := post(NewResolveAllHandler(&mockService{resolveErr: reports.ErrStorage}, feeds), "/errors", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, feeds.calls)
}

func TestResolveAll_InvalidationFailureStillRedirects(t *testing.T) {
	feeds := &mockInvalidator{err: errors.New("redis down")}
	w := post(NewResolveAllHandler(&mockService{}, feeds), "/errors", nil)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/errors", w.Header().Get("Location"))
}

// ========================================
// Toggle
// ========================================

func TestToggle_Redirects(t *testing.T) {
	svc := &mockService{}
	feeds := &mockInvalidator{}
	w := post(NewToggleHandler(svc, feeds), "/error", url.Values{"id": {"5"}})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/error?id=5", w.Header().Get("Location"))
	assert.Equal(t, []int64{5}, svc.toggled)
	assert.Equal(t, 1, feeds.calls)
}

func TestToggle_BadID(t *testing.T) {
	svc := &mockService{}
	w := post(NewToggleHandler(svc, nil), "/error", url.Values{"id": {"abc"}})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, svc.toggled)
}

func TestToggle_Failure(t *testing.T) {
	w := post(NewToggleHandler(&mockService{toggleErr: reports.ErrStorage}, nil), "/error", url.Values{"id": {"5"}})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// ========================================
// Detail
// ========================================

func TestDetail_MissingIDRedirects(t *testing.T) {
	w := get(NewDetailHandler(&mockService{}), "/error")

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/errors", w.Header().Get("Location"))
}

func TestDetail_BadID(t *testing.T) {
	w := get(NewDetailHandler(&mockService{}), "/error?id=abc")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetail_NotFound(t *testing.T) {
	w := get(NewDetailHandler(&mockService{}), "/error?id=99")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetail_StorageFailure(t *testing.T) {
	w := get(NewDetailHandler(&mockService{getErr: errors.New("down")}), "/error?id=1")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDetail_Renders(t *testing.T) {
	svc := &mockService{rows: sampleReports()}

	w := get(NewDetailHandler(svc), "/error?id=2")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Crash Report #2")
	assert.Contains(t, body, "NullPointer")
	assert.Contains(t, body, "Linux")
	assert.Contains(t, body, `<form method="post" action="/error">`)
	assert.Contains(t, body, `<input type="hidden" name="id" value="2" />`)
	assert.Contains(t, body, "/error?id=2&download")
	assert.Contains(t, body, "Open")

	w = get(NewDetailHandler(svc), "/error?id=1")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "None uploaded")
	assert.Contains(t, w.Body.String(), "Resolved")
}

func TestDetail_GetNeverToggles(t *testing.T) {
	svc := &mockService{rows: sampleReports()}
	w := get(NewDetailHandler(svc), "/error?id=2&resolve")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, svc.toggled)
}

func TestDetail_Download(t *testing.T) {
	svc := &mockService{rows: sampleReports()}
	w := get(NewDetailHandler(svc), "/error?id=2&download")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/octet-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=error.marla", w.Header().Get("Content-Disposition"))
	assert.Equal(t, "<marla/>", w.Body.String())
}

func TestDetail_DownloadWithoutProblem(t *testing.T) {
	svc := &mockService{rows: sampleReports()}
	w := get(NewDetailHandler(svc), "/error?id=1&download")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetail_EmptyProblemIsNoProblem(t *testing.T) {
	rows := sampleReports()
	rows[0].Problem = []byte{}
	svc := &mockService{rows: rows}

	w := get(NewDetailHandler(svc), "/error?id=2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "None uploaded")
	assert.NotContains(t, w.Body.String(), "download")

	w = get(NewDetailHandler(svc), "/error?id=2&download")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
