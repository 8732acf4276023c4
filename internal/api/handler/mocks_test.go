package handler

import (
	"context"
	"sync"
	"time"

	"github.com/kiranshivaraju/crashdesk/internal/reports"
	"github.com/kiranshivaraju/crashdesk/pkg/models"
	"github.com/kiranshivaraju/crashdesk/pkg/reportquery"
)

// --- mock report service ---

const testSecret = "s3cret"

type mockService struct {
	mu sync.Mutex

	maxProblem int64
	submitErr  error
	submitted  []reports.Submission

	rows      []*models.ErrorReport
	eachErr   error
	countErr  error
	total     int
	filters   []reportquery.Filter
	eachCalls int
	listCalls int

	resolveErr      error
	resolvedFilters []reportquery.Filter

	getErr    error
	toggleErr error
	toggled   []int64
}

func (m *mockService) Submit(_ context.Context, sub reports.Submission) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return 0, m.submitErr
	}
	if m.maxProblem > 0 && int64(len(sub.Problem)) > m.maxProblem {
		return 0, reports.ErrProblemTooLarge
	}
	m.submitted = append(m.submitted, sub)
	return int64(len(m.submitted)), nil
}

func (m *mockService) CheckSecret(secret string) error {
	if secret != testSecret {
		return reports.ErrUnauthorized
	}
	return nil
}

func (m *mockService) Each(_ context.Context, f reportquery.Filter, fn func(*models.ErrorReport) error) error {
	m.mu.Lock()
	m.eachCalls++
	m.filters = append(m.filters, f)
	rows := m.rows
	err := m.eachErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	for _, r := range rows {
		cp := *r
		if err := fn(&cp); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockService) List(_ context.Context, f reportquery.Filter) ([]*models.ErrorReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	m.filters = append(m.filters, f)
	if m.eachErr != nil {
		return nil, m.eachErr
	}
	out := make([]*models.ErrorReport, 0, len(m.rows))
	for _, r := range m.rows {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockService) Count(_ context.Context, _ reportquery.Filter) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	if m.total > 0 {
		return m.total, nil
	}
	return len(m.rows), nil
}

func (m *mockService) ResolveMatching(_ context.Context, f reportquery.Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvedFilters = append(m.resolvedFilters, f)
	return len(m.rows), m.resolveErr
}

func (m *mockService) Get(_ context.Context, id int64) (*models.ErrorReport, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, r := range m.rows {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, reports.ErrNotFound
}

func (m *mockService) Toggle(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toggled = append(m.toggled, id)
	return m.toggleErr
}

// --- mock feed invalidator ---

type mockInvalidator struct {
	calls int
	err   error
}

func (m *mockInvalidator) Invalidate(_ context.Context) error {
	m.calls++
	return m.err
}

// --- mock cache ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
	err  error
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, false, c.err
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return c.err
}

func (c *mockCache) Ping(_ context.Context) error { return c.err }

func (c *mockCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, c.err
}

// --- fixtures ---

func strPtr(s string) *string { return &s }

func sampleReports() []*models.ErrorReport {
	return []*models.ErrorReport{
		{
			ID:         2,
			ReportDate: time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC),
			Version:    "42",
			Message:    "NullPointer",
			Stacktrace: "at foo\nat bar\nat baz\nat qux",
			OS:         strPtr("Linux"),
			Problem:    []byte("<marla/>"),
			HasProblem: true,
		},
		{
			ID:         1,
			ReportDate: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
			Resolved:   true,
			Version:    "41",
			Message:    "<script>alert(1)</script>",
			Stacktrace: "at a",
		},
	}
}
