package handler

import (
	"net/url"
	"time"

	"github.com/kiranshivaraju/crashdesk/pkg/reportquery"
	"github.com/kiranshivaraju/crashdesk/pkg/revision"
)

const dateLayout = "2006-01-02"

// filterParams are the query parameters that make up a listing filter.
var filterParams = []string{"resolved", "dmin", "dmax", "rmin", "rmax", "contains"}

// ParseFilter reads a listing filter from query parameters. Bounds that do
// not parse are ignored. A date-only dmax covers the whole of that day.
func ParseFilter(q url.Values) reportquery.Filter {
	f := reportquery.Filter{
		IncludeResolved: q.Has("resolved"),
		Contains:        q.Get("contains"),
	}
	if t, _, ok := parseTime(q.Get("dmin")); ok {
		f.DateMin = &t
	}
	if t, dateOnly, ok := parseTime(q.Get("dmax")); ok {
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Microsecond)
		}
		f.DateMax = &t
	}
	if n, ok := revision.Parse(q.Get("rmin")); ok {
		f.RevMin = &n
	}
	if n, ok := revision.Parse(q.Get("rmax")); ok {
		f.RevMax = &n
	}
	return f
}

// filterQuery keeps only the non-empty filter parameters of q, so links and
// redirects can carry the current filter.
func filterQuery(q url.Values) url.Values {
	out := url.Values{}
	for _, k := range filterParams {
		if !q.Has(k) {
			continue
		}
		v := q.Get(k)
		if v == "" && k != "resolved" {
			continue
		}
		if k == "resolved" && v == "" {
			v = "1"
		}
		out.Set(k, v)
	}
	return out
}

func parseTime(s string) (t time.Time, dateOnly bool, ok bool) {
	if s == "" {
		return time.Time{}, false, false
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, true
	}
	return time.Time{}, false, false
}
