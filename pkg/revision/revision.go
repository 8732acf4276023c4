// Package revision extracts numeric build revisions from free-form version labels.
package revision

import (
	"regexp"
	"strconv"
)

var (
	// "r42", "rev 42", "revision-42" anywhere in the label.
	reTagged = regexp.MustCompile(`(?i)\br(?:ev(?:ision)?)?[\s\-_.:]*(\d+)\b`)
	reBare   = regexp.MustCompile(`^\s*(\d+)\s*$`)
	reLead   = regexp.MustCompile(`^\s*(\d+)`)
)

// Parse returns the revision number embedded in a version label.
//
// A label that is entirely a number is that number. Otherwise an explicit
// revision tag ("r42", "rev 42") wins over a leading number, so "1.0 (r42)"
// parses as 42 and "3.1.4" as 3. Labels with no digits report ok=false.
func Parse(label string) (n int64, ok bool) {
	for _, re := range []*regexp.Regexp{reBare, reTagged, reLead} {
		if m := re.FindStringSubmatch(label); m != nil {
			v, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil {
				return 0, false
			}
			return v, true
		}
	}
	return 0, false
}

// Ptr is Parse for nullable columns: nil when the label has no revision.
func Ptr(label string) *int64 {
	n, ok := Parse(label)
	if !ok {
		return nil
	}
	return &n
}
