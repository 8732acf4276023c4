package reports

import "errors"

var (
	ErrUnauthorized      = errors.New("bad secret")
	ErrMissingMessage    = errors.New("no message set")
	ErrMissingVersion    = errors.New("no version set")
	ErrMissingStacktrace = errors.New("no stacktrace set")
	ErrProblemTooLarge   = errors.New("problem too large")
	ErrNotFound          = errors.New("report not found")
	ErrStorage           = errors.New("storage failure")
)

// IsValidation reports whether err is one of the per-field validation failures.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingMessage) ||
		errors.Is(err, ErrMissingVersion) ||
		errors.Is(err, ErrMissingStacktrace) ||
		errors.Is(err, ErrProblemTooLarge)
}
