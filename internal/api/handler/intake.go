package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/kiranshivaraju/crashdesk/internal/api/response"
	"github.com/kiranshivaraju/crashdesk/internal/metrics"
	"github.com/kiranshivaraju/crashdesk/internal/reports"
)

// Intake replies. Deployed clients match these strings exactly.
const (
	replySuccess   = "success"
	replyFailed    = "failed"
	replyBadSecret = "bad secret"
)

// formOverhead is the allowance for the non-problem fields of an intake body,
// and for each one of them in a multipart body.
const formOverhead = 1 << 20

const problemField = "problem"

// Submitter is the intake side of the report service.
type Submitter interface {
	Submit(ctx context.Context, sub reports.Submission) (int64, error)
	CheckSecret(secret string) error
}

// NewIntakeHandler returns the handler for /report. Parameters are read from
// the query string and from url-encoded or multipart bodies alike. Every
// outcome is a 200 with a one-line plain text body.
func NewIntakeHandler(svc Submitter, maxProblemBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if maxProblemBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxProblemBytes+formOverhead)
		}

		form := readIntakeForm(r, maxProblemBytes)
		if form.truncated {
			rejectTruncated(w, r, svc, form)
			return
		}

		_, err := svc.Submit(r.Context(), form.submission())
		switch {
		case err == nil:
			response.Text(w, http.StatusOK, replySuccess)
		case errors.Is(err, reports.ErrUnauthorized):
			slog.Warn("report rejected", "reason", replyBadSecret, "remote_addr", r.RemoteAddr)
			response.Text(w, http.StatusOK, replyBadSecret)
		case reports.IsValidation(err):
			slog.Warn("report rejected", "reason", err.Error())
			response.Text(w, http.StatusOK, err.Error())
		default:
			response.Text(w, http.StatusOK, replyFailed)
		}
	}
}

// rejectTruncated answers a request whose body could not be read in full.
// The secret is checked against whatever was read before anything else.
func rejectTruncated(w http.ResponseWriter, r *http.Request, svc Submitter, form *intakeForm) {
	if err := svc.CheckSecret(form.values.Get("secret")); err != nil {
		slog.Warn("report rejected", "reason", replyBadSecret, "remote_addr", r.RemoteAddr)
		response.Text(w, http.StatusOK, replyBadSecret)
		return
	}
	if form.problemTooLarge {
		metrics.RecordIntake(metrics.OutcomeInvalid)
		slog.Warn("report rejected", "reason", reports.ErrProblemTooLarge.Error())
		response.Text(w, http.StatusOK, reports.ErrProblemTooLarge.Error())
		return
	}
	metrics.RecordIntake(metrics.OutcomeFailed)
	slog.Warn("report rejected", "reason", "unreadable body")
	response.Text(w, http.StatusOK, replyFailed)
}

// intakeForm holds the parameters read from one intake request.
type intakeForm struct {
	values url.Values

	problem    []byte
	hasProblem bool

	// problemTooLarge is set once the problem is known to exceed its cap.
	problemTooLarge bool

	// truncated is set when the body was cut short or could not be parsed.
	truncated bool
}

// readIntakeForm reads body parameters ahead of the query string, so body
// values win. The problem part of a multipart body is read to at most one
// byte past its cap; the service rejects it from there.
func readIntakeForm(r *http.Request, maxProblemBytes int64) *intakeForm {
	form := &intakeForm{values: url.Values{}}

	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		switch ct {
		case "multipart/form-data":
			form.readMultipart(r, maxProblemBytes)
		case "application/x-www-form-urlencoded":
			form.readURLEncoded(r.Body)
		}
	}

	for k, vs := range r.URL.Query() {
		form.values[k] = append(form.values[k], vs...)
	}
	if !form.hasProblem && form.values.Has(problemField) {
		form.problem = []byte(form.values.Get(problemField))
		form.hasProblem = true
	}
	return form
}

func (f *intakeForm) readMultipart(r *http.Request, maxProblemBytes int64) {
	mr, err := r.MultipartReader()
	if err != nil {
		f.truncated = true
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			f.truncated = true
			return
		}

		name := part.FormName()
		limit := int64(formOverhead)
		if name == problemField {
			limit = maxProblemBytes
		}
		data, err := readUpTo(part, limit)
		part.Close()
		if err != nil {
			f.truncated = true
			return
		}
		over := limit > 0 && int64(len(data)) > limit

		switch {
		case name == "":
		case name == problemField:
			if !f.hasProblem {
				f.problem, f.hasProblem = data, true
			}
			f.problemTooLarge = f.problemTooLarge || over
		case over:
			f.truncated = true
		default:
			f.values.Add(name, string(data))
		}
	}
}

func (f *intakeForm) readURLEncoded(body io.Reader) {
	data, err := io.ReadAll(body)
	raw := string(data)
	if err != nil {
		f.truncated = true
		// Only pairs ending in '&' are known to be whole.
		tail := raw
		if i := strings.LastIndexByte(raw, '&'); i >= 0 {
			raw, tail = raw[:i], raw[i+1:]
		} else {
			raw = ""
		}
		f.problemTooLarge = strings.HasPrefix(tail, problemField+"=")
	}

	values, err := url.ParseQuery(raw)
	if err != nil {
		f.truncated = true
	}
	for k, vs := range values {
		f.values[k] = append(f.values[k], vs...)
	}
}

func (f *intakeForm) submission() reports.Submission {
	sub := reports.Submission{
		Secret:        f.values.Get("secret"),
		Version:       f.values.Get("version"),
		Message:       f.values.Get("msg"),
		Stacktrace:    f.values.Get("trace"),
		OS:            f.optional("os"),
		ReportingUser: f.optional("user"),
		Config:        f.optional("config"),
	}
	if f.hasProblem {
		sub.Problem = f.problem
	}
	return sub
}

// optional returns nil when the parameter is absent so it is stored as NULL.
func (f *intakeForm) optional(key string) *string {
	if !f.values.Has(key) {
		return nil
	}
	v := f.values.Get(key)
	return &v
}

// readUpTo reads at most limit+1 bytes so callers can tell an oversized
// value from one that fits. limit <= 0 reads everything.
func readUpTo(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	return io.ReadAll(io.LimitReader(r, limit+1))
}
