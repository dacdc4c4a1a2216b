package search

import (
	"fmt"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/budget"
	"github.com/starford/ansuz/internal/models"
)

// DateField selects which timestamp a date range applies to.
type DateField string

// Date fields.
const (
	FieldModified DateField = "modified"
	FieldCreated  DateField = "created"
	FieldEither   DateField = "either"
)

const datePreviewChars = 200

// DateRange filters nodes by timestamp. A zero Start or End leaves that side
// of the range open.
type DateRange struct {
	Field      DateField
	Start      time.Time
	End        time.Time
	MaxResults int
}

// Validate checks the range.
func (r DateRange) Validate() error {
	if r.Field == "" {
		r.Field = FieldModified
	}
	if err := validation.ValidateStruct(&r,
		validation.Field(&r.Field, validation.In(FieldModified, FieldCreated, FieldEither)),
		validation.Field(&r.MaxResults, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err)
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return fmt.Errorf("%w: end %s is before start %s", apperr.ErrInvalidRequest,
			r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	return nil
}

func (r DateRange) contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// DateResult lists nodes inside a date range, newest first.
type DateResult struct {
	Nodes    []models.NodeSummary `json:"nodes"`
	Total    int                  `json:"total"`
	Scanned  int                  `json:"scanned"`
	Warnings []models.Warning     `json:"warnings,omitempty"`
}

// ByDate returns the nodes under scope whose timestamp falls in r, newest
// first with node ID as tie-break.
func (e *Engine) ByDate(scope string, r DateRange) (*DateResult, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.Field == "" {
		r.Field = FieldModified
	}

	snap, err := e.store.Enumerate(scope)
	if err != nil {
		return nil, err
	}

	type dated struct {
		summary models.NodeSummary
		at      time.Time
	}
	var matched []dated
	for _, n := range snap.Nodes {
		var (
			at time.Time
			ok bool
		)
		switch r.Field {
		case FieldModified:
			at, ok = n.ModifiedAt, r.contains(n.ModifiedAt)
		case FieldCreated:
			at, ok = n.CreatedAt, r.contains(n.CreatedAt)
		case FieldEither:
			at = n.ModifiedAt
			if n.CreatedAt.After(at) {
				at = n.CreatedAt
			}
			ok = r.contains(n.ModifiedAt) || r.contains(n.CreatedAt)
		}
		if !ok {
			continue
		}
		s := n.Summary()
		s.Preview, s.Truncated = budget.Preview(n.Body, datePreviewChars)
		matched = append(matched, dated{summary: s, at: at})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].at.Equal(matched[j].at) {
			return matched[i].at.After(matched[j].at)
		}
		return matched[i].summary.ID < matched[j].summary.ID
	})

	out := &DateResult{Nodes: make([]models.NodeSummary, 0, len(matched)), Total: len(matched), Scanned: len(snap.Nodes), Warnings: snap.Warnings}
	limit := r.MaxResults
	if limit == 0 {
		limit = e.cfg.DefaultMaxResults
	}
	for i, m := range matched {
		if limit > 0 && i >= limit {
			break
		}
		out.Nodes = append(out.Nodes, m.summary)
	}
	return out, nil
}

// ParseDate reads a date range bound given as RFC 3339 or YYYY-MM-DD. With
// endOfDay, a bare date selects the last instant of that day so the bound is
// inclusive. An empty string is the zero time.
func ParseDate(s string, endOfDay bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be RFC 3339 or YYYY-MM-DD", apperr.ErrInvalidRequest, s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
