// Package query filters and sorts an in-memory note collection.
//
// The transform is pure: it performs no I/O, never fails, and never mutates
// its input. Date filters are evaluated relative to the supplied "now" in
// now's location.
package query

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/starford/jotter/internal/models"
)

// DateFilter selects the category stage of the pipeline.
type DateFilter int

const (
	All DateFilter = iota
	Today
	ThisWeek
	ThisMonth
	ByColor
)

var dateFilterNames = map[DateFilter]string{
	All:       "all",
	Today:     "today",
	ThisWeek:  "this_week",
	ThisMonth: "this_month",
	ByColor:   "by_color",
}

func (f DateFilter) String() string {
	if s, ok := dateFilterNames[f]; ok {
		return s
	}
	return fmt.Sprintf("DateFilter(%d)", int(f))
}

// ParseDateFilter accepts the names produced by String. Empty means All.
func ParseDateFilter(s string) (DateFilter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return All, nil
	}
	for f, name := range dateFilterNames {
		if name == s {
			return f, nil
		}
	}
	return All, fmt.Errorf("query: unknown filter %q", s)
}

// SortOrder selects the ordering stage of the pipeline.
type SortOrder int

const (
	DateDesc SortOrder = iota
	DateAsc
	TitleAsc
	TitleDesc
	Color
)

var sortOrderNames = map[SortOrder]string{
	DateDesc:  "date_desc",
	DateAsc:   "date_asc",
	TitleAsc:  "title_asc",
	TitleDesc: "title_desc",
	Color:     "color",
}

func (o SortOrder) String() string {
	if s, ok := sortOrderNames[o]; ok {
		return s
	}
	return fmt.Sprintf("SortOrder(%d)", int(o))
}

// ParseSortOrder accepts the names produced by String. Empty means DateDesc.
func ParseSortOrder(s string) (SortOrder, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DateDesc, nil
	}
	for o, name := range sortOrderNames {
		if name == s {
			return o, nil
		}
	}
	return DateDesc, fmt.Errorf("query: unknown sort %q", s)
}

// Options is the filter/sort configuration of a view.
type Options struct {
	SearchQuery string
	DateFilter  DateFilter
	// SelectedColor is only consulted under ByColor.
	SelectedColor *int64
	SortOrder     SortOrder
}

// Run applies opts using the current wall-clock time.
func Run(notes []models.Note, opts Options) []models.Note {
	return Apply(notes, opts, time.Now())
}

// Apply runs the search, category and sort stages, in that order, and
// returns a new slice.
func Apply(notes []models.Note, opts Options, now time.Time) []models.Note {
	out := make([]models.Note, 0, len(notes))
	needle := strings.ToLower(opts.SearchQuery)
	search := strings.TrimSpace(opts.SearchQuery) != ""
	keep := categoryPredicate(opts, now)

	for _, n := range notes {
		if search && !matchesText(n, needle) {
			continue
		}
		if keep != nil && !keep(n) {
			continue
		}
		out = append(out, n)
	}

	slices.SortStableFunc(out, comparator(opts.SortOrder))
	return out
}

func matchesText(n models.Note, lowerNeedle string) bool {
	return strings.Contains(strings.ToLower(n.Title), lowerNeedle) ||
		strings.Contains(strings.ToLower(n.Description), lowerNeedle)
}

// categoryPredicate returns nil when the stage passes everything through.
func categoryPredicate(opts Options, now time.Time) func(models.Note) bool {
	switch opts.DateFilter {
	case Today:
		from := StartOfDay(now).UnixMilli()
		to := StartOfDay(now).AddDate(0, 0, 1).UnixMilli()
		return func(n models.Note) bool {
			return n.Timestamp >= from && n.Timestamp < to
		}
	case ThisWeek:
		from := StartOfWeek(now).UnixMilli()
		return func(n models.Note) bool { return n.Timestamp >= from }
	case ThisMonth:
		from := StartOfMonth(now).UnixMilli()
		return func(n models.Note) bool { return n.Timestamp >= from }
	case ByColor:
		if opts.SelectedColor == nil {
			return nil
		}
		color := *opts.SelectedColor
		return func(n models.Note) bool { return n.Color == color }
	default:
		return nil
	}
}

func comparator(order SortOrder) func(a, b models.Note) int {
	switch order {
	case DateAsc:
		return func(a, b models.Note) int { return cmp.Compare(a.Timestamp, b.Timestamp) }
	case TitleAsc:
		return func(a, b models.Note) int {
			return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	case TitleDesc:
		return func(a, b models.Note) int {
			return strings.Compare(strings.ToLower(b.Title), strings.ToLower(a.Title))
		}
	case Color:
		return func(a, b models.Note) int { return cmp.Compare(a.Color, b.Color) }
	default:
		return func(a, b models.Note) int { return cmp.Compare(b.Timestamp, a.Timestamp) }
	}
}

// StartOfDay returns local midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns Monday 00:00 of t's week.
func StartOfWeek(t time.Time) time.Time {
	sinceMonday := (int(t.Weekday()) + 6) % 7
	return StartOfDay(t).AddDate(0, 0, -sinceMonday)
}

// StartOfMonth returns the 1st of t's month at 00:00.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}
