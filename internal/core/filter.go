package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	NoDateBucket DateBucket = ""
	Today        DateBucket = "today"
	ThisWeek     DateBucket = "week"
	ThisMonth    DateBucket = "month"
)

type (
	DateBucket string

	// Clock returns the current moment; handlers take one so tests can pin "now".
	Clock func() time.Time

	// Filter selects records for the list, the report and exports.
	// Zero-valued fields are inactive.
	Filter struct {
		Category   string
		DateBucket DateBucket
		Person     string
	}
)

// ParseDateBucket accepts the English keys and the Portuguese labels used in
// query strings.
func ParseDateBucket(s string) (DateBucket, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "todos":
		return NoDateBucket, nil
	case "today", "hoje":
		return Today, nil
	case "week", "semana":
		return ThisWeek, nil
	case "month", "mes", "mês":
		return ThisMonth, nil
	default:
		return NoDateBucket, fmt.Errorf("unknown date bucket %q", s)
	}
}

// IsZero reports whether no filter is active.
func (f Filter) IsZero() bool {
	return f.Category == "" && f.DateBucket == NoDateBucket && f.Person == ""
}

// Range returns the inclusive day interval a bucket covers at now.
func (b DateBucket) Range(now time.Time) (from, to Date, ok bool) {
	today := DateOf(now)
	switch b {
	case Today:
		return today, today, true
	case ThisWeek:
		// time.Weekday starts on Sunday; shift so Monday is 0.
		offset := (int(today.Weekday()) + 6) % 7
		return Date{Time: today.AddDate(0, 0, -offset)}, today, true
	case ThisMonth:
		return NewDate(today.Year(), int(today.Month()), 1), today, true
	default:
		return Date{}, Date{}, false
	}
}

// Contains reports whether d falls inside the bucket at now. An empty date
// never matches an active bucket.
func (b DateBucket) Contains(d Date, now time.Time) bool {
	from, to, ok := b.Range(now)
	if !ok {
		return true
	}
	if d.IsEmpty() {
		return false
	}
	day := DateOf(d.Time)
	return !day.Before(from.Time) && !day.After(to.Time)
}

// Match reports whether r satisfies every active filter. A record missing the
// field an active filter looks at never matches.
func (f Filter) Match(r Record, now time.Time) bool {
	if f.Category != "" && r.Categoria != f.Category {
		return false
	}
	if f.DateBucket != NoDateBucket && !f.DateBucket.Contains(r.Data, now) {
		return false
	}
	if f.Person != "" {
		key := PersonKey(r.Celular)
		if key == "" || key != f.Person {
			return false
		}
	}
	return true
}

// ApplyFilter returns the records matching f in input order. The input slice
// is never modified.
func ApplyFilter(records []Record, f Filter, now time.Time) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r, now) {
			out = append(out, r)
		}
	}
	return out
}
