package core

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Scan lets Date read DATE columns (time.Time from Postgres) and the
// YYYY-MM-DD text SQLite stores.
func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = NewDate(v.Year(), int(v.Month()), v.Day())
	case string:
		return d.scanText(v)
	case []byte:
		return d.scanText(string(v))
	default:
		return fmt.Errorf("cannot scan %T into core.Date", src)
	}
	return nil
}

func (d *Date) scanText(s string) error {
	if s == "" {
		*d = Date{}
		return nil
	}
	if len(s) > len(time.DateOnly) {
		s = s[:len(time.DateOnly)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("scan date %q: %w", s, err)
	}
	*d = parsed
	return nil
}

// Value stores the date as YYYY-MM-DD, or NULL when empty.
func (d Date) Value() (driver.Value, error) {
	if d.IsEmpty() {
		return nil, nil
	}
	return d.ISO(), nil
}
