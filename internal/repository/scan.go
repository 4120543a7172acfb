package repository

import (
	"fmt"
	"time"
)

// dateValue reads a DATE (postgres) or TEXT (sqlite) column as YYYY-MM-DD.
type dateValue string

func (d *dateValue) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = ""
	case time.Time:
		*d = dateValue(v.Format("2006-01-02"))
	case string:
		*d = dateValue(firstN(v, 10))
	case []byte:
		*d = dateValue(firstN(string(v), 10))
	default:
		return fmt.Errorf("unsupported date type %T", src)
	}
	return nil
}

// sqliteTimeLayout has fixed-width fractions so TEXT timestamps sort correctly.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

var timestampLayouts = []string{
	sqliteTimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
}

// timeValue reads a TIMESTAMPTZ (postgres) or TEXT (sqlite) column.
type timeValue struct{ t *time.Time }

func (tv *timeValue) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		tv.t = nil
		return nil
	case time.Time:
		u := v.UTC()
		tv.t = &u
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			u := t.UTC()
			tv.t = &u
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
