package repo

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// dateLayout is fixed width so that text order in SQLite matches time order.
const dateLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Date time.Time

func now() Date {
	return Date(time.Now().UTC())
}

func (d Date) Value() (driver.Value, error) {
	return time.Time(d).UTC().Format(dateLayout), nil
}

func (d *Date) Scan(value any) error {
	if value == nil {
		*d = Date(time.Time{})
		return nil
	}

	if str, ok := value.(string); ok {
		t, err := parseDate(str)
		if err != nil {
			return err
		}
		*d = Date(t)
		return nil
	}

	if t, ok := value.(time.Time); ok {
		*d = Date(t.UTC())
		return nil
	}

	return fmt.Errorf("cannot scan type %T into Date", value)
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{dateLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as Date", s)
}

func (d Date) String() string {
	return time.Time(d).UTC().Format(dateLayout)
}

func (d Date) Time() time.Time {
	return time.Time(d)
}

func datePtr(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time()
	return &t
}

// nullable turns a nil pointer into an untyped nil so goqu renders NULL.
func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
