// Package pgtypes provides Go types for PostgreSQL column types that the
// generated queries cannot map directly.
package pgtypes

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const (
	microsPerDay   = int64(24 * time.Hour / time.Microsecond)
	microsPerMonth = 30 * microsPerDay
)

// Interval maps a PostgreSQL INTERVAL column to a time.Duration.
// Months are approximated as 30 days.
type Interval struct {
	Duration time.Duration
	// Valid is false for NULL
	Valid bool
}

// NewInterval creates a non-NULL Interval
func NewInterval(d time.Duration) Interval {
	return Interval{Duration: d, Valid: true}
}

func fromPG(v pgtype.Interval) Interval {
	micros := v.Microseconds + int64(v.Days)*microsPerDay + int64(v.Months)*microsPerMonth
	return Interval{Duration: time.Duration(micros) * time.Microsecond, Valid: v.Valid}
}

// Scan implements sql.Scanner
func (i *Interval) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Interval{}
		return nil
	case pgtype.Interval:
		*i = fromPG(v)
		return nil
	case string:
		var pg pgtype.Interval
		if err := pg.Scan(v); err != nil {
			return fmt.Errorf("failed to parse interval %q: %w", v, err)
		}
		*i = fromPG(pg)
		return nil
	case []byte:
		return i.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Interval", src)
	}
}

// Value implements driver.Valuer. PostgreSQL normalizes the microseconds.
func (i Interval) Value() (driver.Value, error) {
	if !i.Valid {
		return nil, nil
	}
	return pgtype.Interval{Microseconds: i.Duration.Microseconds(), Valid: true}, nil
}

func (i Interval) String() string {
	if !i.Valid {
		return "NULL"
	}
	return i.Duration.String()
}
