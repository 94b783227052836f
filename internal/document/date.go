package document

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Date is a calendar day. JSON accepts "2006-01-02" or RFC 3339 and
// renders "2006-01-02"; the column holds midnight UTC.
type Date struct {
	time.Time
}

// NewDate returns the day of t.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses "2006-01-02" or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return NewDate(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: bad date %q", ErrInvalidDocument, s)
	}
	return NewDate(t), nil
}

func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// MarshalJSON renders the day.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts null, "", a day or a timestamp.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil || *s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(*s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner.
func (d *Date) Scan(value any) error {
	switch v := value.(type) {
	case []byte:
		return d.scanText(string(v))
	case string:
		return d.scanText(v)
	}
	var nt sql.NullTime
	if err := nt.Scan(value); err != nil {
		return err
	}
	if !nt.Valid {
		*d = Date{}
		return nil
	}
	*d = NewDate(nt.Time)
	return nil
}

func (d *Date) scanText(s string) error {
	if len(s) >= len(time.DateOnly) {
		if t, err := time.Parse(time.DateOnly, s[:len(time.DateOnly)]); err == nil {
			*d = NewDate(t)
			return nil
		}
	}
	return fmt.Errorf("scanning date %q", s)
}

// Value implements driver.Valuer.
func (d Date) Value() (driver.Value, error) {
	return NewDate(d.Time).Time, nil
}

// GormDataType maps Date to a date column.
func (Date) GormDataType() string {
	return "date"
}

// AddMonthsDays moves d forward by whole months, then days.
func (d Date) AddMonthsDays(months, days int) Date {
	return NewDate(d.AddDate(0, months, days))
}
