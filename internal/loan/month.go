package loan

import (
	"fmt"
	"time"
)

// Month is a calendar month at monthly granularity, encoded as
// year*12 + (month-1). The zero value is January of year 0 and is treated
// as "unset".
type Month int

// monthLayouts are the accepted textual forms, in parse order. The last two
// are the LendingClub export forms ("Dec-2011", "Dec-11").
var monthLayouts = []string{"2006-01", "Jan-2006", "Jan-06"}

// ParseMonth parses a calendar month from its textual form.
func ParseMonth(s string) (Month, error) {
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), nil
		}
	}
	return 0, fmt.Errorf("unparseable month %q", s)
}

// MonthOf returns the Month containing t.
func MonthOf(t time.Time) Month {
	return Month(t.Year()*12 + int(t.Month()) - 1)
}

// IsZero reports whether m is the unset value.
func (m Month) IsZero() bool {
	return m == 0
}

// Year returns the calendar year.
func (m Month) Year() int {
	return int(m) / 12
}

// MonthOfYear returns the month within the year (1-12).
func (m Month) MonthOfYear() time.Month {
	return time.Month(int(m)%12 + 1)
}

// Add returns the month n months after m.
func (m Month) Add(n int) Month {
	return m + Month(n)
}

// Sub returns the number of months from o to m.
func (m Month) Sub(o Month) int {
	return int(m - o)
}

// Time returns the first day of the month in UTC.
func (m Month) Time() time.Time {
	return time.Date(m.Year(), m.MonthOfYear(), 1, 0, 0, 0, 0, time.UTC)
}

// String renders the month as "2006-01".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year(), int(m.MonthOfYear()))
}

// MarshalText implements encoding.TextMarshaler.
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Month) UnmarshalText(data []byte) error {
	parsed, err := ParseMonth(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
