package composite

import (
	"fmt"
	"time"
)

// MonthDay is a calendar day independent of year.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay reads "MM-DD".
func ParseMonthDay(s string) (MonthDay, error) {
	t, err := time.Parse("01-02", s)
	if err != nil {
		return MonthDay{}, fmt.Errorf("failed to parse month-day %q: %w", s, err)
	}
	return MonthDay{Month: t.Month(), Day: t.Day()}, nil
}

func (m MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(m.Month), m.Day)
}

func (m MonthDay) ordinal() int {
	return int(m.Month)*100 + m.Day
}

// Window is an inclusive range of calendar days. A Start after End wraps
// across the new year.
type Window struct {
	Start MonthDay
	End   MonthDay
}

// FullYear covers every day.
var FullYear = Window{Start: MonthDay{time.January, 1}, End: MonthDay{time.December, 31}}

func (w Window) Contains(t time.Time) bool {
	d := MonthDay{Month: t.Month(), Day: t.Day()}.ordinal()
	s, e := w.Start.ordinal(), w.End.ordinal()
	if s <= e {
		return d >= s && d <= e
	}
	return d >= s || d <= e
}

func (w Window) String() string {
	return w.Start.String() + "/" + w.End.String()
}
