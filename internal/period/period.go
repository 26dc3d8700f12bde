// Package period computes reporting periods. Reports are tagged with the
// CDC/MMWR epidemiological week: weeks run Sunday to Saturday and week 1 is
// the first week holding at least four days of the calendar year.
package period

import (
	"fmt"
	"time"
	_ "time/tzdata" // zone data for minimal container images
)

// Period is an epi week of an epi year.
type Period struct {
	Year int `json:"year"`
	Week int `json:"week"`
}

func (p Period) String() string {
	return fmt.Sprintf("%d-W%02d", p.Year, p.Week)
}

// EpiWeek returns the epi week containing t, evaluated in t's location.
func EpiWeek(t time.Time) Period {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	sunday := day.AddDate(0, 0, -int(day.Weekday()))
	year := sunday.AddDate(0, 0, 3).Year()

	start := yearStart(year)
	week := int(sunday.Sub(start).Hours()/24)/7 + 1
	return Period{Year: year, Week: week}
}

// yearStart is the Sunday starting week 1, i.e. the Sunday on or before Jan 4.
func yearStart(year int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	return jan4.AddDate(0, 0, -int(jan4.Weekday()))
}

// Clock yields the current reporting period in a fixed time zone.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// NewClock creates a Clock for the named IANA zone (e.g. "Africa/Lagos").
func NewClock(zone string) (*Clock, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	return &Clock{loc: loc, now: time.Now}, nil
}

// UTCClock reads the wall clock in UTC.
func UTCClock() *Clock {
	return &Clock{loc: time.UTC, now: time.Now}
}

// FixedClock always reports the period containing t. Used by tests and the
// local chat tool.
func FixedClock(t time.Time) *Clock {
	return &Clock{loc: t.Location(), now: func() time.Time { return t }}
}

// Now returns the current time in the clock's zone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Current returns the epi week for the current time.
func (c *Clock) Current() Period {
	return EpiWeek(c.Now())
}

// Start returns midnight of the Sunday opening the period, in loc.
func (p Period) Start(loc *time.Location) time.Time {
	s := yearStart(p.Year).AddDate(0, 0, 7*(p.Week-1))
	return time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc)
}
