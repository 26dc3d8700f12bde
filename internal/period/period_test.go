package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestEpiWeek(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want Period
	}{
		{"mid june 2014", date(2014, time.June, 18), Period{2014, 25}},
		{"week 25 sunday", date(2014, time.June, 15), Period{2014, 25}},
		{"week 25 saturday", date(2014, time.June, 21), Period{2014, 25}},
		{"first week starts in december", date(2013, time.December, 29), Period{2014, 1}},
		{"53 week year spills into january", date(2015, time.January, 1), Period{2014, 53}},
		{"2015 week 1", date(2015, time.January, 4), Period{2015, 1}},
		{"week 1 on jan 3 sunday", date(2016, time.January, 3), Period{2016, 1}},
		{"late december of short year", date(2015, time.December, 31), Period{2015, 52}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EpiWeek(tt.in))
		})
	}
}

func TestPeriodString(t *testing.T) {
	assert.Equal(t, "2014-W05", Period{Year: 2014, Week: 5}.String())
}

func TestClockUsesZone(t *testing.T) {
	c, err := NewClock("Africa/Lagos")
	require.NoError(t, err)

	// Saturday 23:30 UTC is already Sunday in Lagos (UTC+1).
	c.now = func() time.Time { return time.Date(2014, time.June, 21, 23, 30, 0, 0, time.UTC) }
	assert.Equal(t, Period{2014, 26}, c.Current())
}

func TestNewClockRejectsUnknownZone(t *testing.T) {
	_, err := NewClock("Mars/Olympus")
	assert.Error(t, err)
}

func TestPeriodStart(t *testing.T) {
	lagos, err := time.LoadLocation("Africa/Lagos")
	require.NoError(t, err)

	start := Period{Year: 2014, Week: 25}.Start(lagos)
	assert.Equal(t, time.Date(2014, time.June, 15, 0, 0, 0, 0, lagos), start)
	assert.Equal(t, time.Sunday, start.Weekday())
	assert.Equal(t, Period{Year: 2014, Week: 25}, EpiWeek(start))

	assert.Equal(t, time.Date(2014, time.December, 28, 0, 0, 0, 0, time.UTC), Period{Year: 2014, Week: 53}.Start(time.UTC))
}

func TestUTCClockFollowsWallClock(t *testing.T) {
	c := UTCClock()
	assert.Equal(t, time.UTC, c.Now().Location())

	c.now = func() time.Time { return date(2014, time.June, 18) }
	assert.Equal(t, Period{2014, 25}, c.Current())
	c.now = func() time.Time { return date(2014, time.June, 25) }
	assert.Equal(t, Period{2014, 26}, c.Current())
}
