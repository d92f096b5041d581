package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePeriod(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	now := time.Date(2024, 5, 15, 14, 30, 0, 0, loc)

	tests := []struct {
		period    Period
		wantStart time.Time
	}{
		{PeriodToday, time.Date(2024, 5, 15, 0, 0, 0, 0, loc)},
		{PeriodWeek, time.Date(2024, 5, 8, 14, 30, 0, 0, loc)},
		{PeriodMonth, time.Date(2024, 5, 1, 0, 0, 0, 0, loc)},
		{PeriodQuarter, time.Date(2024, 2, 15, 14, 30, 0, 0, loc)},
		{PeriodYear, time.Date(2024, 1, 1, 0, 0, 0, 0, loc)},
		{"MONTH", time.Date(2024, 5, 1, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			start, end, err := ResolvePeriod(tt.period, "", "", now)
			require.NoError(t, err)
			assert.True(t, tt.wantStart.Equal(start), "start %s", start)
			assert.True(t, now.Equal(end))
		})
	}

	for _, period := range []Period{"", PeriodAll} {
		start, end, err := ResolvePeriod(period, "", "", now)
		require.NoError(t, err)
		assert.True(t, start.IsZero())
		assert.True(t, end.IsZero())
	}
}

func TestResolveCustomPeriod(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	now := time.Date(2024, 5, 15, 14, 30, 0, 0, loc)

	start, end, err := ResolvePeriod(PeriodCustom, "2024-04-01", "2024-04-30", now)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 4, 1, 0, 0, 0, 0, loc).Equal(start))
	assert.True(t, time.Date(2024, 4, 30, 23, 59, 59, 999999999, loc).Equal(end))

	start, end, err = ResolvePeriod(PeriodCustom, "2024-04-01T10:00:00Z", "2024-04-01T18:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour, end.Sub(start))

	bad := [][2]string{
		{"", "2024-04-30"},
		{"2024-04-01", ""},
		{"01/04/2024", "2024-04-30"},
		{"2024-04-01", "nope"},
		{"2024-04-30", "2024-04-01"},
	}
	for _, pair := range bad {
		_, _, err := ResolvePeriod(PeriodCustom, pair[0], pair[1], now)
		assert.ErrorIs(t, err, ErrInvalidPeriod, "%v", pair)
	}

	_, _, err = ResolvePeriod("fortnight", "", "", now)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}
