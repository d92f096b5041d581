package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"sabore-analytics/internal/utils"
)

type Period string

const (
	PeriodToday   Period = "today"
	PeriodWeek    Period = "week"
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
	PeriodAll     Period = "all"
	PeriodCustom  Period = "custom"
)

var ErrInvalidPeriod = errors.New("invalid period")

// ResolvePeriod turns a named period into a [start, end] range relative to
// now. PeriodAll (or an empty period) yields zero times, meaning unbounded.
// Custom bare dates are whole days in now's location.
func ResolvePeriod(period Period, customStart, customEnd string, now time.Time) (time.Time, time.Time, error) {
	switch Period(strings.ToLower(strings.TrimSpace(string(period)))) {
	case "", PeriodAll:
		return time.Time{}, time.Time{}, nil
	case PeriodToday:
		return utils.StartOfDay(now), now, nil
	case PeriodWeek:
		return now.AddDate(0, 0, -7), now, nil
	case PeriodMonth:
		return utils.StartOfMonth(now), now, nil
	case PeriodQuarter:
		return now.AddDate(0, 0, -90), now, nil
	case PeriodYear:
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), now, nil
	case PeriodCustom:
		return customRange(customStart, customEnd, now.Location())
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
}

func customRange(customStart, customEnd string, loc *time.Location) (time.Time, time.Time, error) {
	if strings.TrimSpace(customStart) == "" || strings.TrimSpace(customEnd) == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: startDate and endDate are required for a custom period", ErrInvalidPeriod)
	}
	start, _, err := parseDateInput(customStart, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: startDate %q", ErrInvalidPeriod, customStart)
	}
	end, wholeDay, err := parseDateInput(customEnd, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: endDate %q", ErrInvalidPeriod, customEnd)
	}
	if wholeDay {
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: endDate is before startDate", ErrInvalidPeriod)
	}
	return start, end, nil
}

// parseDateInput accepts RFC 3339 or YYYY-MM-DD. wholeDay reports the latter.
func parseDateInput(value string, loc *time.Location) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, false, nil
	}
	parsed, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	return parsed, true, nil
}
