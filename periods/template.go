// Package periods computes canonical period boundaries for every leaderboard
// timeframe. Everything here is pure: the current time is always passed in.
package periods

import (
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/studio-leaderboards/models"
)

var ErrUnknownTimeframe = errors.New("unknown leaderboard timeframe")

// Fixed range used for ALL_TIME leaderboards. A single period lives for the
// whole lifetime of such a leaderboard.
var (
	AllTimeStart = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	AllTimeEnd   = time.Date(2100, time.January, 1, 0, 0, 0, 0, time.UTC)
)

const (
	AllTimeName    = "All Time"
	endOfDayNanos  = int(999 * time.Millisecond)
	weekNameLayout = "Jan 2, 2006"
)

// PeriodTemplate is the calendar slot a period should occupy.
type PeriodTemplate struct {
	StartDate time.Time
	EndDate   time.Time
	Name      string
}

// BuildPeriodTemplate maps a timeframe and "now" to the slot containing now.
// All arithmetic is done in UTC.
func BuildPeriodTemplate(timeframe models.Timeframe, now time.Time) (PeriodTemplate, error) {
	now = now.UTC()
	year, month, day := now.Date()

	switch timeframe {
	case models.TimeframeWeekly:
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // неделя идёт с понедельника по воскресенье
		}
		start := time.Date(year, month, day-(weekday-1), 0, 0, 0, 0, time.UTC)
		sy, sm, sd := start.Date()
		end := time.Date(sy, sm, sd+6, 23, 59, 59, endOfDayNanos, time.UTC)
		return PeriodTemplate{
			StartDate: start,
			EndDate:   end,
			Name:      "Week of " + start.Format(weekNameLayout),
		}, nil

	case models.TimeframeMonthly:
		return PeriodTemplate{
			StartDate: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(year, month+1, 0, 23, 59, 59, endOfDayNanos, time.UTC),
			Name:      fmt.Sprintf("%s %d", month.String(), year),
		}, nil

	case models.TimeframeQuarterly:
		quarter := (int(month) - 1) / 3
		startMonth := time.Month(quarter*3 + 1)
		return PeriodTemplate{
			StartDate: time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(year, startMonth+3, 0, 23, 59, 59, endOfDayNanos, time.UTC),
			Name:      fmt.Sprintf("Q%d %d", quarter+1, year),
		}, nil

	case models.TimeframeYearly:
		return PeriodTemplate{
			StartDate: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   time.Date(year, time.December, 31, 23, 59, 59, endOfDayNanos, time.UTC),
			Name:      fmt.Sprintf("%d", year),
		}, nil

	case models.TimeframeAllTime:
		return PeriodTemplate{
			StartDate: AllTimeStart,
			EndDate:   AllTimeEnd,
			Name:      AllTimeName,
		}, nil
	}

	return PeriodTemplate{}, fmt.Errorf("%w: %q", ErrUnknownTimeframe, timeframe)
}

// PeriodMatchesTemplate reports whether a stored period occupies exactly the
// slot described by tpl. A stale ACTIVE period is one that no longer matches
// the template built for the current time.
func PeriodMatchesTemplate(period *models.Period, tpl PeriodTemplate) bool {
	if period == nil {
		return false
	}
	return period.StartDate.Equal(tpl.StartDate) && period.EndDate.Equal(tpl.EndDate)
}

// Contains reports whether t falls inside the inclusive template bounds.
func (tpl PeriodTemplate) Contains(t time.Time) bool {
	return !t.Before(tpl.StartDate) && !t.After(tpl.EndDate)
}
