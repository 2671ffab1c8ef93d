package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/ledgerkeep/recurring-service/internal/models"
)

// ErrInvalidFrequency is returned for a frequency outside the known set
var ErrInvalidFrequency = errors.New("invalid frequency")

// Next computes the next occurrence strictly after reference for the given
// frequency. Month and year steps are calendar-correct: the day of month is
// clamped to the target month's last day (Jan 31 + 1 month = Feb 28/29)
// instead of rolling over like time.AddDate does.
func Next(reference time.Time, freq models.Frequency) (time.Time, error) {
	switch freq {
	case models.FrequencyDaily:
		return reference.AddDate(0, 0, 1), nil
	case models.FrequencyWeekly:
		return reference.AddDate(0, 0, 7), nil
	case models.FrequencyMonthly:
		return addMonths(reference, 1), nil
	case models.FrequencyYearly:
		return addYears(reference, 1), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, freq)
	}
}

func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	// normalize the target month first, then clamp the day
	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func addYears(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	if last := daysIn(year+n, month); day > last {
		day = last
	}
	return time.Date(year+n, month, day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
