package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerkeep/recurring-service/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNext(t *testing.T) {
	tests := []struct {
		name      string
		reference time.Time
		frequency models.Frequency
		want      time.Time
	}{
		{"daily", date(2025, time.March, 15), models.FrequencyDaily, date(2025, time.March, 16)},
		{"daily across month end", date(2025, time.January, 31), models.FrequencyDaily, date(2025, time.February, 1)},
		{"weekly", date(2025, time.March, 15), models.FrequencyWeekly, date(2025, time.March, 22)},
		{"weekly across year end", date(2024, time.December, 30), models.FrequencyWeekly, date(2025, time.January, 6)},
		{"monthly", date(2025, time.March, 15), models.FrequencyMonthly, date(2025, time.April, 15)},
		{"monthly clamps jan 31 to feb 28", date(2025, time.January, 31), models.FrequencyMonthly, date(2025, time.February, 28)},
		{"monthly clamps jan 31 to feb 29 in leap year", date(2024, time.January, 31), models.FrequencyMonthly, date(2024, time.February, 29)},
		{"monthly clamps may 31 to jun 30", date(2025, time.May, 31), models.FrequencyMonthly, date(2025, time.June, 30)},
		{"monthly from december", date(2025, time.December, 15), models.FrequencyMonthly, date(2026, time.January, 15)},
		{"yearly", date(2025, time.March, 15), models.FrequencyYearly, date(2026, time.March, 15)},
		{"yearly clamps feb 29 to feb 28", date(2024, time.February, 29), models.FrequencyYearly, date(2025, time.February, 28)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Next(tt.reference, tt.frequency)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
			assert.True(t, got.After(tt.reference), "next occurrence must be strictly after the reference")
		})
	}
}

func TestNextPreservesTimeOfDay(t *testing.T) {
	reference := time.Date(2025, time.January, 31, 9, 30, 0, 0, time.UTC)

	got, err := Next(reference, models.FrequencyMonthly)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.February, 28, 9, 30, 0, 0, time.UTC), got)
}

func TestNextInvalidFrequency(t *testing.T) {
	_, err := Next(date(2025, time.March, 15), models.Frequency("fortnightly"))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFrequency)
}
