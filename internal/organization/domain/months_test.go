package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 30, 0, 0, time.UTC)
}

func TestAddMonthClamped(t *testing.T) {
	cases := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"mid month", date(2025, time.March, 15), date(2025, time.April, 15)},
		{"jan 31 non-leap", date(2025, time.January, 31), date(2025, time.February, 28)},
		{"jan 31 leap", date(2024, time.January, 31), date(2024, time.February, 29)},
		{"mar 31 to apr 30", date(2025, time.March, 31), date(2025, time.April, 30)},
		{"dec wraps year", date(2025, time.December, 31), date(2026, time.January, 31)},
		{"feb 28 stays day 28", date(2025, time.February, 28), date(2025, time.March, 28)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, AddMonthClamped(tc.in))
		})
	}
}

func TestAddMonthClampedPreservesClockTime(t *testing.T) {
	in := time.Date(2025, time.January, 31, 23, 59, 58, 123, time.UTC)
	got := AddMonthClamped(in)
	require.Equal(t, 23, got.Hour())
	require.Equal(t, 59, got.Minute())
	require.Equal(t, 58, got.Second())
}
