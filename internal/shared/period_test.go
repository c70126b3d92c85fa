package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPeriodKeyAndDocStamp(t *testing.T) {
	p, err := NewPeriod(2025, 1)
	require.NoError(t, err)
	require.Equal(t, "2025-01", p.Key())
	require.Equal(t, "202501", p.DocStamp())
}

func TestNewPeriodRejectsBadMonth(t *testing.T) {
	_, err := NewPeriod(2025, 0)
	require.ErrorIs(t, err, ErrInvalidPeriod)
	_, err = NewPeriod(2025, 13)
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestParsePeriodKey(t *testing.T) {
	p, err := ParsePeriodKey("2024-12")
	require.NoError(t, err)
	require.Equal(t, Period{Year: 2024, Month: 12}, p)

	for _, bad := range []string{"2024-13", "24-01", "2024/01", "2024-1", ""} {
		_, err := ParsePeriodKey(bad)
		require.ErrorIs(t, err, ErrInvalidPeriod, "key %q", bad)
	}
}

func TestPeriodIsPast(t *testing.T) {
	now := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	require.True(t, Period{Year: 2025, Month: 2}.IsPast(now))
	require.True(t, Period{Year: 2024, Month: 12}.IsPast(now))
	require.False(t, Period{Year: 2025, Month: 3}.IsPast(now))
	require.False(t, Period{Year: 2025, Month: 4}.IsPast(now))
}

func TestRound2(t *testing.T) {
	require.Equal(t, 10.56, Round2(10.555))
	require.Equal(t, 0.0, Round2(0.001))
	require.True(t, SameAmount(1500.004, 1500.0))
	require.False(t, SameAmount(1500.01, 1500.0))
}
