package trino

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntervalYearMonth(t *testing.T) {
	got, err := ParseIntervalYearMonth("3-2")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Years)
	assert.Equal(t, 2, got.Months)
	assert.Equal(t, 38, got.TotalMonths())
}

func TestParseIntervalYearMonthNegative(t *testing.T) {
	got, err := ParseIntervalYearMonth("-3-2")
	require.NoError(t, err)
	assert.True(t, got.Negative)
	assert.Equal(t, -38, got.TotalMonths())
}

func TestParseIntervalDaySecond(t *testing.T) {
	got, err := ParseIntervalDaySecond("1 02:03:04.005")
	require.NoError(t, err)
	want := 24*time.Hour + 2*time.Hour + 3*time.Minute + 4*time.Second + 5*time.Millisecond
	assert.Equal(t, want, time.Duration(got))
}

func TestParseIntervalDaySecondNegative(t *testing.T) {
	got, err := ParseIntervalDaySecond("-1 00:00:00.000")
	require.NoError(t, err)
	assert.Equal(t, -24*time.Hour, time.Duration(got))
}

func TestParseIntervalDaySecondMalformed(t *testing.T) {
	_, err := ParseIntervalDaySecond("garbage")
	require.Error(t, err)
}
