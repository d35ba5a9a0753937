package ido

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// NormalizeDate
// ---------------------------------------------------------------------------

func TestNormalizeDateRFC3339UTC(t *testing.T) {
	got, err := NormalizeDate("2023-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, int64(1672531200), got.Int64())
}

func TestNormalizeDateWithOffset(t *testing.T) {
	got, err := NormalizeDate("2023-01-01T02:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, int64(1672531200), got.Int64())
}

func TestNormalizeDateDateOnlyIsUTC(t *testing.T) {
	got, err := NormalizeDate("2023-01-01")
	require.NoError(t, err)
	assert.Equal(t, int64(1672531200), got.Int64())
}

func TestNormalizeDateZonelessIsLocal(t *testing.T) {
	want := time.Date(2023, 6, 15, 12, 30, 0, 0, time.Local).Unix()

	got, err := NormalizeDate("2023-06-15T12:30:00")
	require.NoError(t, err)
	assert.Equal(t, want, got.Int64())

	got, err = NormalizeDate("2023-06-15 12:30")
	require.NoError(t, err)
	assert.Equal(t, want, got.Int64())
}

func TestNormalizeDateTrimsWhitespace(t *testing.T) {
	got, err := NormalizeDate("  2023-01-01T00:00:00Z\n")
	require.NoError(t, err)
	assert.Equal(t, int64(1672531200), got.Int64())
}

func TestNormalizeDateRounding(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"2023-01-01T00:00:00.499Z", 1672531200},
		{"2023-01-01T00:00:00.500Z", 1672531201},
		{"2023-01-01T00:00:00.999Z", 1672531201},
		{"1970-01-01T00:00:00Z", 0},
		{"1969-12-31T23:59:59.500Z", 0},
		{"1969-12-31T23:59:59.400Z", -1},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizeDate(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Int64())
		})
	}
}

func TestNormalizeDateRoundTrip(t *testing.T) {
	for _, secs := range []int64{0, 1, 1672531200, 1700000000, 4102444800} {
		date := time.Unix(secs, 0).UTC().Format(time.RFC3339)
		got, err := NormalizeDate(date)
		require.NoError(t, err)
		assert.Equal(t, secs, got.Int64(), date)
	}
}

func TestNormalizeDateRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "   ", "tomorrow", "2023-13-01", "01/02/2023", "1672531200"} {
		_, err := NormalizeDate(in)
		assert.Error(t, err, "input %q", in)
	}
}

// ---------------------------------------------------------------------------
// UnixSecondsRounded
// ---------------------------------------------------------------------------

func TestUnixSecondsRoundedIgnoresSubMillisecond(t *testing.T) {
	ts := time.Unix(100, 499_999_999)
	assert.Equal(t, int64(100), UnixSecondsRounded(ts))
}
