package ido

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// dateLayout pairs a parse layout with the zone assumed when the input has none.
type dateLayout struct {
	layout string
	loc    *time.Location // nil = zone comes from the input
}

// Date-only strings are UTC and zone-less date-times are local time, which is
// how the deploy configs written for the Hardhat scripts were interpreted.
var dateLayouts = []dateLayout{
	{layout: time.RFC3339Nano},
	{layout: "2006-01-02", loc: time.UTC},
	{layout: "2006-01-02T15:04:05"},
	{layout: "2006-01-02T15:04"},
	{layout: "2006-01-02 15:04:05"},
	{layout: "2006-01-02 15:04"},
}

// ParseDate parses a calendar date/time string using the accepted layouts.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, l := range dateLayouts {
		loc := l.loc
		if loc == nil {
			loc = time.Local
		}
		if t, err := time.ParseInLocation(l.layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q (want RFC 3339, YYYY-MM-DD or YYYY-MM-DDTHH:MM:SS)", s)
}

// NormalizeDate converts a calendar date string to whole unix seconds,
// rounding the millisecond epoch to the nearest second (halves round up).
func NormalizeDate(s string) (*big.Int, error) {
	t, err := ParseDate(s)
	if err != nil {
		return nil, err
	}
	return big.NewInt(UnixSecondsRounded(t)), nil
}

// UnixSecondsRounded returns round(t.UnixMilli() / 1000).
func UnixSecondsRounded(t time.Time) int64 {
	ms := t.UnixMilli() + 500
	q := ms / 1000
	if ms%1000 < 0 {
		q--
	}
	return q
}
