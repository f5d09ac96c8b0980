// Package timecode parses [[HH:]MM:]SS[.mmm] timestamps and computes the
// segment duration handed to ffmpeg.
package timecode

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidTimestamp is matched by every InvalidTimestampError via errors.Is.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// InvalidTimestampError reports a malformed or out-of-range timestamp.
type InvalidTimestampError struct {
	Timestamp string
}

func (e *InvalidTimestampError) Error() string {
	return "invalid timestamp: " + e.Timestamp
}

func (e *InvalidTimestampError) Is(target error) bool {
	return target == ErrInvalidTimestamp
}

// Parse converts a timestamp to seconds. Hours and minutes must be integers,
// seconds may carry a fraction. Minutes must be in [0,59] and seconds in
// [0,60); 60 seconds has to be written as a full minute.
func Parse(ts string) (float64, error) {
	h, m, s := "0", "0", ts
	if i := strings.LastIndex(s, ":"); i >= 0 {
		m, s = s[:i], s[i+1:]
	}
	if i := strings.LastIndex(m, ":"); i >= 0 {
		h, m = m[:i], m[i+1:]
	}
	if strings.Contains(h, ":") {
		return 0, &InvalidTimestampError{Timestamp: ts}
	}

	hours, err := strconv.Atoi(h)
	if err != nil || hours < 0 {
		return 0, &InvalidTimestampError{Timestamp: ts}
	}
	minutes, err := strconv.Atoi(m)
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, &InvalidTimestampError{Timestamp: ts}
	}
	// ParseFloat also takes hex floats; seconds are decimal only.
	if strings.ContainsAny(s, "xXpP") {
		return 0, &InvalidTimestampError{Timestamp: ts}
	}
	seconds, err := strconv.ParseFloat(s, 64)
	// NaN fails both comparisons, so it is rejected by !(seconds < 60).
	if err != nil || seconds < 0 || !(seconds < 60) {
		return 0, &InvalidTimestampError{Timestamp: ts}
	}

	return float64(hours)*3600 + float64(minutes)*60 + seconds, nil
}

// Duration returns markout minus markin in seconds, rounded and formatted to
// three decimals. Zero and negative spans are returned as-is.
func Duration(markin, markout string) (string, error) {
	in, err := Parse(markin)
	if err != nil {
		return "", err
	}
	out, err := Parse(markout)
	if err != nil {
		return "", err
	}
	return FormatSeconds(out - in), nil
}

// FormatSeconds renders seconds with exactly three decimal digits, rounding
// the exact binary value (1.0005 is stored just below the half and gives 1.000).
func FormatSeconds(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 3, 64)
}
