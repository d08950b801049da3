package trino

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// timestampTZPattern preserves sub-second fractions up to 7 fractional
// digits and accepts either a "UTC" literal or a "+HH:MM"/"-HH:MM"
// offset, per spec §4.4.
var timestampTZPattern = regexp.MustCompile(
	`^(\d{4}-\d{2}-\d{2}) (\d{2}):(\d{2}):(\d{2})(?:\.(\d{1,9}))?\s+(UTC|[+-]\d{2}:\d{2})$`)

// TimeOfDay is a time-of-day value with no associated date, decoded from
// Trino's "time" columns.
type TimeOfDay time.Duration

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, d/time.Millisecond)
}

// ParseTimeOfDay parses "hh:mm:ss.fff".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	main, fracStr, _ := strings.Cut(s, ".")
	hms := strings.Split(main, ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("trino: invalid time literal %q", s)
	}
	h, err1 := strconv.Atoi(hms[0])
	m, err2 := strconv.Atoi(hms[1])
	sec, err3 := strconv.Atoi(hms[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, fmt.Errorf("trino: invalid time literal %q", s)
	}
	var nanos int
	if fracStr != "" {
		if len(fracStr) > 9 {
			fracStr = fracStr[:9]
		}
		padded := fracStr + strings.Repeat("0", 9-len(fracStr))
		n, err := strconv.Atoi(padded)
		if err != nil {
			return 0, fmt.Errorf("trino: invalid time literal %q", s)
		}
		nanos = n
	}
	return TimeOfDay(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second + time.Duration(nanos)), nil
}

// ParseLocalDate parses "YYYY-MM-DD" into a UTC midnight time.Time; the
// zone carries no meaning beyond "this is a calendar date", following
// the teacher's convention of representing dateless/timezoneless
// server values as UTC time.Time (see stringToValue's "date" case).
func ParseLocalDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// ParseLocalDateTime performs a lossy parse of a "timestamp" column at
// whatever precision the server supplied (up to 9 fractional digits);
// there is no time zone attached.
func ParseLocalDateTime(s string) (time.Time, error) {
	datePart, timePart, ok := strings.Cut(s, " ")
	if !ok {
		return time.Time{}, fmt.Errorf("trino: invalid timestamp literal %q", s)
	}
	d, err := ParseLocalDate(datePart)
	if err != nil {
		return time.Time{}, fmt.Errorf("trino: invalid timestamp literal %q: %w", s, err)
	}
	tod, err := ParseTimeOfDay(timePart)
	if err != nil {
		return time.Time{}, fmt.Errorf("trino: invalid timestamp literal %q: %w", s, err)
	}
	return d.Add(time.Duration(tod)), nil
}

// ParseTimestampWithTimeZone decodes a "timestamp with time zone" value
// into an offset-bearing instant. precision, when >= 0, rounds the
// fractional-seconds component to that many digits (half rounds up),
// matching the coordinator's declared column precision; -1 means "use
// whatever precision the wire value carries".
func ParseTimestampWithTimeZone(s string, precision int) (time.Time, error) {
	m := timestampTZPattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, newDecodeError("timestamp with time zone", fmt.Sprintf("malformed timestamp with time zone %q", s), nil)
	}
	datePart, hourStr, minStr, secStr, fracStr, zonePart := m[1], m[2], m[3], m[4], m[5], m[6]

	if len(fracStr) > 7 {
		return time.Time{}, newDecodeError("timestamp with time zone",
			fmt.Sprintf("fractional seconds %q exceeds 7 digits", fracStr), nil)
	}

	loc, err := parseTZOffset(zonePart)
	if err != nil {
		return time.Time{}, newDecodeError("timestamp with time zone", err.Error(), err)
	}

	d, err := ParseLocalDate(datePart)
	if err != nil {
		return time.Time{}, newDecodeError("timestamp with time zone", err.Error(), err)
	}
	hour, _ := strconv.Atoi(hourStr)
	minute, _ := strconv.Atoi(minStr)
	second, _ := strconv.Atoi(secStr)

	base := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, second, 0, loc)

	nanos, err := roundFractionToNanos(fracStr, precision)
	if err != nil {
		return time.Time{}, newDecodeError("timestamp with time zone", err.Error(), err)
	}
	return base.Add(time.Duration(nanos)), nil
}

func parseTZOffset(zone string) (*time.Location, error) {
	if zone == "UTC" {
		return time.UTC, nil
	}
	sign := 1
	if zone[0] == '-' {
		sign = -1
	}
	hh, err1 := strconv.Atoi(zone[1:3])
	mm, err2 := strconv.Atoi(zone[4:6])
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("invalid time zone offset %q", zone)
	}
	offsetSeconds := sign * (hh*3600 + mm*60)
	return time.FixedZone(zone, offsetSeconds), nil
}

// roundFractionToNanos converts a fractional-seconds digit string (up
// to 9 digits, already validated shorter for the TZ path) to a
// nanosecond count, rounding half-up to `precision` digits when
// precision is non-negative and shorter than the supplied fraction.
// Overflow from rounding (e.g. ".996" rounded to 2 digits) is returned
// as a full-second-or-more nanosecond count and is expected to be
// applied via time.Time.Add, which normalizes the carry.
func roundFractionToNanos(fracStr string, precision int) (int64, error) {
	if fracStr == "" {
		return 0, nil
	}
	if precision < 0 || precision >= len(fracStr) {
		p := precision
		if p < 0 {
			p = len(fracStr)
		}
		padded := fracStr + strings.Repeat("0", p-len(fracStr))
		padded = padded + strings.Repeat("0", 9-len(padded))
		v, err := strconv.ParseInt(padded, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid fractional seconds %q", fracStr)
		}
		return v, nil
	}
	kept := fracStr[:precision]
	keptVal, err := strconv.ParseInt(kept, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid fractional seconds %q", fracStr)
	}
	if fracStr[precision] >= '5' {
		keptVal++
	}
	scale := int64(1)
	for i := 0; i < 9-precision; i++ {
		scale *= 10
	}
	return keptVal * scale, nil
}
