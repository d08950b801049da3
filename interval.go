package trino

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// IntervalYearMonth is a signed {years, months} interval, decoded from
// Trino's "interval year to month" columns (e.g. "3-2" or "-3-2").
type IntervalYearMonth struct {
	Years  int
	Months int
	Negative bool
}

// TotalMonths returns the signed total number of months.
func (i IntervalYearMonth) TotalMonths() int {
	total := i.Years*12 + i.Months
	if i.Negative {
		return -total
	}
	return total
}

func (i IntervalYearMonth) String() string {
	sign := ""
	if i.Negative {
		sign = "-"
	}
	return fmt.Sprintf("%s%d-%d", sign, i.Years, i.Months)
}

// ParseIntervalYearMonth parses the "[-]Y-M" wire form.
func ParseIntervalYearMonth(s string) (IntervalYearMonth, error) {
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return IntervalYearMonth{}, fmt.Errorf("trino: invalid interval year to month %q", s)
	}
	years, err := strconv.Atoi(parts[0])
	if err != nil {
		return IntervalYearMonth{}, fmt.Errorf("trino: invalid interval year to month %q: %w", s, err)
	}
	months, err := strconv.Atoi(parts[1])
	if err != nil {
		return IntervalYearMonth{}, fmt.Errorf("trino: invalid interval year to month %q: %w", s, err)
	}
	return IntervalYearMonth{Years: years, Months: months, Negative: negative}, nil
}

// IntervalDaySecond is a signed duration, decoded from Trino's
// "interval day to second" columns (e.g. "1 02:03:04.005" or
// "-1 02:03:04.005").
type IntervalDaySecond time.Duration

// ParseIntervalDaySecond parses the "[-]D HH:MM:SS.fff" wire form.
func ParseIntervalDaySecond(s string) (IntervalDaySecond, error) {
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}
	fields := strings.SplitN(s, " ", 2)
	if len(fields) != 2 {
		return 0, fmt.Errorf("trino: invalid interval day to second %q", s)
	}
	days, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("trino: invalid interval day to second %q: %w", s, err)
	}
	hms := strings.Split(fields[1], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("trino: invalid interval day to second %q", s)
	}
	hours, err := strconv.Atoi(hms[0])
	if err != nil {
		return 0, fmt.Errorf("trino: invalid interval day to second %q: %w", s, err)
	}
	minutes, err := strconv.Atoi(hms[1])
	if err != nil {
		return 0, fmt.Errorf("trino: invalid interval day to second %q: %w", s, err)
	}
	secStr, fracStr, _ := strings.Cut(hms[2], ".")
	seconds, err := strconv.Atoi(secStr)
	if err != nil {
		return 0, fmt.Errorf("trino: invalid interval day to second %q: %w", s, err)
	}
	var nanos int
	if fracStr != "" {
		padded := (fracStr + "000000000")[:9]
		n, err := strconv.Atoi(padded)
		if err != nil {
			return 0, fmt.Errorf("trino: invalid interval day to second %q: %w", s, err)
		}
		nanos = n
	}
	d := time.Duration(days)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(nanos)
	if negative {
		d = -d
	}
	return IntervalDaySecond(d), nil
}

func (i IntervalDaySecond) String() string { return time.Duration(i).String() }
