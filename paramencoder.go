package trino

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalDateTime is a caller-bound parameter with no attached time zone,
// encoded as an unqualified `timestamp` literal. Distinguishing this
// from OffsetDateTime mirrors the host-language DateTime/DateTimeOffset
// split spec §8's S2 scenario exercises.
type LocalDateTime time.Time

// OffsetDateTime is a caller-bound parameter with an attached UTC
// offset, encoded as a `timestamp with time zone` literal.
type OffsetDateTime time.Time

const paramTimestampLayout = "2006-01-02 15:04:05.000"

// EncodeParam renders a host value as the SQL literal expression Trino
// accepts inside `EXECUTE ... USING ...`, per spec §4.4.
func EncodeParam(v any) (string, error) {
	if v == nil {
		return "NULL", nil
	}
	switch val := v.(type) {
	case string:
		return quoteSQLString(val), nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case []byte:
		return fmt.Sprintf("X'%s'", strings.ToUpper(hex.EncodeToString(val))), nil
	case uuid.UUID:
		return quoteSQLString(val.String()), nil
	case LocalDateTime:
		return fmt.Sprintf("timestamp '%s'", time.Time(val).Format(paramTimestampLayout)), nil
	case OffsetDateTime:
		t := time.Time(val)
		return fmt.Sprintf("\"timestamp with time zone\" '%s %s'", t.Format(paramTimestampLayout), formatOffset(t)), nil
	case time.Time:
		// A bare time.Time is treated as carrying a meaningful offset,
		// the safer default since Go always attaches a *Location.
		return EncodeParam(OffsetDateTime(val))
	case IntervalDaySecond:
		return quoteSQLString(formatIntervalDaySecond(val)), nil
	case IntervalYearMonth:
		return quoteSQLString(val.String()), nil
	case Decimal:
		return val.String(), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return fmt.Sprintf("%v", val), nil
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			enc, err := EncodeParam(elem)
			if err != nil {
				return "", err
			}
			parts[i] = enc
		}
		return "(" + strings.Join(parts, ", ") + ")", nil
	default:
		return fmt.Sprintf("%v", val), nil
	}
}

func quoteSQLString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func formatOffset(t time.Time) string {
	_, offsetSeconds := t.Zone()
	sign := "+"
	if offsetSeconds < 0 {
		sign = "-"
		offsetSeconds = -offsetSeconds
	}
	hh := offsetSeconds / 3600
	mm := (offsetSeconds % 3600) / 60
	return fmt.Sprintf("%s%02d:%02d", sign, hh, mm)
}

func formatIntervalDaySecond(d IntervalDaySecond) string {
	dur := time.Duration(d)
	negative := dur < 0
	if negative {
		dur = -dur
	}
	days := dur / (24 * time.Hour)
	dur -= days * 24 * time.Hour
	hours := dur / time.Hour
	dur -= hours * time.Hour
	minutes := dur / time.Minute
	dur -= minutes * time.Minute
	seconds := dur / time.Second
	dur -= seconds * time.Second
	millis := dur / time.Millisecond
	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%s%d %02d:%02d:%02d.%03d", sign, days, hours, minutes, seconds, millis)
}
