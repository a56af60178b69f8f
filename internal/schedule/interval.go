package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

// Interval bucket boundaries in seconds.
const (
	Minute = 60
	Hour   = 3600
	Day    = 86400
	Week   = 604800
	Month  = 2592000
	Year   = 31536000
)

var aliasIntervals = map[string]int{
	"@yearly":   Year,
	"@annually": Year,
	"@monthly":  Month,
	"@weekly":   Week,
	"@daily":    Day,
	"@midnight": Day,
	"@hourly":   Hour,
}

var stepPattern = regexp.MustCompile(`^\*/(\d+)$`)

func isNumeric(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

// ExpectedInterval maps a cron expression to an approximate interval in
// seconds by classifying its structural pattern. It deliberately does not
// simulate the cron engine to find real next-fire times; for irregular
// schedules the result is a coarse bucket, with daily as the fallback.
func ExpectedInterval(expr string) int {
	expr = strings.TrimSpace(expr)

	if v, ok := aliasIntervals[expr]; ok {
		return v
	}
	if strings.HasPrefix(expr, "@") {
		return Day
	}

	fields := strings.Fields(expr)
	if len(fields) < 5 {
		return Day
	}
	minute, hour, dom, mon, dow := fields[0], fields[1], fields[2], fields[3], fields[4]

	// Every minute.
	if minute == "*" && hour == "*" && dom == "*" && mon == "*" && dow == "*" {
		return Minute
	}

	// Step minutes (*/n).
	if m := stepPattern.FindStringSubmatch(minute); m != nil {
		if hour == "*" && dom == "*" && mon == "*" && dow == "*" {
			n, _ := strconv.Atoi(m[1])
			return n * Minute
		}
	}

	// Step hours (*/n) with the minute fixed or wildcard.
	if minute == "0" || minute == "*" {
		if m := stepPattern.FindStringSubmatch(hour); m != nil {
			if dom == "*" && mon == "*" && dow == "*" {
				n, _ := strconv.Atoi(m[1])
				return n * Hour
			}
		}
	}

	// Exact hourly.
	if minute == "0" && hour == "*" && dom == "*" && mon == "*" && dow == "*" {
		return Hour
	}

	// Common step-hour literal sets.
	if minute == "0" && dom == "*" && mon == "*" && dow == "*" {
		switch hour {
		case "*/4", "0,4,8,12,16,20":
			return 4 * Hour
		case "*/6", "0,6,12,18":
			return 6 * Hour
		case "*/12", "0,12":
			return 12 * Hour
		}
	}

	// Fixed time of day.
	if isNumeric(minute) && isNumeric(hour) && dom == "*" && mon == "*" && dow == "*" {
		return Day
	}

	// Fixed time on a weekday.
	if isNumeric(minute) && isNumeric(hour) && dom == "*" && mon == "*" && isNumeric(dow) {
		return Week
	}

	// Fixed time on a day of month.
	if isNumeric(minute) && isNumeric(hour) && isNumeric(dom) && mon == "*" && dow == "*" {
		return Month
	}

	// Heuristic escalation over which fields are pinned.
	if minute != "*" {
		if hour != "*" {
			if dom != "*" || dow != "*" {
				if mon != "*" {
					return Year
				}
				return Month
			}
			return Day
		}
		return Hour
	}

	return Day
}

// ReadableInterval renders an interval as a human phrase using fixed bucket
// boundaries.
func ReadableInterval(seconds int) string {
	switch {
	case seconds <= Minute:
		return "Every minute"
	case seconds < Hour:
		return plural(seconds/Minute, "minute")
	case seconds < Day:
		return plural(seconds/Hour, "hour")
	case seconds < Week:
		return plural(seconds/Day, "day")
	case seconds < Month:
		return plural(seconds/Week, "week")
	case seconds < Year:
		return plural(seconds/Month, "month")
	default:
		return plural(seconds/Year, "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("Every %s", unit)
	}
	return fmt.Sprintf("Every %d %ss", n, unit)
}

// ValidateExpression reports whether expr is a parseable standard cron
// expression or descriptor.
func ValidateExpression(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}
