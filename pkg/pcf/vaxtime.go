package pcf

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// vaxMonths is a locale-free month-name table, avoiding time.Parse/Format's
// dependence on the runtime locale for the "Mon" layout verb — the same
// reason original_source hand-rolls its own month lookup rather than using
// the C library's locale-aware strftime/strptime.
var vaxMonths = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

func monthIndex(name string) (int, bool) {
	name = strings.ToLower(name)
	for i, m := range vaxMonths {
		if strings.ToLower(m) == name {
			return i, true
		}
	}
	return 0, false
}

// FormatVAXTime renders t as the 23-byte VAX-style timestamp
// "DD-Mon-YYYY HH:MM:SS.ss" used by PCF record offsets 180..203.
func FormatVAXTime(t time.Time) string {
	if t.IsZero() {
		return strings.Repeat(" ", 23)
	}
	centis := t.Nanosecond() / 10000000
	return fmt.Sprintf("%02d-%s-%04d %02d:%02d:%02d.%02d",
		t.Day(), vaxMonths[int(t.Month())-1], t.Year(),
		t.Hour(), t.Minute(), t.Second(), centis)
}

// ParseVAXTime parses the PCF VAX-style timestamp. Returns the zero Time and
// an error if the string is blank or malformed — this is a Structural/Semantic
// condition for the caller to turn into a parse warning per spec.md §7, not a
// fatal error in this package.
func ParseVAXTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty VAX timestamp")
	}
	datePart, timePart, ok := strings.Cut(s, " ")
	if !ok {
		return time.Time{}, fmt.Errorf("malformed VAX timestamp %q", s)
	}
	dateFields := strings.Split(datePart, "-")
	if len(dateFields) != 3 {
		return time.Time{}, fmt.Errorf("malformed VAX date %q", datePart)
	}
	day, err := strconv.Atoi(dateFields[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed VAX day %q: %w", dateFields[0], err)
	}
	month, ok := monthIndex(dateFields[1])
	if !ok {
		return time.Time{}, fmt.Errorf("unrecognized VAX month %q", dateFields[1])
	}
	year, err := strconv.Atoi(dateFields[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed VAX year %q: %w", dateFields[2], err)
	}

	timeFields := strings.Split(timePart, ":")
	if len(timeFields) != 3 {
		return time.Time{}, fmt.Errorf("malformed VAX time %q", timePart)
	}
	hour, err := strconv.Atoi(timeFields[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed VAX hour: %w", err)
	}
	minute, err := strconv.Atoi(timeFields[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed VAX minute: %w", err)
	}
	secFields := strings.SplitN(timeFields[2], ".", 2)
	second, err := strconv.Atoi(secFields[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed VAX second: %w", err)
	}
	nanos := 0
	if len(secFields) == 2 {
		centis, err := strconv.Atoi(secFields[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("malformed VAX centiseconds: %w", err)
		}
		nanos = centis * 10000000
	}
	return time.Date(year, time.Month(month+1), day, hour, minute, second, nanos, time.UTC), nil
}
