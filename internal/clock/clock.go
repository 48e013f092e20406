// Package clock produces the canonical SEREBO timestamp string. The
// format is part of the on-disk and hash-input contract, so every caller
// across store, ledger and notary must go through this package rather
// than formatting time.Time ad hoc.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Stamp returns the current UTC time as
// "YEAR:MON:DAY:HOUR:MIN:SEC:MICRO", with no zero-padding on any field.
func Stamp() string {
	return Format(time.Now().UTC())
}

// Format renders t (converted to UTC) in the canonical shape.
func Format(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%d:%d:%d:%d:%d:%d:%d",
		t.Year(), int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
		t.Nanosecond()/1000)
}

// FromSeconds renders a floating-point seconds-since-epoch value in the
// same shape, with the microsecond field fixed at "00000", for a
// timestamp held as an epoch float rather than a time.Time.
func FromSeconds(seconds float64) string {
	t := time.Unix(int64(seconds), 0).UTC()
	return fmt.Sprintf("%d:%d:%d:%d:%d:%d:%s",
		t.Year(), int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
		"00000")
}

// ParseMicro extracts the MICRO field of a canonical timestamp string, if
// present, for callers that need sub-second ordering within a dtstamp.
func ParseMicro(stamp string) (int, error) {
	fields := strings.Split(stamp, ":")
	if len(fields) != 7 {
		return 0, fmt.Errorf("clock: malformed timestamp %q", stamp)
	}
	return strconv.Atoi(fields[6])
}
