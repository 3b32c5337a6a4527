// Package parse holds the numeric and timestamp coercion helpers shared by
// the format importers.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	laptimeMSS = regexp.MustCompile(`^(\d+):([0-5]?\d\.\d{3})$`)
	laptimeSS  = regexp.MustCompile(`^([0-5]?\d\.\d{3})$`)
)

// LaptimeToMS parses "m:ss.mmm" or "ss.mmm" into milliseconds. The seconds
// part goes through decimal arithmetic so "1:23.456" is exactly 83456.
func LaptimeToMS(laptime string) (int64, error) {
	laptime = strings.TrimSpace(laptime)
	if laptime == "" {
		return 0, fmt.Errorf("laptime must be a non-empty string")
	}
	var minutes int64
	var seconds string
	if m := laptimeMSS.FindStringSubmatch(laptime); m != nil {
		minutes, _ = strconv.ParseInt(m[1], 10, 64)
		seconds = m[2]
	} else if m := laptimeSS.FindStringSubmatch(laptime); m != nil {
		seconds = m[1]
	} else {
		return 0, fmt.Errorf(
			"invalid laptime format: %s. Expected 'm:ss.mmm' or 'ss.mmm'", laptime)
	}
	sec, err := decimal.NewFromString(seconds)
	if err != nil {
		return 0, fmt.Errorf("invalid laptime format: %s", laptime)
	}
	return minutes*60_000 + sec.Mul(decimal.NewFromInt(1000)).IntPart(), nil
}

// ISOToMS converts an ISO-8601 timestamp (with Z, offset or naive, fractional
// seconds tolerated) to epoch milliseconds. Naive timestamps are assumed UTC.
func ISOToMS(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("ISO string must be a non-empty string")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UnixMilli(), nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", value, time.UTC); err == nil {
		return t.UnixMilli(), nil
	}
	return 0, fmt.Errorf("invalid ISO8601 format: %s", value)
}

// Float coerces a trimmed string to a float pointer; empty, nan and inf
// values become nil instead of a value.
func Float(value string) *float64 {
	value = strings.TrimSpace(value)
	switch strings.ToLower(value) {
	case "", "nan", "inf", "-inf":
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &f
}

// Int coerces via float so "6.0" truncates to 6.
func Int(value string) *int {
	f := Float(value)
	if f == nil {
		return nil
	}
	i := int(*f)
	return &i
}

// CleanString trims surrounding whitespace.
func CleanString(value string) string {
	return strings.TrimSpace(value)
}
