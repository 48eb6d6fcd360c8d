package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Common durations.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

var durationUnits = map[string]float64{
	"ns": float64(time.Nanosecond),
	"us": float64(time.Microsecond),
	"µs": float64(time.Microsecond),
	"ms": float64(time.Millisecond),
	"s":  float64(time.Second),
	"m":  float64(time.Minute),
	"h":  float64(time.Hour),
	"d":  float64(Day),
	"w":  float64(Week),
}

var distanceUnits = map[string]float64{
	"m":  1,
	"km": 1000,
}

// Duration is a time.Duration that reads "30d", "1w" or "1d12h" from YAML
// on top of the units time.ParseDuration knows.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration sums "<number><unit>" terms. An empty string is zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	total, err := sumTerms(s, durationUnits)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(total), nil
}

// Distance is a length in meters. YAML accepts "500m", "1.2km" or a bare number.
type Distance float64

// Meters returns the distance as a float.
func (d Distance) Meters() float64 { return float64(d) }

func (d *Distance) UnmarshalYAML(value *yaml.Node) error {
	v, err := ParseDistance(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Distance(v)
	return nil
}

func (d Distance) MarshalYAML() (any, error) {
	return strconv.FormatFloat(float64(d), 'g', -1, 64) + "m", nil
}

// ParseDistance returns meters. Negative values are rejected.
func ParseDistance(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 {
			return 0, fmt.Errorf("distance must not be negative: %s", s)
		}
		return f, nil
	}
	total, err := sumTerms(s, distanceUnits)
	if err != nil {
		return 0, fmt.Errorf("invalid distance %q: %w", s, err)
	}
	return total, nil
}

// sumTerms parses a sequence of unsigned "<number><unit>" terms, optionally
// separated by spaces, and returns the sum scaled by units.
func sumTerms(s string, units map[string]float64) (float64, error) {
	isNum := func(r rune) bool { return unicode.IsDigit(r) || r == '.' }

	var total float64
	rest := s
	for rest != "" {
		end := strings.IndexFunc(rest, func(r rune) bool { return !isNum(r) })
		switch end {
		case 0:
			return 0, fmt.Errorf("expected a number at %q", rest)
		case -1:
			return 0, fmt.Errorf("missing unit after %q", rest)
		}
		n, err := strconv.ParseFloat(rest[:end], 64)
		if err != nil {
			return 0, fmt.Errorf("bad number %q", rest[:end])
		}
		rest = rest[end:]

		next := strings.IndexFunc(rest, isNum)
		if next == -1 {
			next = len(rest)
		}
		unit := strings.TrimSpace(rest[:next])
		scale, ok := units[unit]
		if !ok {
			return 0, fmt.Errorf("unknown unit %q", unit)
		}
		total += n * scale
		rest = strings.TrimSpace(rest[next:])
	}
	return total, nil
}
