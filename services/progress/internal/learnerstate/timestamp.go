package learnerstate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedTimestamp is wrapped by every TimestampError.
var ErrMalformedTimestamp = errors.New("malformed timestamp")

// TimestampError reports a timestamp field that could not be parsed.
type TimestampError struct {
	Field string
	Value string
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("%s: %s %q", ErrMalformedTimestamp, e.Field, e.Value)
}

func (e *TimestampError) Unwrap() error { return ErrMalformedTimestamp }

// The canonical form is "yyyy-MM-dd HH:mm:ss:SSSZ": milliseconds follow a
// colon, which Go layouts cannot express, so the separator at this offset is
// swapped for a dot on the way in and out.
const (
	dottedLayout   = "2006-01-02 15:04:05.000-0700"
	millisSepIndex = 19
)

var inputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatTime renders t in the canonical persisted form, in UTC.
func FormatTime(t time.Time) string {
	b := []byte(t.UTC().Format(dottedLayout))
	b[millisSepIndex] = ':'
	return string(b)
}

// ParseTime parses a canonical, RFC 3339, "2006-01-02 15:04:05" or date-only
// string. Values without a zone are read as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > millisSepIndex && s[millisSepIndex] == ':' {
		b := []byte(s)
		b[millisSepIndex] = '.'
		if t, err := time.Parse(dottedLayout, string(b)); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range inputLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
}

// isAbsent treats empty strings and the literal "null" as missing values.
func isAbsent(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, "null")
}

// parseOptional parses an optional field; absent values yield nil.
func parseOptional(field, value string) (*time.Time, error) {
	if isAbsent(value) {
		return nil, nil
	}
	t, err := ParseTime(value)
	if err != nil {
		return nil, &TimestampError{Field: field, Value: value}
	}
	return &t, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// LaterOf picks the later of two optional timestamps and formats it.
// Both absent yields now; one absent yields the other.
func LaterOf(current, requested *time.Time, now time.Time) string {
	switch {
	case current == nil && requested == nil:
		return FormatTime(now)
	case current == nil:
		return FormatTime(*requested)
	case requested == nil:
		return FormatTime(*current)
	case requested.After(*current):
		return FormatTime(*requested)
	default:
		return FormatTime(*current)
	}
}
