package domain

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoTimestamp reports a line that matches none of the timestamp forms.
	ErrNoTimestamp = errors.New("not a timestamp line")
	// ErrNoDate reports a time-only line with no date to attach it to.
	ErrNoDate = errors.New("time-only timestamp without a date")
)

// maxEpoch bounds plausible epoch seconds so runs of digits in data lines
// are not mistaken for time.
const maxEpoch = 1e11

// TimestampResolver recognizes the three timestamp line forms:
//
//	-2013-07-01 00:00:12   explicit date and time, leading '-' optional
//	1372636812.5           Unix epoch seconds, optionally fractional
//	= 00:00:12             time only, date supplied by the caller
type TimestampResolver struct {
	dateTime *regexp.Regexp
	epoch    *regexp.Regexp
	timeOnly *regexp.Regexp
}

// NewTimestampResolver compiles the timestamp grammars.
func NewTimestampResolver() *TimestampResolver {
	return &TimestampResolver{
		dateTime: regexp.MustCompile(`^-?(\d{4}-\d\d-\d\d)[ T](\d\d:\d\d:\d\d(?:\.\d+)?)$`),
		epoch:    regexp.MustCompile(`^(?:\d+\.?\d*|\.\d+)$`),
		timeOnly: regexp.MustCompile(`^=\s*(\d\d):(\d\d):(\d\d)$`),
	}
}

// IsBannerTimestamp reports whether a line that starts with a banner
// character is a genuine timestamp line.
func (tr *TimestampResolver) IsBannerTimestamp(line string) bool {
	return tr.dateTime.MatchString(line) || tr.timeOnly.MatchString(line)
}

// IsEpoch reports whether line is a bare epoch number within the
// plausible range.
func (tr *TimestampResolver) IsEpoch(line string) bool {
	if !tr.epoch.MatchString(line) {
		return false
	}
	_, err := ParseEpoch(line)
	return err == nil
}

// Resolve tries the explicit, epoch and time-only forms in order. date
// carries the day for time-only lines; a zero date makes them fail with
// ErrNoDate.
func (tr *TimestampResolver) Resolve(line string, date time.Time) (time.Time, error) {
	if m := tr.dateTime.FindStringSubmatch(line); m != nil {
		t, err := time.ParseInLocation("2006-01-02 15:04:05", m[1]+" "+m[2], time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrNoTimestamp, err)
		}
		return t, nil
	}
	if tr.epoch.MatchString(line) {
		return ParseEpoch(line)
	}
	if m := tr.timeOnly.FindStringSubmatch(line); m != nil {
		if date.IsZero() {
			return time.Time{}, ErrNoDate
		}
		h, _ := strconv.Atoi(m[1])
		mi, _ := strconv.Atoi(m[2])
		s, _ := strconv.Atoi(m[3])
		if h > 23 || mi > 59 || s > 60 {
			return time.Time{}, fmt.Errorf("%w: time %q out of range", ErrNoTimestamp, line)
		}
		y, mo, d := date.Date()
		return time.Date(y, mo, d, h, mi, s, 0, time.UTC), nil
	}
	return time.Time{}, ErrNoTimestamp
}

// ParseEpoch converts possibly fractional Unix seconds to a UTC time.
func ParseEpoch(s string) (time.Time, error) {
	secs, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || secs < 0 || secs >= maxEpoch {
		return time.Time{}, fmt.Errorf("%w: epoch %q", ErrNoTimestamp, s)
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC(), nil
}

// DateFromFileName extracts the first two-digit year, month and day run
// (YYMMDD) from the base name of path. Years map to 2000-2099.
func DateFromFileName(path string) (time.Time, bool) {
	base := filepath.Base(path)
	for i := 0; i+6 <= len(base); i++ {
		digits := base[i : i+6]
		if strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
			continue
		}
		y, _ := strconv.Atoi(digits[0:2])
		m, _ := strconv.Atoi(digits[2:4])
		d, _ := strconv.Atoi(digits[4:6])
		t := time.Date(2000+y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
		if m >= 1 && m <= 12 && t.Day() == d {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTimeArg parses an initial-time override: RFC 3339, ISO 8601 without
// zone (UTC), a space-separated date and time, or epoch seconds.
func ParseTimeArg(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, TimeLayout, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	t, err := ParseEpoch(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time %q", s)
	}
	return t, nil
}
