package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/calorbit/birthday-sync/internal/config"
)

// LeapPolicy decides what a February 29 birth date becomes in a target
// year that is not a leap year.
type LeapPolicy int

const (
	// LeapSubstituteFeb28 materializes the occurrence on February 28.
	// This is the default: the birthday is still celebrated every year.
	LeapSubstituteFeb28 LeapPolicy = iota
	// LeapSkipYear produces no occurrence for non-leap years.
	LeapSkipYear
)

// LeapPolicyFromName maps a settings value to a LeapPolicy.
// Unknown names fall back to the substitution policy.
func LeapPolicyFromName(name string) LeapPolicy {
	if name == config.LeapPolicySkip {
		return LeapSkipYear
	}
	return LeapSubstituteFeb28
}

// ErrMalformedBirthDate marks a day/month combination that exists in no
// year. A person carrying one is skipped for the pass, never fatal.
var ErrMalformedBirthDate = errors.New(config.ErrBadBirthDate)

// BirthDate is a recurring calendar date that may omit its year.
// It is an immutable value type; the zero value is not valid.
type BirthDate struct {
	Month time.Month
	Day   int
	// Year is only meaningful when YearKnown is true. It never affects
	// which occurrences exist, only age computation in event titles.
	Year      int
	YearKnown bool
}

// NewBirthDate validates and constructs a BirthDate.
// February 29 is legal even without a year; the expander resolves it per
// concrete target year.
func NewBirthDate(month time.Month, day int, year int, yearKnown bool) (BirthDate, error) {
	b := BirthDate{Month: month, Day: day, Year: year, YearKnown: yearKnown}
	if err := b.Validate(); err != nil {
		return BirthDate{}, err
	}
	return b, nil
}

// Validate checks that the day is valid for the month in at least one
// possible year.
func (b BirthDate) Validate() error {
	if b.Month < time.January || b.Month > time.December {
		return fmt.Errorf("%w: month %d", ErrMalformedBirthDate, b.Month)
	}
	if b.Day < 1 || b.Day > daysInMonthMax(b.Month) {
		return fmt.Errorf("%w: day %d for month %s", ErrMalformedBirthDate, b.Day, b.Month)
	}
	if b.YearKnown {
		// With a concrete year the date must exist in that exact year.
		t := time.Date(b.Year, b.Month, b.Day, 0, 0, 0, 0, time.UTC)
		if t.Month() != b.Month || t.Day() != b.Day {
			return fmt.Errorf("%w: %04d-%02d-%02d does not exist", ErrMalformedBirthDate, b.Year, b.Month, b.Day)
		}
	}
	return nil
}

// daysInMonthMax returns the largest day number the month can carry in
// any year (29 for February).
func daysInMonthMax(m time.Month) int {
	switch m {
	case time.February:
		return 29
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}

// IsLeapDay reports whether the birth date is February 29.
func (b BirthDate) IsLeapDay() bool {
	return b.Month == time.February && b.Day == 29
}

// isLeapYear follows the Gregorian rule.
func isLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// DateForYear resolves the birth date in the given target year under the
// leap policy. ok is false only for LeapSkipYear on a non-leap year.
// The result is the UTC-midnight "retain fields" instant required for
// all-day events: the civil date stamped as UTC, not a zone conversion.
func (b BirthDate) DateForYear(year int, policy LeapPolicy) (t time.Time, ok bool) {
	day := b.Day
	if b.IsLeapDay() && !isLeapYear(year) {
		switch policy {
		case LeapSkipYear:
			return time.Time{}, false
		default:
			day = 28
		}
	}
	return UTCMidnight(year, b.Month, day), true
}

// NextOccurrenceOnOrAfter returns the nearest occurrence whose civil date
// is today or later. Under LeapSkipYear the search advances until a leap
// year is found.
func (b BirthDate) NextOccurrenceOnOrAfter(today time.Time, policy LeapPolicy) time.Time {
	ty, tm, td := today.Date()
	todayUTC := UTCMidnight(ty, tm, td)

	for y := ty; ; y++ {
		candidate, ok := b.DateForYear(y, policy)
		if !ok {
			continue
		}
		if !candidate.Before(todayUTC) {
			return candidate
		}
	}
}

// Equal ignores time-of-day by construction: two BirthDates are equal
// when month, day and (known) year match.
func (b BirthDate) Equal(other BirthDate) bool {
	if b.Month != other.Month || b.Day != other.Day || b.YearKnown != other.YearKnown {
		return false
	}
	return !b.YearKnown || b.Year == other.Year
}

// String renders the date in vCard notation, using the truncated form
// when the year is unknown.
func (b BirthDate) String() string {
	if b.YearKnown {
		return fmt.Sprintf("%04d-%02d-%02d", b.Year, int(b.Month), b.Day)
	}
	return fmt.Sprintf("--%02d-%02d", int(b.Month), b.Day)
}

// UTCMidnight stamps a civil date as midnight UTC. All-day events must
// use this transform (wall-clock fields retained, no conversion) or they
// shift by a day for viewers in other timezones.
func UTCMidnight(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseBirthDate handles the vCard BDAY formats, full and truncated.
func ParseBirthDate(value string) (BirthDate, error) {
	// Full dates (Year known)
	formatsWithYear := []string{
		config.DateFormatFullDash,
		config.DateFormatFullBasic,
		config.DateFormatRFC3339,
		config.DateFormatFullT,
	}
	for _, f := range formatsWithYear {
		if t, err := time.Parse(f, value); err == nil {
			return NewBirthDate(t.Month(), t.Day(), t.Year(), true)
		}
	}

	// Truncated dates (Year unknown) - vCard specific.
	// Parsed against a leap year so --02-29 survives.
	formatsWithoutYear := []string{config.DateFormatNoYearD, config.DateFormatNoYearB}
	for _, f := range formatsWithoutYear {
		if t, err := time.Parse(f, value); err == nil {
			safe := time.Date(config.DefaultLeapYear, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return NewBirthDate(safe.Month(), safe.Day(), 0, false)
		}
	}

	return BirthDate{}, errors.New(config.ErrDateParse)
}
