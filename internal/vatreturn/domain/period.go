package domain

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Period is an inclusive range of calendar days.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod truncates both bounds to UTC days and enforces start <= end.
func NewPeriod(start, end time.Time) (Period, error) {
	p := Period{Start: TruncateDate(start), End: TruncateDate(end)}
	if p.Start.After(p.End) {
		return Period{}, ErrInvalidPeriod
	}
	return p, nil
}

func ParsePeriod(start, end string) (Period, error) {
	s, err := ParseDate(start)
	if err != nil {
		return Period{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return Period{}, err
	}
	return NewPeriod(s, e)
}

// Contains reports whether t falls on any day of the period, boundaries included.
func (p Period) Contains(t time.Time) bool {
	day := TruncateDate(t)
	return !day.Before(p.Start) && !day.After(p.End)
}

// Overlaps reports whether the two periods share at least one day.
func (p Period) Overlaps(o Period) bool {
	return !p.Start.After(o.End) && !o.Start.After(p.End)
}

func (p Period) String() string {
	return FormatDate(p.Start) + ".." + FormatDate(p.End)
}

func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrInvalidDate
	}
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return TruncateDate(t), nil
	}
	return time.Time{}, ErrInvalidDate
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

func TruncateDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
