package domain

import (
	"strings"
	"time"
)

// DeadlineKind tells which variant a Deadline holds.
type DeadlineKind int

const (
	DeadlineAbsent DeadlineKind = iota
	DeadlineText
	DeadlineDate
)

// DisplayLayout renders concrete deadlines in the workbook.
const DisplayLayout = "January 02, 2006"

// Deadline is either absent, unparsed text, or a concrete calendar date.
// It is resolved once at ingestion and never re-inspected downstream.
type Deadline struct {
	kind DeadlineKind
	date time.Time
	text string
}

// NoDeadline returns the absent variant.
func NoDeadline() Deadline {
	return Deadline{}
}

// DeadlineOn returns a concrete deadline truncated to its calendar day.
func DeadlineOn(t time.Time) Deadline {
	return Deadline{kind: DeadlineDate, date: DateOf(t)}
}

// UnparsedDeadline keeps text that could not be resolved to a date.
func UnparsedDeadline(text string) Deadline {
	text = strings.TrimSpace(text)
	if text == "" {
		return NoDeadline()
	}
	return Deadline{kind: DeadlineText, text: text}
}

// Kind returns the variant tag.
func (d Deadline) Kind() DeadlineKind {
	return d.kind
}

// Date returns the concrete date, if any.
func (d Deadline) Date() (time.Time, bool) {
	return d.date, d.kind == DeadlineDate
}

// Text returns the unparsed text for the DeadlineText variant.
func (d Deadline) Text() string {
	return d.text
}

// HasDate reports whether the deadline is a concrete date.
func (d Deadline) HasDate() bool {
	return d.kind == DeadlineDate
}

// ExpiredOn reports whether a concrete deadline falls strictly before today.
// Absent and unparsed deadlines never expire.
func (d Deadline) ExpiredOn(today time.Time) bool {
	if d.kind != DeadlineDate {
		return false
	}
	return d.date.Before(DateOf(today))
}

// Compare orders two concrete deadlines; non-dated values compare equal.
func (d Deadline) Compare(other Deadline) int {
	return d.date.Compare(other.date)
}

// ParseDeadline resolves a raw deadline string.
// Supports formats: "2026-03-30", "March 30, 2026", "30 March 2026", "March 30 2026".
func ParseDeadline(raw string) Deadline {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NoDeadline()
	}

	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return DeadlineOn(t)
	}

	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	for _, layout := range []string{"2 January 2006", "January 2 2006"} {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return DeadlineOn(t)
		}
	}

	return UnparsedDeadline(raw)
}

// FormatDeadline renders the Submission Deadline column for a record.
func FormatDeadline(c Conference) string {
	switch c.Deadline.kind {
	case DeadlineDate:
		return c.Deadline.date.Format(DisplayLayout)
	case DeadlineText:
		return c.Deadline.text
	default:
		return c.SubmissionDeadline
	}
}

// DateOf strips the clock from t, keeping its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
