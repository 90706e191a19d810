// Package timeutil is the single timestamp conversion point for both
// attendance entry paths: input parsed in the display zone, storage in UTC
// using the ERP's textual layout, responses rendered back in the display zone.
package timeutil

import (
	"fmt"
	"time"
)

// ERPLayout is the textual timestamp representation the ERP persists.
const ERPLayout = "2006-01-02 15:04:05"

// DateLayout is the calendar-day representation used for day-boundary checks.
const DateLayout = "2006-01-02"

// Converter converts between the ERP's UTC storage form and the configured
// display timezone.
type Converter struct {
	loc *time.Location
}

// NewConverter resolves the display timezone by name (e.g. "Asia/Kolkata").
func NewConverter(name string) (*Converter, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load display timezone %q: %w", name, err)
	}
	return &Converter{loc: loc}, nil
}

// Location returns the display timezone.
func (c *Converter) Location() *time.Location { return c.loc }

// ParseInput parses a client-supplied timestamp. The value is interpreted in
// the display timezone and returned in UTC. Both the ERP layout and RFC3339
// are accepted.
func (c *Converter) ParseInput(value string) (time.Time, error) {
	if t, err := time.ParseInLocation(ERPLayout, value, c.loc); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

// ToStorage formats a timestamp as the UTC string persisted to the ERP.
func (c *Converter) ToStorage(t time.Time) string {
	return t.UTC().Format(ERPLayout)
}

// ParseStorage parses a timestamp previously persisted by ToStorage.
func (c *Converter) ParseStorage(value string) (time.Time, error) {
	t, err := time.ParseInLocation(ERPLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", value, err)
	}
	return t, nil
}

// ToDisplay formats a timestamp in the display timezone for response payloads.
func (c *Converter) ToDisplay(t time.Time) string {
	return t.In(c.loc).Format(ERPLayout)
}

// DisplayDate returns the calendar day of t in the display timezone.
// Day-boundary decisions (same-day re-check-in) use the display zone, not UTC.
func (c *Converter) DisplayDate(t time.Time) string {
	return t.In(c.loc).Format(DateLayout)
}

// SameDisplayDay reports whether two instants fall on the same calendar day
// in the display timezone.
func (c *Converter) SameDisplayDay(a, b time.Time) bool {
	return c.DisplayDate(a) == c.DisplayDate(b)
}
