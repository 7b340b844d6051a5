package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used in occurrence ids.
const DateLayout = "2006-01-02"

const occurrenceSeparator = "__"

// OccurrenceID identifies one computed occurrence of a recurring template.
type OccurrenceID struct {
	Date       time.Time
	TemplateID string
}

// NewOccurrenceID builds an id for the calendar day of date.
func NewOccurrenceID(templateID string, date time.Time) OccurrenceID {
	y, m, d := date.Date()
	return OccurrenceID{
		TemplateID: templateID,
		Date:       time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
	}
}

// String renders the id as "<templateId>__<YYYY-MM-DD>".
func (o OccurrenceID) String() string {
	return o.TemplateID + occurrenceSeparator + o.Date.Format(DateLayout)
}

// Equal compares template and calendar day.
func (o OccurrenceID) Equal(other OccurrenceID) bool {
	return o.TemplateID == other.TemplateID && o.Date.Equal(other.Date)
}

// ParseOccurrenceID parses the string form produced by String. The template
// id may itself contain the separator; the date is always the last segment.
func ParseOccurrenceID(s string) (OccurrenceID, error) {
	idx := strings.LastIndex(s, occurrenceSeparator)
	if idx <= 0 {
		return OccurrenceID{}, fmt.Errorf("invalid occurrence id %q", s)
	}

	date, err := time.Parse(DateLayout, s[idx+len(occurrenceSeparator):])
	if err != nil {
		return OccurrenceID{}, fmt.Errorf("invalid occurrence id %q: %w", s, err)
	}

	return OccurrenceID{TemplateID: s[:idx], Date: date}, nil
}
