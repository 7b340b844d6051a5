package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ErrInvalidRule is returned when a stored recurring rule cannot be used.
var ErrInvalidRule = errors.New("invalid recurring rule")

// Frequency is the repeat cadence of a recurring template.
type Frequency string

const (
	// FrequencyDaily repeats every calendar day.
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly repeats on a set of weekdays.
	FrequencyWeekly Frequency = "weekly"
	// FrequencyMonthly repeats on one day of each month.
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is a recognized frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	default:
		return false
	}
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// WeekdayName returns the three-letter wire name of d.
func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String()[:3])
}

// ParseWeekday parses a three-letter weekday name such as "mon".
func ParseWeekday(s string) (time.Weekday, error) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRule, s)
	}
	return d, nil
}

// RecurringRule is the in-memory form of a template's schedule.
// Weekdays only applies to weekly rules and MonthDay only to monthly rules;
// the zero value of either means "use the template's own date".
type RecurringRule struct {
	Frequency Frequency
	Weekdays  []time.Weekday
	MonthDay  int
}

// Daily returns a rule repeating every day.
func Daily() *RecurringRule {
	return &RecurringRule{Frequency: FrequencyDaily}
}

// Weekly returns a rule repeating on the given weekdays.
func Weekly(days ...time.Weekday) *RecurringRule {
	return &RecurringRule{Frequency: FrequencyWeekly, Weekdays: days}
}

// Monthly returns a rule repeating on day of each month.
func Monthly(day int) *RecurringRule {
	return &RecurringRule{Frequency: FrequencyMonthly, MonthDay: day}
}

// WeekdaySet returns the weekdays a weekly rule fires on, falling back to
// the anchor's weekday when the rule names none.
func (r *RecurringRule) WeekdaySet(anchor time.Time) map[time.Weekday]bool {
	set := make(map[time.Weekday]bool, 7)
	for _, d := range r.Weekdays {
		set[d] = true
	}
	if len(set) == 0 {
		set[anchor.Weekday()] = true
	}
	return set
}

// TargetDay returns the day of month a monthly rule fires on.
func (r *RecurringRule) TargetDay(anchor time.Time) int {
	if r.MonthDay > 0 {
		return r.MonthDay
	}
	return anchor.Day()
}

// ruleWire is the persisted text form of a rule.
type ruleWire struct {
	Frequency string   `json:"frequency"`
	Weekdays  []string `json:"weekdays,omitempty"`
	MonthDay  *int     `json:"monthDay,omitempty"`
}

// ParseRecurringRule decodes the stored text form of a rule.
// Empty input yields (nil, nil).
func ParseRecurringRule(raw string) (*RecurringRule, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var w ruleWire
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	rule := &RecurringRule{Frequency: Frequency(strings.ToLower(w.Frequency))}
	if !rule.Frequency.Valid() {
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, w.Frequency)
	}

	for _, name := range w.Weekdays {
		d, err := ParseWeekday(name)
		if err != nil {
			return nil, err
		}
		rule.Weekdays = append(rule.Weekdays, d)
	}

	if w.MonthDay != nil {
		if *w.MonthDay < 1 || *w.MonthDay > 31 {
			return nil, fmt.Errorf("%w: month day %d out of range", ErrInvalidRule, *w.MonthDay)
		}
		rule.MonthDay = *w.MonthDay
	}

	return rule, nil
}

// Encode returns the stored text form of the rule.
func (r *RecurringRule) Encode() (string, error) {
	if r == nil {
		return "", nil
	}
	if !r.Frequency.Valid() {
		return "", fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, r.Frequency)
	}

	w := ruleWire{Frequency: string(r.Frequency)}
	if r.Frequency == FrequencyWeekly && len(r.Weekdays) > 0 {
		days := append([]time.Weekday(nil), r.Weekdays...)
		sort.Slice(days, func(i, j int) bool { return isoOrder(days[i]) < isoOrder(days[j]) })
		for _, d := range days {
			w.Weekdays = append(w.Weekdays, WeekdayName(d))
		}
	}
	if r.Frequency == FrequencyMonthly && r.MonthDay > 0 {
		day := r.MonthDay
		w.MonthDay = &day
	}

	data, err := json.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("failed to encode recurring rule: %w", err)
	}
	return string(data), nil
}

// isoOrder sorts Monday first.
func isoOrder(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}
