// Package recurrence materializes recurring transaction templates into
// concrete dated occurrences.
package recurrence

import (
	"time"

	"github.com/Veraticus/stillsuit/internal/model"
)

// ExpandForRange returns every transaction that falls within [start, end].
// One-off rows (and recurring rows whose rule is missing or unrecognized) are
// included once if their date is in range. Recurring templates are replaced
// by their occurrences. Dates are compared as calendar days.
//
// The result is ordered by input position, then by date within a template.
// Identical input always yields identical output.
func ExpandForRange(transactions []model.Transaction, start, end time.Time) []model.Transaction {
	startDay, endDay := civil(start), civil(end)
	if endDay.Before(startDay) {
		return nil
	}

	var expanded []model.Transaction
	for i := range transactions {
		tx := &transactions[i]

		rule := tx.Recurrence()
		if rule == nil {
			day := civil(tx.Date)
			if !day.Before(startDay) && !day.After(endDay) {
				expanded = append(expanded, *tx)
			}
			continue
		}

		for _, date := range occurrenceDays(tx.Date, rule, startDay, endDay) {
			expanded = append(expanded, materialize(tx, date))
		}
	}

	return expanded
}

// Occurrences returns the occurrence dates of a single transaction within
// [start, end], in the transaction's location.
func Occurrences(tx model.Transaction, start, end time.Time) []time.Time {
	startDay, endDay := civil(start), civil(end)
	if endDay.Before(startDay) {
		return nil
	}

	loc := tx.Date.Location()
	rule := tx.Recurrence()
	if rule == nil {
		day := civil(tx.Date)
		if day.Before(startDay) || day.After(endDay) {
			return nil
		}
		return []time.Time{inLocation(day, loc)}
	}

	days := occurrenceDays(tx.Date, rule, startDay, endDay)
	dates := make([]time.Time, len(days))
	for i, d := range days {
		dates[i] = inLocation(d, loc)
	}
	return dates
}

// occurrenceDays walks the rule between startDay and endDay (both civil).
func occurrenceDays(anchor time.Time, rule *model.RecurringRule, startDay, endDay time.Time) []time.Time {
	anchorDay := civil(anchor)
	if anchorDay.After(endDay) {
		return nil
	}

	switch rule.Frequency {
	case model.FrequencyDaily:
		return walkDays(laterOf(anchorDay, startDay), endDay, func(time.Time) bool { return true })
	case model.FrequencyWeekly:
		set := rule.WeekdaySet(anchor)
		return walkDays(laterOf(anchorDay, startDay), endDay, func(d time.Time) bool { return set[d.Weekday()] })
	case model.FrequencyMonthly:
		return walkMonths(anchorDay, rule.TargetDay(anchor), startDay, endDay)
	default:
		return nil
	}
}

func walkDays(from, to time.Time, keep func(time.Time) bool) []time.Time {
	var days []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if keep(d) {
			days = append(days, d)
		}
	}
	return days
}

// walkMonths emits the target day of every month from the anchor's month,
// clamped to the month's last day so that e.g. the 31st becomes Feb 28.
func walkMonths(anchorDay time.Time, target int, startDay, endDay time.Time) []time.Time {
	year, month := anchorDay.Year(), anchorDay.Month()
	// Months before the range start can never emit.
	if startDay.Year() > year || (startDay.Year() == year && startDay.Month() > month) {
		year, month = startDay.Year(), startDay.Month()
	}

	var days []time.Time
	for {
		first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		if first.After(endDay) {
			break
		}

		day := target
		if last := daysIn(year, month); day > last {
			day = last
		}
		occ := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)

		if !occ.Before(startDay) && !occ.After(endDay) && !occ.Before(anchorDay) {
			days = append(days, occ)
		}

		next := first.AddDate(0, 1, 0)
		year, month = next.Year(), next.Month()
	}
	return days
}

func materialize(template *model.Transaction, day time.Time) model.Transaction {
	occ := *template
	occ.ID = model.NewOccurrenceID(template.ID, day).String()
	occ.Date = inLocation(day, template.Date.Location())
	occ.IsRecurring = true
	return occ
}

// civil truncates t to its calendar day, expressed as midnight UTC so that
// days from different locations compare by date alone.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func inLocation(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
