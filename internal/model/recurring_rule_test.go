package model

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecurringRule(t *testing.T) {
	tests := []struct {
		want    *RecurringRule
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "empty text is no rule",
			raw:  "",
			want: nil,
		},
		{
			name: "daily",
			raw:  `{"frequency":"daily"}`,
			want: &RecurringRule{Frequency: FrequencyDaily},
		},
		{
			name: "weekly with weekdays",
			raw:  `{"frequency":"weekly","weekdays":["mon","FRI"]}`,
			want: &RecurringRule{Frequency: FrequencyWeekly, Weekdays: []time.Weekday{time.Monday, time.Friday}},
		},
		{
			name: "monthly with day",
			raw:  `{"frequency":"monthly","monthDay":31}`,
			want: &RecurringRule{Frequency: FrequencyMonthly, MonthDay: 31},
		},
		{
			name:    "unknown frequency",
			raw:     `{"frequency":"yearly"}`,
			wantErr: true,
		},
		{
			name:    "unknown weekday",
			raw:     `{"frequency":"weekly","weekdays":["funday"]}`,
			wantErr: true,
		},
		{
			name:    "month day out of range",
			raw:     `{"frequency":"monthly","monthDay":32}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `weekly`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecurringRule(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRule))
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecurringRule_EncodeRoundTrip(t *testing.T) {
	rules := []*RecurringRule{
		Daily(),
		Weekly(time.Friday, time.Monday),
		Weekly(),
		Monthly(15),
		Monthly(0),
	}

	for _, rule := range rules {
		raw, err := rule.Encode()
		require.NoError(t, err)

		parsed, err := ParseRecurringRule(raw)
		require.NoError(t, err)
		assert.Equal(t, rule.Frequency, parsed.Frequency)
		assert.ElementsMatch(t, rule.Weekdays, parsed.Weekdays)
		assert.Equal(t, rule.MonthDay, parsed.MonthDay)
	}

	raw, err := Weekly(time.Sunday, time.Monday).Encode()
	require.NoError(t, err)
	assert.Equal(t, `{"frequency":"weekly","weekdays":["mon","sun"]}`, raw)
}

func TestTransaction_Recurrence(t *testing.T) {
	tx := Transaction{IsRecurring: true, RecurringRule: Daily()}
	assert.NotNil(t, tx.Recurrence())

	tx.IsRecurring = false
	assert.Nil(t, tx.Recurrence(), "rule without the recurring flag is ignored")

	tx = Transaction{IsRecurring: true}
	assert.Nil(t, tx.Recurrence(), "recurring flag without a rule degrades to one-off")

	tx = Transaction{IsRecurring: true, RecurringRule: &RecurringRule{Frequency: "hourly"}}
	assert.Nil(t, tx.Recurrence())
}

func TestOccurrenceID(t *testing.T) {
	id := NewOccurrenceID("rent__2024", time.Date(2025, 2, 28, 17, 30, 0, 0, time.Local))
	assert.Equal(t, "rent__2024__2025-02-28", id.String())

	parsed, err := ParseOccurrenceID(id.String())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(id))
	assert.Equal(t, "rent__2024", parsed.TemplateID)

	_, err = ParseOccurrenceID("no-separator")
	assert.Error(t, err)

	_, err = ParseOccurrenceID("tpl__2025-13-01")
	assert.Error(t, err)
}
