package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, value string) TimeOfDay {
	t.Helper()
	tod, err := ParseTimeOfDay(value)
	require.NoError(t, err)
	return tod
}

func mustWindow(t *testing.T, date Date, start, end string) TimeWindow {
	t.Helper()
	w, err := NewTimeWindow(date, mustTime(t, start), mustTime(t, end))
	require.NoError(t, err)
	return w
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.March, 1), d)
	assert.Equal(t, "2024-03-01", d.String())

	_, err = ParseDate("01/03/2024")
	assert.Error(t, err)
}

func TestDate_Arithmetic(t *testing.T) {
	d := NewDate(2024, time.February, 28)
	assert.Equal(t, NewDate(2024, time.February, 29), d.AddDays(1))
	assert.Equal(t, NewDate(2024, time.March, 1), d.AddDays(2))
	assert.Equal(t, 2, d.DaysUntil(NewDate(2024, time.March, 1)))
	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.AddDays(1).After(d))
	assert.Equal(t, 0, d.Compare(NewDate(2024, time.February, 28)))
	assert.Equal(t, NewDate(2024, time.March, 1), NewDate(2024, time.February, 30))
}

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input   string
		want    TimeOfDay
		wantErr bool
	}{
		{input: "09:00", want: 9 * 3600},
		{input: "23:59:30", want: 23*3600 + 59*60 + 30},
		{input: "24:00", want: EndOfDay},
		{input: "00:00", want: StartOfDay},
		{input: "24:01", wantErr: true},
		{input: "9:00", wantErr: true},
		{input: "09:60", wantErr: true},
		{input: "nine", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimeOfDay(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "09:30", TimeOfDay(9*3600+30*60).String())
	assert.Equal(t, "09:30:15", TimeOfDay(9*3600+30*60+15).String())
}

func TestNewTimeWindow(t *testing.T) {
	date := NewDate(2024, time.March, 1)

	t.Run("rejects zero length windows", func(t *testing.T) {
		_, err := NewTimeWindow(date, mustTime(t, "10:00"), mustTime(t, "10:00"))
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("rejects inverted windows", func(t *testing.T) {
		_, err := NewTimeWindow(date, mustTime(t, "11:00"), mustTime(t, "10:00"))
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("requires a date", func(t *testing.T) {
		_, err := NewTimeWindow(Date{}, mustTime(t, "10:00"), mustTime(t, "11:00"))
		assert.Error(t, err)
	})

	t.Run("exposes its bounds", func(t *testing.T) {
		w := mustWindow(t, date, "09:00", "11:00")
		assert.Equal(t, date, w.Date())
		assert.Equal(t, mustTime(t, "09:00"), w.Start())
		assert.Equal(t, mustTime(t, "11:00"), w.End())
		assert.False(t, w.IsZero())
		assert.Equal(t, "2024-03-01 09:00-11:00", w.String())
	})

	t.Run("resolves its start instant", func(t *testing.T) {
		loc := time.FixedZone("CET", 3600)
		w := mustWindow(t, date, "09:15", "11:00")
		assert.Equal(t, time.Date(2024, time.March, 1, 9, 15, 0, 0, loc), w.StartsAt(loc))
	})
}

func TestOverlaps(t *testing.T) {
	day := NewDate(2024, time.March, 1)
	windows := []TimeWindow{
		mustWindow(t, day, "08:00", "09:00"),
		mustWindow(t, day, "09:00", "11:00"),
		mustWindow(t, day, "10:00", "10:30"),
		mustWindow(t, day, "10:30", "12:00"),
		mustWindow(t, day, "00:00", "24:00"),
		mustWindow(t, day.AddDays(1), "09:00", "11:00"),
	}

	t.Run("is symmetric", func(t *testing.T) {
		for _, a := range windows {
			for _, b := range windows {
				assert.Equal(t, Overlaps(a, b), Overlaps(b, a), "%s vs %s", a, b)
			}
		}
	})

	t.Run("touching boundaries do not overlap", func(t *testing.T) {
		assert.False(t, Overlaps(windows[0], windows[1]))
		assert.False(t, Overlaps(windows[2], windows[3]))
	})

	t.Run("shared instants overlap", func(t *testing.T) {
		assert.True(t, Overlaps(windows[1], windows[2]))
		assert.True(t, Overlaps(windows[1], windows[3]))
		assert.True(t, Overlaps(windows[4], windows[0]))
		assert.True(t, Overlaps(windows[1], windows[1]))
	})

	t.Run("different dates never overlap", func(t *testing.T) {
		assert.False(t, Overlaps(windows[1], windows[5]))
	})
}

func TestWithinRange(t *testing.T) {
	day := NewDate(2024, time.March, 1)
	w := mustWindow(t, day, "10:00", "12:00")
	next := day.AddDays(1)
	prev := day.AddDays(-1)
	ten := mustTime(t, "10:00")
	nine := mustTime(t, "09:00")
	eleven := mustTime(t, "11:00")

	assert.True(t, WithinRange(w, Range{}))
	assert.True(t, WithinRange(w, Range{DateFrom: &day, DateTo: &day}))
	assert.True(t, WithinRange(w, Range{DateFrom: &prev, DateTo: &next}))
	assert.False(t, WithinRange(w, Range{DateFrom: &next}))
	assert.False(t, WithinRange(w, Range{DateTo: &prev}))
	assert.True(t, WithinRange(w, Range{TimeFrom: &ten, TimeTo: &ten}))
	assert.True(t, WithinRange(w, Range{TimeFrom: &nine, TimeTo: &eleven}))
	assert.False(t, WithinRange(w, Range{TimeFrom: &eleven}))
	assert.False(t, WithinRange(w, Range{TimeTo: &nine}))
}
