package testfixtures

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/example/lab-reservations/internal/scheduler"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	assert.True(t, clock.Now().Equal(ReferenceTime()))
}

func TestClockAdvanceAndSet(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)

	updated := clock.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), updated)

	clock.Set(start.Add(2 * time.Hour))
	assert.Equal(t, start.Add(2*time.Hour), clock.Current())
}

func TestSteppingClock(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 0, 0, 0, time.UTC)
	clock := NewSteppingClock(start, time.Second)
	nowFn := clock.NowFunc()

	assert.Equal(t, start, nowFn())
	assert.Equal(t, start.Add(time.Second), nowFn())
	assert.Equal(t, start.Add(2*time.Second), clock.Current(), "Current does not step")
	assert.Equal(t, start.Add(2*time.Second), clock.Current())
}

func TestClockTodayFunc(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	clock := NewClock(time.Date(2024, time.March, 14, 20, 0, 0, 0, time.UTC))

	assert.Equal(t, scheduler.NewDate(2024, time.March, 14), clock.TodayFunc(nil)())
	assert.Equal(t, scheduler.NewDate(2024, time.March, 15), clock.TodayFunc(tokyo)())
}
