package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRoomClock_NeverGoesBackwards(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(-time.Second), base.Add(time.Second)}
	i := 0
	clock := newRoomClock(func() time.Time {
		ts := times[i]
		i++
		return ts
	})

	assert.Equal(t, base, clock.next("r1"))
	assert.Equal(t, base, clock.next("r1"), "時鐘倒退時應該沿用上一個時間戳")
	assert.Equal(t, base.Add(time.Second), clock.next("r1"))
}

func TestRoomClock_ObserveSetsFloor(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := newRoomClock(func() time.Time { return now })

	assert.False(t, clock.seeded("r1"))
	clock.observe("r1", now.Add(time.Minute))
	assert.True(t, clock.seeded("r1"))
	assert.Equal(t, now.Add(time.Minute), clock.next("r1"))
	assert.Equal(t, now, clock.next("r2"), "其他聊天室不受影響")
}

func TestRoomClock_MillisecondPrecision(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	clock := newRoomClock(func() time.Time { return now })
	assert.Equal(t, 123000000, clock.next("r1").Nanosecond())
}
