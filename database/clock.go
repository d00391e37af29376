package database

import (
	"sync"
	"time"
)

// roomClock 為每個聊天室分配不會倒退的時間戳
// 呼叫端需持有該聊天室的寫入鎖
type roomClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last map[string]time.Time
}

func newRoomClock(now func() time.Time) *roomClock {
	if now == nil {
		now = time.Now
	}
	return &roomClock{now: now, last: make(map[string]time.Time)}
}

// seeded 回傳該聊天室是否已經有時間基準
func (c *roomClock) seeded(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.last[roomID]
	return ok
}

// observe 以已存在的時間戳作為下限
func (c *roomClock) observe(roomID string, ts time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.last[roomID]; !ok || ts.After(last) {
		c.last[roomID] = ts
	}
}

// next 取得下一個時間戳，精度為毫秒 (與 MongoDB Date 相同)
func (c *roomClock) next(roomID string) time.Time {
	ts := c.now().UTC().Truncate(time.Millisecond)
	c.mu.Lock()
	defer c.mu.Unlock()
	if last, ok := c.last[roomID]; ok && ts.Before(last) {
		ts = last
	}
	c.last[roomID] = ts
	return ts
}
