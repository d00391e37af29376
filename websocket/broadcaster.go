package websocket

import (
	"fmt"
	"log/slog"
	"sync"

	"go-chat/realtime/models"

	"github.com/samber/lo"
)

// Member 是可以加入聊天室廣播群組的連線
// Deliver 不可阻塞：緩衝已滿時應直接回傳錯誤
type Member interface {
	ID() string
	Deliver(ev OutboundEvent) error
}

// GroupBroadcaster 維護每個聊天室目前訂閱中的連線，並負責廣播
// 每個聊天室有自己的鎖，不同聊天室之間不會互相競爭
type GroupBroadcaster struct {
	groups sync.Map // roomID -> *group
	bound  sync.Map // memberID -> roomID，一條連線同時只能在一個聊天室
	log    *slog.Logger
}

type group struct {
	mu      sync.Mutex
	members map[string]Member
	closed  bool // 已從 groups 移除，不能再加入
}

// NewGroupBroadcaster 創建廣播器
func NewGroupBroadcaster(log *slog.Logger) *GroupBroadcaster {
	if log == nil {
		log = slog.Default()
	}
	return &GroupBroadcaster{log: log}
}

func (b *GroupBroadcaster) loadOrCreate(roomID string) *group {
	if v, ok := b.groups.Load(roomID); ok {
		return v.(*group)
	}
	v, _ := b.groups.LoadOrStore(roomID, &group{members: make(map[string]Member)})
	return v.(*group)
}

// Join 將連線加入聊天室群組，重複加入同一聊天室不會產生重複投遞
func (b *GroupBroadcaster) Join(roomID string, m Member) error {
	if current, loaded := b.bound.LoadOrStore(m.ID(), roomID); loaded {
		if current.(string) != roomID {
			return fmt.Errorf("%w: connection %s is in room %s", models.ErrAlreadyBound, m.ID(), current)
		}
		return nil
	}

	for {
		g := b.loadOrCreate(roomID)
		g.mu.Lock()
		if g.closed {
			g.mu.Unlock()
			continue
		}
		g.members[m.ID()] = m
		size := len(g.members)
		g.mu.Unlock()
		b.log.Debug("member joined", "room", roomID, "conn", m.ID(), "members", size)
		return nil
	}
}

// Leave 將連線移出聊天室群組，不是成員時不做任何事
func (b *GroupBroadcaster) Leave(roomID string, m Member) {
	if !b.bound.CompareAndDelete(m.ID(), roomID) {
		return
	}
	v, ok := b.groups.Load(roomID)
	if !ok {
		return
	}
	g := v.(*group)
	g.mu.Lock()
	delete(g.members, m.ID())
	size := len(g.members)
	if size == 0 {
		// 如果房間沒有連線了，就刪除房間
		g.closed = true
		b.groups.CompareAndDelete(roomID, g)
	}
	g.mu.Unlock()
	b.log.Debug("member left", "room", roomID, "conn", m.ID(), "members", size)
}

// Publish 將事件投遞給呼叫當下群組內的所有連線，回傳成功交付的數量
// 投遞在鎖外進行，單一連線失敗不影響其他連線
func (b *GroupBroadcaster) Publish(roomID string, ev OutboundEvent) int {
	v, ok := b.groups.Load(roomID)
	if !ok {
		return 0
	}
	g := v.(*group)
	g.mu.Lock()
	snapshot := lo.Values(g.members)
	g.mu.Unlock()

	delivered := 0
	for _, m := range snapshot {
		if err := m.Deliver(ev); err != nil {
			b.log.Warn("delivery failed", "room", roomID, "conn", m.ID(), "kind", ev.Kind, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Members 回傳聊天室目前的連線數
func (b *GroupBroadcaster) Members(roomID string) int {
	v, ok := b.groups.Load(roomID)
	if !ok {
		return 0
	}
	g := v.(*group)
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.members)
}

// RoomOf 回傳連線目前所在的聊天室
func (b *GroupBroadcaster) RoomOf(memberID string) (string, bool) {
	v, ok := b.bound.Load(memberID)
	if !ok {
		return "", false
	}
	return v.(string), true
}
