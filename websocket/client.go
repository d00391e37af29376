package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"go-chat/realtime/models"
	"go-chat/realtime/utils"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

const (
	// 將訊息寫入到遠端對等點的最長時間
	writeWait = 10 * time.Second

	// 允許從遠端對等點讀取下一個 pong 訊息的最長時間。
	pongWait = 60 * time.Second

	// 發送 ping 訊息給遠端對等點的週期。
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	defaultMaxMessageSize = 4096
)

// Client 是 session 使用的 WebSocket 連線
type Client struct {
	conn    *websocket.Conn // WebSocket 連線物件，透過它來讀寫訊息
	session *Session
	log     *slog.Logger
}

// Close 關閉底層連線，讀取端會因此結束並觸發斷線流程
func (c *Client) Close() error {
	return c.conn.Close()
}

// 讀取用戶傳來的訊框，交給 session 處理
func (c *Client) readPump(ctx context.Context, maxMessageSize int64) {
	var reason error
	defer func() {
		c.session.Disconnect(ctx, reason)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		messageType, p, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("client disconnected gracefully", "conn", c.session.ID())
			} else {
				c.log.Debug("error reading message", "conn", c.session.ID(), "error", err)
			}
			reason = err
			return
		}
		if messageType != websocket.TextMessage {
			c.log.Info("discarding non-text frame", "conn", c.session.ID())
			continue
		}
		if err := c.session.HandleFrame(ctx, p); err != nil {
			reason = err
			return
		}
	}
}

// 接收 session 的送出事件，編碼後寫給前端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case ev := <-c.session.Outbound():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, Encode(ev)); err != nil {
				// 寫入失敗：關閉連線，讀取端會走正常斷線流程
				c.log.Debug("error writing message", "conn", c.session.ID(), "error", err)
				return
			}

		case <-c.session.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		// 接收定時器以保持連線活躍並檢測客戶端是否仍在線。
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Handler 將 HTTP 連線升級為 WebSocket 並交給 Hub
type Handler struct {
	hub            *Hub
	upgrader       websocket.Upgrader
	maxMessageSize int64
	log            *slog.Logger
}

// NewHandler 創建 WebSocket 處理器，allowedOrigins 為空時允許所有來源
func NewHandler(hub *Hub, allowedOrigins []string, maxMessageSize int64) *Handler {
	if maxMessageSize <= 0 {
		maxMessageSize = defaultMaxMessageSize
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowedOrigins) == 0 || origin == "" || lo.Contains(allowedOrigins, origin)
			},
		},
		maxMessageSize: maxMessageSize,
		log:            hub.log,
	}
}

// HandleConnections 處理 WebSocket 連線請求: GET /ws/chat/{room}
// 身分由認證中介軟體放入 context
func (h *Handler) HandleConnections(w http.ResponseWriter, r *http.Request) {
	identity, err := utils.GetIdentityFromContext(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	roomID := mux.Vars(r)["room"]
	if roomID == "" {
		http.Error(w, "Room ID is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("failed to upgrade to WebSocket", "error", err)
		return
	}

	client := &Client{conn: conn, log: h.log}
	session, err := h.hub.Connect(r.Context(), identity, roomID, client)
	if err != nil {
		code, text := websocket.CloseInternalServerErr, "internal error"
		if errors.Is(err, models.ErrNotRoomMember) {
			code, text = websocket.ClosePolicyViolation, "not a member of this room"
		}
		h.log.Info("connection rejected", "user", identity, "room", roomID, "error", err)
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
		conn.Close()
		return
	}
	client.session = session

	go client.writePump()
	client.readPump(r.Context(), h.maxMessageSize) // readPump 會在連線關閉時自動取消註冊
}
