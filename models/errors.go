package models

import "errors"

var (
	// ErrNotRoomMember 連線身分不是聊天室成員，連線不會進入 Active
	ErrNotRoomMember = errors.New("identity is not a member of the room")
	// ErrRoomNotFound 找不到聊天室
	ErrRoomNotFound = errors.New("room not found")
	// ErrDecode 收到無法解析或未知類型的訊框
	ErrDecode = errors.New("malformed frame")
	// ErrPersistence 訊息或在線狀態儲存失敗
	ErrPersistence = errors.New("persistence failure")
	// ErrAlreadyBound 同一條連線嘗試加入第二個聊天室
	ErrAlreadyBound = errors.New("connection already bound to another room")
	// ErrSessionClosed 對已關閉的 session 操作
	ErrSessionClosed = errors.New("session closed")
	// ErrSlowConsumer 接收端送出緩衝已滿
	ErrSlowConsumer = errors.New("send buffer full")
	// ErrMessageNotFound markRead 找不到訊息
	ErrMessageNotFound = errors.New("message not found")
	// ErrPresenceNotFound 該身分從未連線過
	ErrPresenceNotFound = errors.New("presence record not found")
)
