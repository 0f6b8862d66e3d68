package domain

import "time"

// MessageType 消息类型（与 message_type_id 列一一对应）
type MessageType int

const (
	MessageTypeUser    MessageType = 1 // 用户消息
	MessageTypeAI      MessageType = 2 // AI 回复
	MessageTypeSummary MessageType = 3 // 摘要
)

// String 类型名
func (t MessageType) String() string {
	switch t {
	case MessageTypeUser:
		return "user"
	case MessageTypeAI:
		return "ai"
	case MessageTypeSummary:
		return "summary"
	default:
		return "unknown"
	}
}

// Valid 是否为已知类型
func (t MessageType) Valid() bool {
	return t >= MessageTypeUser && t <= MessageTypeSummary
}

// Message 持久化的对话消息
//
// ID 由存储层分配，同一对话内严格递增，与创建顺序一致。
type Message struct {
	ID             int64
	ConversationID int64
	Type           MessageType
	Content        string
	CreatedAt      time.Time
}

// MessageEdit 消息编辑历史
type MessageEdit struct {
	ID              int64
	MessageID       int64
	PreviousContent string
	EditedAt        time.Time
}

// LastMessageID 返回列表中最后一条消息的 ID，空列表返回 0
func LastMessageID(messages []*Message) int64 {
	if len(messages) == 0 {
		return 0
	}
	return messages[len(messages)-1].ID
}
