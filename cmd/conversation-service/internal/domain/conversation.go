package domain

import "time"

// DefaultConversationTitle 新对话默认标题
const DefaultConversationTitle = "New Chat"

// Conversation 对话
type Conversation struct {
	ID        int64
	UserID    string
	Title     string
	CreatedAt time.Time
}

// ConversationWithOwner 带所有者信息的对话（管理端列表）
type ConversationWithOwner struct {
	Conversation
	UserEmail string
	UserName  string
}

// IsOwnedBy 是否属于该用户
func (c *Conversation) IsOwnedBy(userID string) bool {
	return c.UserID == userID
}
