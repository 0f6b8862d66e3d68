package domain

import "context"

// MessageRepository 消息仓储接口
type MessageRepository interface {
	// SaveMessage 追加一条消息并返回带 ID 的实体
	SaveMessage(ctx context.Context, conversationID int64, typ MessageType, content string) (*Message, error)
	GetMessage(ctx context.Context, id int64) (*Message, error)
	// ListMessages 按创建顺序升序返回
	ListMessages(ctx context.Context, conversationID int64) ([]*Message, error)
	// ListMessagesAfter 返回 ID 大于 afterID 的消息，升序
	ListMessagesAfter(ctx context.Context, conversationID, afterID int64) ([]*Message, error)
	CountMessages(ctx context.Context, conversationID int64) (int64, error)
	// UpdateMessageContent 更新内容并记录编辑历史
	UpdateMessageContent(ctx context.Context, id int64, content string) (*MessageEdit, error)
}

// SummaryRepository 摘要仓储接口
type SummaryRepository interface {
	SaveSummary(ctx context.Context, conversationID int64, summary string, lastMessageID int64) (*ConversationSummary, error)
	// GetLatestSummary 没有摘要时返回 (nil, nil)
	GetLatestSummary(ctx context.Context, conversationID int64) (*ConversationSummary, error)
}

// ConversationRepository 对话仓储接口
type ConversationRepository interface {
	CreateConversation(ctx context.Context, userID, title string) (*Conversation, error)
	GetConversation(ctx context.Context, id int64) (*Conversation, error)
	// ListConversations 按创建时间倒序
	ListConversations(ctx context.Context, userID string) ([]*Conversation, error)
	ListAllConversations(ctx context.Context) ([]*ConversationWithOwner, error)
	UpdateTitle(ctx context.Context, id int64, title string) error
	// DeleteConversation 级联删除消息、编辑历史与摘要
	DeleteConversation(ctx context.Context, id int64) error
}

// UserRepository 用户仓储接口
type UserRepository interface {
	// EnsureUser 不存在则创建，存在则刷新 last_login 以及非空的 email/name
	EnsureUser(ctx context.Context, userID, email, name string) (*User, error)
	GetUser(ctx context.Context, userID string) (*User, error)
}
