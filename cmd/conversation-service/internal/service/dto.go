package service

import (
	"strings"
	"time"

	"chatassistant/cmd/conversation-service/internal/biz"
	"chatassistant/cmd/conversation-service/internal/domain"
)

// LegacyMessage 旧版请求中的消息条目
type LegacyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 聊天请求
//
// 新版只带 message 与可选 conversationId；旧版携带完整 messages，取最后一条 user 消息并新建对话。
type ChatRequest struct {
	Message        string          `json:"message"`
	ConversationID int64           `json:"conversationId,omitempty"`
	Messages       []LegacyMessage `json:"messages,omitempty"`
}

func (r *ChatRequest) resolve() (message string, conversationID int64) {
	if strings.TrimSpace(r.Message) != "" || len(r.Messages) == 0 {
		return r.Message, r.ConversationID
	}
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == string(domain.ChatRoleUser) {
			return r.Messages[i].Content, r.ConversationID
		}
	}
	return "", r.ConversationID
}

// ChatResponse 聊天响应
type ChatResponse struct {
	ConversationID int64             `json:"conversationId"`
	MessageID      int64             `json:"messageId,omitempty"`
	Response       string            `json:"response"`
	Error          string            `json:"error,omitempty"`
	ToolCalls      []domain.ToolCall `json:"toolCalls,omitempty"`
	Summarized     bool              `json:"summarized,omitempty"`
	Title          string            `json:"title,omitempty"`
}

// UserDTO 用户信息
type UserDTO struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
}

// ConversationDTO 对话
type ConversationDTO struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// AdminConversationDTO 管理端对话，附带所有者
type AdminConversationDTO struct {
	ConversationDTO
	UserEmail string `json:"user_email,omitempty"`
	UserName  string `json:"user_name,omitempty"`
}

// MessageDTO 消息
type MessageDTO struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	MessageTypeID  int       `json:"message_type_id"`
	Type           string    `json:"type"`
	Content        string    `json:"message_content"`
	CreatedAt      time.Time `json:"created_at"`
}

func toChatResponse(reply *biz.ChatReply) *ChatResponse {
	resp := &ChatResponse{
		ConversationID: reply.ConversationID,
		MessageID:      reply.MessageID,
		Response:       reply.Response,
		Error:          reply.Error,
		ToolCalls:      reply.ToolCalls,
		Summarized:     reply.Summarized,
	}
	if reply.TitleGenerated {
		resp.Title = reply.Title
	}
	return resp
}

func toConversationDTO(conv *domain.Conversation) *ConversationDTO {
	return &ConversationDTO{
		ID:        conv.ID,
		UserID:    conv.UserID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
	}
}

func toMessageDTO(msg *domain.Message) *MessageDTO {
	return &MessageDTO{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		MessageTypeID:  int(msg.Type),
		Type:           msg.Type.String(),
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt,
	}
}
