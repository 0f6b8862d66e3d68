package service

import (
	"context"

	"chatassistant/cmd/conversation-service/internal/biz"
	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/google/wire"
)

// ProviderSet 服务层提供者集合
var ProviderSet = wire.NewSet(NewConversationService)

// ConversationService 对话服务
//
// 每个调用先登记用户并解析管理员身份，再转给对应用例。
type ConversationService struct {
	userUc         *biz.UserUsecase
	conversationUc *biz.ConversationUsecase
	chatUc         *biz.ChatUsecase
}

// NewConversationService 创建对话服务
func NewConversationService(
	userUc *biz.UserUsecase,
	conversationUc *biz.ConversationUsecase,
	chatUc *biz.ChatUsecase,
) *ConversationService {
	return &ConversationService{
		userUc:         userUc,
		conversationUc: conversationUc,
		chatUc:         chatUc,
	}
}

// Chat 发送消息并返回模型回复
func (s *ConversationService) Chat(ctx context.Context, caller *domain.Identity, req *ChatRequest) (*ChatResponse, error) {
	user, err := s.userUc.EnsureUser(ctx, caller)
	if err != nil {
		return nil, err
	}

	message, conversationID := req.resolve()
	reply, err := s.chatUc.SendMessage(ctx, user, &biz.ChatRequest{
		ConversationID: conversationID,
		Message:        message,
	})
	if err != nil {
		return nil, err
	}
	return toChatResponse(reply), nil
}

// CurrentUser 当前用户信息
func (s *ConversationService) CurrentUser(ctx context.Context, caller *domain.Identity) (*UserDTO, error) {
	user, err := s.userUc.EnsureUser(ctx, caller)
	if err != nil {
		return nil, err
	}
	return &UserDTO{UserID: user.UserID, Email: user.Email, Name: user.Name, IsAdmin: user.IsAdmin}, nil
}

// CreateConversation 创建对话
func (s *ConversationService) CreateConversation(ctx context.Context, caller *domain.Identity) (*ConversationDTO, error) {
	user, err := s.userUc.EnsureUser(ctx, caller)
	if err != nil {
		return nil, err
	}
	conv, err := s.conversationUc.CreateConversation(ctx, user)
	if err != nil {
		return nil, err
	}
	return toConversationDTO(conv), nil
}

// ListConversations 列出自己的对话
func (s *ConversationService) ListConversations(ctx context.Context, caller *domain.Identity) ([]*ConversationDTO, error) {
	user, err := s.userUc.EnsureUser(ctx, caller)
	if err != nil {
		return nil, err
	}
	convs, err := s.conversationUc.ListConversations(ctx, user)
	if err != nil {
		return nil, err
	}
	out := make([]*ConversationDTO, 0, len(convs))
	for _, conv := range convs {
		out = append(out, toConversationDTO(conv))
	}
	return out, nil
}

// DeleteConversation 删除对话
func (s *ConversationService) DeleteConversation(ctx context.Context, caller *domain.Identity, id int64) error {
	user, err := s.userUc.EnsureUser(ctx, caller)
	if err != nil {
		return err
	}
	return s.conversationUc.DeleteConversation(ctx, id, user)
}

// ListMessages 列出对话消息
func (s *ConversationService) ListMessages(ctx context.Context, caller *domain.Identity, conversationID int64) ([]*MessageDTO, error) {
	user, err := s.userUc.EnsureUser(ctx, caller)
	if err != nil {
		return nil, err
	}
	msgs, err := s.conversationUc.ListMessages(ctx, conversationID, user)
	if err != nil {
		return nil, err
	}
	out := make([]*MessageDTO, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, toMessageDTO(msg))
	}
	return out, nil
}

// EditMessage 编辑消息
func (s *ConversationService) EditMessage(ctx context.Context, caller *domain.Identity, messageID int64, content string) (*MessageDTO, error) {
	user, err := s.userUc.EnsureUser(ctx, caller)
	if err != nil {
		return nil, err
	}
	msg, err := s.conversationUc.EditMessage(ctx, messageID, content, user)
	if err != nil {
		return nil, err
	}
	return toMessageDTO(msg), nil
}

// ListAllConversations 管理端列出所有对话
func (s *ConversationService) ListAllConversations(ctx context.Context, caller *domain.Identity) ([]*AdminConversationDTO, error) {
	user, err := s.userUc.EnsureUser(ctx, caller)
	if err != nil {
		return nil, err
	}
	convs, err := s.conversationUc.ListAllConversations(ctx, user)
	if err != nil {
		return nil, err
	}
	out := make([]*AdminConversationDTO, 0, len(convs))
	for _, conv := range convs {
		out = append(out, &AdminConversationDTO{
			ConversationDTO: *toConversationDTO(&conv.Conversation),
			UserEmail:       conv.UserEmail,
			UserName:        conv.UserName,
		})
	}
	return out, nil
}
