package biz

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

// SummaryCacheInvalidator 删除对话时清理摘要缓存
type SummaryCacheInvalidator interface {
	Invalidate(ctx context.Context, conversationID int64) error
}

// ConversationUsecase 对话用例
type ConversationUsecase struct {
	conversationRepo domain.ConversationRepository
	messageRepo      domain.MessageRepository
	cache            SummaryCacheInvalidator
	events           EventPublisher
	log              *log.Helper
}

// NewConversationUsecase 创建对话用例
func NewConversationUsecase(
	conversationRepo domain.ConversationRepository,
	messageRepo domain.MessageRepository,
	cache SummaryCacheInvalidator,
	events EventPublisher,
	logger log.Logger,
) *ConversationUsecase {
	return &ConversationUsecase{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		cache:            cache,
		events:           events,
		log:              log.NewHelper(log.With(logger, "module", "biz/conversation")),
	}
}

// CreateConversation 创建对话
func (uc *ConversationUsecase) CreateConversation(ctx context.Context, user *domain.Identity) (*domain.Conversation, error) {
	conversation, err := uc.conversationRepo.CreateConversation(ctx, user.UserID, domain.DefaultConversationTitle)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conversation, nil
}

// ListConversations 当前用户的对话，最新在前
func (uc *ConversationUsecase) ListConversations(ctx context.Context, user *domain.Identity) ([]*domain.Conversation, error) {
	return uc.conversationRepo.ListConversations(ctx, user.UserID)
}

// GetConversation 获取对话，所有者或管理员可读
func (uc *ConversationUsecase) GetConversation(ctx context.Context, id int64, user *domain.Identity) (*domain.Conversation, error) {
	conversation, err := uc.conversationRepo.GetConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	// 权限检查：对非所有者隐藏对话存在性
	if !conversation.IsOwnedBy(user.UserID) && !user.IsAdmin {
		return nil, domain.ErrConversationNotFound
	}

	return conversation, nil
}

// GetOwnedConversation 获取对话，仅所有者可写
func (uc *ConversationUsecase) GetOwnedConversation(ctx context.Context, id int64, user *domain.Identity) (*domain.Conversation, error) {
	conversation, err := uc.GetConversation(ctx, id, user)
	if err != nil {
		return nil, err
	}
	if !conversation.IsOwnedBy(user.UserID) {
		// 管理员对他人对话只读
		return nil, domain.ErrForbidden
	}
	return conversation, nil
}

// DeleteConversation 删除对话（级联）
func (uc *ConversationUsecase) DeleteConversation(ctx context.Context, id int64, user *domain.Identity) error {
	if _, err := uc.GetOwnedConversation(ctx, id, user); err != nil {
		return err
	}

	if err := uc.conversationRepo.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	if err := uc.cache.Invalidate(ctx, id); err != nil {
		uc.log.WithContext(ctx).Warnf("failed to invalidate summary cache for conversation %d: %v", id, err)
	}
	uc.events.PublishConversationDeleted(ctx, id, user.UserID)

	return nil
}

// ListMessages 对话消息，按创建顺序
func (uc *ConversationUsecase) ListMessages(ctx context.Context, conversationID int64, user *domain.Identity) ([]*domain.Message, error) {
	if _, err := uc.GetConversation(ctx, conversationID, user); err != nil {
		return nil, err
	}
	return uc.messageRepo.ListMessages(ctx, conversationID)
}

// EditMessage 编辑消息内容，旧内容写入编辑历史
func (uc *ConversationUsecase) EditMessage(ctx context.Context, messageID int64, content string, user *domain.Identity) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.ErrEmptyMessage
	}

	message, err := uc.messageRepo.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := uc.GetOwnedConversation(ctx, message.ConversationID, user); err != nil {
		if errors.Is(err, domain.ErrConversationNotFound) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}

	if _, err := uc.messageRepo.UpdateMessageContent(ctx, messageID, content); err != nil {
		return nil, fmt.Errorf("failed to edit message: %w", err)
	}

	message.Content = content
	return message, nil
}

// ListAllConversations 管理端：全部对话
func (uc *ConversationUsecase) ListAllConversations(ctx context.Context, user *domain.Identity) ([]*domain.ConversationWithOwner, error) {
	if !user.IsAdmin {
		return nil, domain.ErrForbidden
	}
	return uc.conversationRepo.ListAllConversations(ctx)
}
