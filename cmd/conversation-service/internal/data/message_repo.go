package data

import (
	"context"
	"errors"
	"time"

	"chatassistant/cmd/conversation-service/internal/domain"

	"gorm.io/gorm"
)

// MessageDO 消息数据对象
type MessageDO struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	ConversationID int64  `gorm:"index;not null"`
	MessageTypeID  int    `gorm:"column:message_type_id;not null"`
	MessageContent string `gorm:"column:message_content;type:text;not null"`
	CreatedAt      time.Time
}

// TableName 指定表名
func (MessageDO) TableName() string {
	return "messages"
}

// MessageEditDO 消息编辑历史数据对象
type MessageEditDO struct {
	ID              int64  `gorm:"primaryKey;autoIncrement"`
	MessageID       int64  `gorm:"index;not null"`
	PreviousContent string `gorm:"type:text;not null"`
	EditedAt        time.Time
}

// TableName 指定表名
func (MessageEditDO) TableName() string {
	return "message_edits"
}

// MessageRepository 消息仓储实现
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息仓储
func NewMessageRepository(db *gorm.DB) domain.MessageRepository {
	return &MessageRepository{db: db}
}

// SaveMessage 保存消息
func (r *MessageRepository) SaveMessage(ctx context.Context, conversationID int64, typ domain.MessageType, content string) (*domain.Message, error) {
	if !typ.Valid() {
		return nil, domain.ErrInvalidMessageType
	}
	do := &MessageDO{
		ConversationID: conversationID,
		MessageTypeID:  int(typ),
		MessageContent: content,
	}
	if err := r.db.WithContext(ctx).Create(do).Error; err != nil {
		return nil, err
	}
	return r.toDomain(do), nil
}

// GetMessage 获取消息
func (r *MessageRepository) GetMessage(ctx context.Context, id int64) (*domain.Message, error) {
	var do MessageDO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&do).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return r.toDomain(&do), nil
}

// ListMessages 列出对话全部消息
func (r *MessageRepository) ListMessages(ctx context.Context, conversationID int64) ([]*domain.Message, error) {
	return r.ListMessagesAfter(ctx, conversationID, 0)
}

// ListMessagesAfter 列出 ID 大于 afterID 的消息
func (r *MessageRepository) ListMessagesAfter(ctx context.Context, conversationID, afterID int64) ([]*domain.Message, error) {
	var dos []MessageDO
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND id > ?", conversationID, afterID).
		Order("id ASC").
		Find(&dos).Error
	if err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, len(dos))
	for i := range dos {
		messages[i] = r.toDomain(&dos[i])
	}
	return messages, nil
}

// CountMessages 统计对话消息数
func (r *MessageRepository) CountMessages(ctx context.Context, conversationID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&MessageDO{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

// UpdateMessageContent 更新消息内容并记录编辑历史
func (r *MessageRepository) UpdateMessageContent(ctx context.Context, id int64, content string) (*domain.MessageEdit, error) {
	var edit MessageEditDO
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var do MessageDO
		if err := tx.Where("id = ?", id).First(&do).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrMessageNotFound
			}
			return err
		}

		edit = MessageEditDO{MessageID: id, PreviousContent: do.MessageContent, EditedAt: time.Now().UTC()}
		if err := tx.Create(&edit).Error; err != nil {
			return err
		}

		return tx.Model(&MessageDO{}).Where("id = ?", id).Update("message_content", content).Error
	})
	if err != nil {
		return nil, err
	}

	return &domain.MessageEdit{
		ID:              edit.ID,
		MessageID:       edit.MessageID,
		PreviousContent: edit.PreviousContent,
		EditedAt:        edit.EditedAt,
	}, nil
}

func (r *MessageRepository) toDomain(do *MessageDO) *domain.Message {
	return &domain.Message{
		ID:             do.ID,
		ConversationID: do.ConversationID,
		Type:           domain.MessageType(do.MessageTypeID),
		Content:        do.MessageContent,
		CreatedAt:      do.CreatedAt,
	}
}
