package data

import (
	"context"
	"errors"
	"time"

	"chatassistant/cmd/conversation-service/internal/domain"

	"gorm.io/gorm"
)

// ConversationDO 对话数据对象
type ConversationDO struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    string    `gorm:"column:user_id;size:255;index;not null"`
	Title     string    `gorm:"size:255;not null"`
	CreatedAt time.Time `gorm:"index"`
}

// TableName 指定表名
func (ConversationDO) TableName() string {
	return "conversations"
}

// conversationOwnerRow 管理端列表行
type conversationOwnerRow struct {
	ID        int64
	UserID    string
	Title     string
	CreatedAt time.Time
	UserEmail *string
	UserName  *string
}

// ConversationRepository 对话仓储实现
type ConversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository 创建对话仓储
func NewConversationRepository(db *gorm.DB) domain.ConversationRepository {
	return &ConversationRepository{db: db}
}

// CreateConversation 创建对话
func (r *ConversationRepository) CreateConversation(ctx context.Context, userID, title string) (*domain.Conversation, error) {
	if title == "" {
		title = domain.DefaultConversationTitle
	}
	do := &ConversationDO{UserID: userID, Title: title}
	if err := r.db.WithContext(ctx).Create(do).Error; err != nil {
		return nil, err
	}
	return r.toDomain(do), nil
}

// GetConversation 获取对话
func (r *ConversationRepository) GetConversation(ctx context.Context, id int64) (*domain.Conversation, error) {
	var do ConversationDO
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&do).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return r.toDomain(&do), nil
}

// ListConversations 列出用户的对话，最新在前
func (r *ConversationRepository) ListConversations(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	var dos []ConversationDO
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&dos).Error
	if err != nil {
		return nil, err
	}

	conversations := make([]*domain.Conversation, len(dos))
	for i := range dos {
		conversations[i] = r.toDomain(&dos[i])
	}
	return conversations, nil
}

// ListAllConversations 列出全部对话及所有者信息
func (r *ConversationRepository) ListAllConversations(ctx context.Context) ([]*domain.ConversationWithOwner, error) {
	var rows []conversationOwnerRow
	err := r.db.WithContext(ctx).
		Table("conversations AS c").
		Select("c.id, c.user_id, c.title, c.created_at, u.email AS user_email, u.name AS user_name").
		Joins("LEFT JOIN users AS u ON u.user_id = c.user_id").
		Order("c.created_at DESC, c.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]*domain.ConversationWithOwner, len(rows))
	for i, row := range rows {
		result[i] = &domain.ConversationWithOwner{
			Conversation: domain.Conversation{
				ID:        row.ID,
				UserID:    row.UserID,
				Title:     row.Title,
				CreatedAt: row.CreatedAt,
			},
			UserEmail: derefString(row.UserEmail),
			UserName:  derefString(row.UserName),
		}
	}
	return result, nil
}

// UpdateTitle 更新标题
func (r *ConversationRepository) UpdateTitle(ctx context.Context, id int64, title string) error {
	result := r.db.WithContext(ctx).Model(&ConversationDO{}).Where("id = ?", id).Update("title", title)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConversationNotFound
	}
	return nil
}

// DeleteConversation 删除对话及其消息、编辑历史与摘要
func (r *ConversationRepository) DeleteConversation(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		messageIDs := tx.Model(&MessageDO{}).Select("id").Where("conversation_id = ?", id)
		if err := tx.Where("message_id IN (?)", messageIDs).Delete(&MessageEditDO{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&MessageDO{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&SummaryDO{}).Error; err != nil {
			return err
		}

		result := tx.Where("id = ?", id).Delete(&ConversationDO{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrConversationNotFound
		}
		return nil
	})
}

func (r *ConversationRepository) toDomain(do *ConversationDO) *domain.Conversation {
	return &domain.Conversation{
		ID:        do.ID,
		UserID:    do.UserID,
		Title:     do.Title,
		CreatedAt: do.CreatedAt,
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
