package data

import (
	"context"
	"errors"
	"time"

	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// SummaryDO 对话摘要数据对象
type SummaryDO struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	ConversationID int64  `gorm:"index;not null"`
	Summary        string `gorm:"type:text;not null"`
	LastMessageID  int64  `gorm:"not null"`
	CreatedAt      time.Time
}

// TableName 指定表名
func (SummaryDO) TableName() string {
	return "conversation_summaries"
}

// SummaryRepository 摘要仓储实现，读取优先走缓存
type SummaryRepository struct {
	db    *gorm.DB
	cache *SummaryCache
	log   *log.Helper
}

// NewSummaryRepository 创建摘要仓储
func NewSummaryRepository(db *gorm.DB, cache *SummaryCache, logger log.Logger) domain.SummaryRepository {
	return &SummaryRepository{
		db:    db,
		cache: cache,
		log:   log.NewHelper(log.With(logger, "module", "data/summary")),
	}
}

// SaveSummary 保存摘要，高水位不得低于已有最新摘要
func (r *SummaryRepository) SaveSummary(ctx context.Context, conversationID int64, summary string, lastMessageID int64) (*domain.ConversationSummary, error) {
	do := &SummaryDO{
		ConversationID: conversationID,
		Summary:        summary,
		LastMessageID:  lastMessageID,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest SummaryDO
		err := tx.Where("conversation_id = ?", conversationID).Order("id DESC").First(&latest).Error
		switch {
		case err == nil && latest.LastMessageID > lastMessageID:
			return domain.ErrStaleSummary
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		return tx.Create(do).Error
	})
	if err != nil {
		return nil, err
	}

	saved := r.toDomain(do)
	if err := r.cache.Set(ctx, saved); err != nil {
		r.log.WithContext(ctx).Warnf("failed to cache summary for conversation %d: %v", conversationID, err)
	}
	return saved, nil
}

// GetLatestSummary 获取最新摘要，不存在时返回 (nil, nil)
func (r *SummaryRepository) GetLatestSummary(ctx context.Context, conversationID int64) (*domain.ConversationSummary, error) {
	cached, err := r.cache.Get(ctx, conversationID)
	if err != nil {
		r.log.WithContext(ctx).Warnf("failed to read summary cache for conversation %d: %v", conversationID, err)
	} else if cached != nil {
		return cached, nil
	}

	var do SummaryDO
	err = r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id DESC").
		First(&do).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	summary := r.toDomain(&do)
	if err := r.cache.Set(ctx, summary); err != nil {
		r.log.WithContext(ctx).Warnf("failed to cache summary for conversation %d: %v", conversationID, err)
	}
	return summary, nil
}

func (r *SummaryRepository) toDomain(do *SummaryDO) *domain.ConversationSummary {
	return &domain.ConversationSummary{
		ID:             do.ID,
		ConversationID: do.ConversationID,
		Summary:        do.Summary,
		LastMessageID:  do.LastMessageID,
		CreatedAt:      do.CreatedAt,
	}
}
