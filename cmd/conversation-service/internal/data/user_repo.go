package data

import (
	"context"
	"errors"
	"time"

	"chatassistant/cmd/conversation-service/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserDO 用户数据对象
type UserDO struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"column:user_id;size:255;uniqueIndex;not null"`
	Email     string `gorm:"size:255"`
	Name      string `gorm:"size:255"`
	IsAdmin   bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	LastLogin time.Time
}

// TableName 指定表名
func (UserDO) TableName() string {
	return "users"
}

// UserRepository 用户仓储实现
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) domain.UserRepository {
	return &UserRepository{db: db}
}

// EnsureUser 插入或刷新用户；空的 email/name 不覆盖已有值
func (r *UserRepository) EnsureUser(ctx context.Context, userID, email, name string) (*domain.User, error) {
	now := time.Now().UTC()
	var do UserDO

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		insert := &UserDO{UserID: userID, Email: email, Name: name, CreatedAt: now, LastLogin: now}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(insert).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{"last_login": now}
		if email != "" {
			updates["email"] = email
		}
		if name != "" {
			updates["name"] = name
		}
		if err := tx.Model(&UserDO{}).Where("user_id = ?", userID).Updates(updates).Error; err != nil {
			return err
		}

		return tx.Where("user_id = ?", userID).First(&do).Error
	})
	if err != nil {
		return nil, err
	}

	return r.toDomain(&do), nil
}

// GetUser 获取用户
func (r *UserRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var do UserDO
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&do).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return r.toDomain(&do), nil
}

func (r *UserRepository) toDomain(do *UserDO) *domain.User {
	return &domain.User{
		ID:        do.ID,
		UserID:    do.UserID,
		Email:     do.Email,
		Name:      do.Name,
		IsAdmin:   do.IsAdmin,
		CreatedAt: do.CreatedAt,
		LastLogin: do.LastLogin,
	}
}
