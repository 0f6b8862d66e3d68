package biz

import (
	"context"
	"fmt"
	"strings"

	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

// UserConfig 用户相关配置
type UserConfig struct {
	AdminEmails []string
}

// UserUsecase 用户用例
type UserUsecase struct {
	userRepo    domain.UserRepository
	adminEmails map[string]struct{}
	log         *log.Helper
}

// NewUserUsecase 创建用户用例
func NewUserUsecase(userRepo domain.UserRepository, config *UserConfig, logger log.Logger) *UserUsecase {
	admins := make(map[string]struct{})
	if config != nil {
		for _, email := range config.AdminEmails {
			if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
				admins[email] = struct{}{}
			}
		}
	}
	return &UserUsecase{
		userRepo:    userRepo,
		adminEmails: admins,
		log:         log.NewHelper(log.With(logger, "module", "biz/user")),
	}
}

// EnsureUser 登记已认证用户并解析管理员身份
func (uc *UserUsecase) EnsureUser(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	if identity == nil || identity.UserID == "" {
		return nil, domain.ErrUnauthorized
	}

	user, err := uc.userRepo.EnsureUser(ctx, identity.UserID, identity.Email, identity.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}

	resolved := &domain.Identity{
		UserID:  user.UserID,
		Email:   user.Email,
		Name:    user.Name,
		IsAdmin: identity.IsAdmin || user.IsAdmin || uc.isAdminEmail(user.Email),
	}
	return resolved, nil
}

func (uc *UserUsecase) isAdminEmail(email string) bool {
	_, ok := uc.adminEmails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}
