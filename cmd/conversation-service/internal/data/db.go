package data

import (
	"fmt"

	"chatassistant/pkg/database"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

// NewDB 创建数据库连接并迁移表结构
func NewDB(config *database.Config, logger log.Logger) (*gorm.DB, func(), error) {
	db, err := database.NewDB(config, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := autoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	helper := log.NewHelper(log.With(logger, "module", "data"))
	cleanup := func() {
		if err := database.Close(db); err != nil {
			helper.Errorf("failed to close database: %v", err)
		}
	}
	return db, cleanup, nil
}

// autoMigrate 自动迁移数据库表
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserDO{},
		&ConversationDO{},
		&MessageDO{},
		&MessageEditDO{},
		&SummaryDO{},
	)
}
