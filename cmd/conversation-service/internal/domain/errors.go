package domain

import "errors"

var (
	// ErrConversationNotFound 对话未找到
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrMessageNotFound 消息未找到
	ErrMessageNotFound = errors.New("message not found")

	// ErrUserNotFound 用户未找到
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidMessageType 无效的消息类型
	ErrInvalidMessageType = errors.New("invalid message type")

	// ErrEmptyMessage 消息内容为空
	ErrEmptyMessage = errors.New("message content is empty")

	// ErrStaleSummary 摘要高水位低于已有摘要
	ErrStaleSummary = errors.New("summary high-water mark is behind the latest summary")

	// ErrUnauthorized 未认证
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden 无权限（包括管理员对他人对话的写操作）
	ErrForbidden = errors.New("forbidden")
)
