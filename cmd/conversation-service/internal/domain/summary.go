package domain

import "time"

// ConversationSummary 对话摘要
//
// LastMessageID 为高水位：ID 小于等于它的消息已被摘要覆盖，
// 不再逐条送入模型上下文。同一对话的高水位单调不减。
type ConversationSummary struct {
	ID             int64
	ConversationID int64
	Summary        string
	LastMessageID  int64
	CreatedAt      time.Time
}

// HighWaterMark 空摘要返回 0
func (s *ConversationSummary) HighWaterMark() int64 {
	if s == nil {
		return 0
	}
	return s.LastMessageID
}
