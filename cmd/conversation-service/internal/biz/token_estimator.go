package biz

import (
	"encoding/json"
	"unicode/utf8"

	"chatassistant/cmd/conversation-service/internal/domain"
)

// charsPerToken 字符/Token 近似比例
const charsPerToken = 4

// EstimateTokens 估算上下文的 Token 数
//
// 统计所有条目内容以及工具调用名称和参数 JSON 的字符数，按 4 字符 1 Token 向上取整。
// 纯函数：相同输入结果相同，追加条目不会使结果变小。
func EstimateTokens(entries []domain.ChatEntry) int {
	chars := 0
	for i := range entries {
		chars += entryChars(&entries[i])
	}
	return (chars + charsPerToken - 1) / charsPerToken
}

func entryChars(e *domain.ChatEntry) int {
	n := utf8.RuneCountInString(e.Content)
	for _, tc := range e.ToolCalls {
		n += utf8.RuneCountInString(tc.Name)
		if len(tc.Arguments) == 0 {
			continue
		}
		// map 序列化按 key 排序，结果稳定
		if raw, err := json.Marshal(tc.Arguments); err == nil {
			n += utf8.RuneCount(raw)
		}
	}
	return n
}
