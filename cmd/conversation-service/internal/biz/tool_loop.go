package biz

import (
	"context"
	"strings"

	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

// ToolAcknowledgement 回传给模型的工具执行确认
//
// 工具由客户端执行，服务端只确认调用已被接受。
const ToolAcknowledgement = `{"success":true,"message":"Tool call acknowledged"}`

// ToolLoop 工具调用循环控制器
//
// 模型返回工具调用时，附加确认结果后再请求一轮；第二轮的工具调用被丢弃。
type ToolLoop struct {
	llm ChatCompleter
	log *log.Helper
}

// NewToolLoop 创建工具调用循环控制器
func NewToolLoop(llm ChatCompleter, logger log.Logger) *ToolLoop {
	return &ToolLoop{
		llm: llm,
		log: log.NewHelper(log.With(logger, "module", "biz/tool_loop")),
	}
}

// Run 执行一次补全，必要时追加一轮工具确认
func (l *ToolLoop) Run(ctx context.Context, entries []domain.ChatEntry, tools []domain.ToolDefinition) *domain.CompletionResult {
	// 1. 首轮
	first := l.llm.Complete(ctx, entries, tools)
	if first == nil {
		return domain.ErrorResult("No response from AI API")
	}
	if first.Failed() || !first.HasToolCalls() {
		return first
	}

	l.log.WithContext(ctx).Infof("model requested %d tool call(s), sending acknowledgements", len(first.ToolCalls))

	// 2. 追加 assistant 回显与工具确认后再请求一轮
	second := l.llm.Complete(ctx, BuildToolFollowUp(entries, first), tools)
	if second.Failed() {
		toolRoundsTotal.WithLabelValues("failed").Inc()
		return domain.ErrorResult(failureText(second))
	}
	toolRoundsTotal.WithLabelValues("succeeded").Inc()

	if second.HasToolCalls() {
		l.log.WithContext(ctx).Warnf("dropping %d tool call(s) requested in follow-up round", len(second.ToolCalls))
	}

	// 3. 文本取第二轮，工具调用取首轮
	response := second.Response
	if strings.TrimSpace(response) == "" {
		response = first.Response
	}

	return &domain.CompletionResult{
		Response:  response,
		ToolCalls: first.ToolCalls,
	}
}

// BuildToolFollowUp 构建第二轮上下文：原上下文 + assistant 回显 + 每个调用一条 tool 确认
func BuildToolFollowUp(entries []domain.ChatEntry, first *domain.CompletionResult) []domain.ChatEntry {
	followUp := make([]domain.ChatEntry, 0, len(entries)+1+len(first.ToolCalls))
	followUp = append(followUp, entries...)
	followUp = append(followUp, domain.ChatEntry{
		Role:      domain.ChatRoleAssistant,
		Content:   first.Response,
		ToolCalls: first.ToolCalls,
	})
	for _, tc := range first.ToolCalls {
		followUp = append(followUp, domain.ChatEntry{
			Role:       domain.ChatRoleTool,
			Content:    ToolAcknowledgement,
			ToolCallID: tc.ID,
		})
	}
	return followUp
}
