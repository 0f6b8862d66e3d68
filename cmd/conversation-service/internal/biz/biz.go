package biz

import (
	"context"

	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/google/wire"
	"go.opentelemetry.io/otel"
)

// ProviderSet biz 层依赖注入集合
var ProviderSet = wire.NewSet(
	NewSummarizer,
	wire.Bind(new(SummaryGenerator), new(*Summarizer)),
	NewContextAssembler,
	NewToolLoop,
	NewTitleGeneratorUsecase,
	NewChatUsecase,
	NewConversationUsecase,
	NewUserUsecase,
)

var tracer = otel.Tracer("conversation-service/biz")

// ChatCompleter 模型补全网关
//
// 实现方不返回 Go error：所有失败都体现在 CompletionResult.Error 上。
type ChatCompleter interface {
	Complete(ctx context.Context, entries []domain.ChatEntry, tools []domain.ToolDefinition) *domain.CompletionResult
}

// EventPublisher 领域事件发布器，发布失败由实现方记录日志，不影响请求
type EventPublisher interface {
	PublishMessageCreated(ctx context.Context, msg *domain.Message)
	PublishConversationSummarized(ctx context.Context, summary *domain.ConversationSummary)
	PublishConversationDeleted(ctx context.Context, conversationID int64, userID string)
}
