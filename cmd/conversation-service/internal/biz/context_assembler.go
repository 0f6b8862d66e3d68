package biz

import (
	"context"
	"errors"
	"fmt"

	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultSummaryThreshold 触发摘要的估算 Token 阈值
	DefaultSummaryThreshold = 100000

	summaryEntryPrefix = "Previous conversation summary: "
)

// AssemblerConfig 上下文组装配置
type AssemblerConfig struct {
	SummaryThreshold int
}

// AssembledContext 组装结果
type AssembledContext struct {
	Entries         []domain.ChatEntry
	EstimatedTokens int
	Summarized      bool
	Summary         *domain.ConversationSummary
}

// ContextAssembler 上下文组装器
//
// 从持久化的摘要与消息构建模型上下文，超过阈值时先摘要再返回。
type ContextAssembler struct {
	messageRepo domain.MessageRepository
	summaryRepo domain.SummaryRepository
	summarizer  SummaryGenerator
	events      EventPublisher
	threshold   int
	log         *log.Helper
}

// NewContextAssembler 创建上下文组装器
func NewContextAssembler(
	messageRepo domain.MessageRepository,
	summaryRepo domain.SummaryRepository,
	summarizer SummaryGenerator,
	events EventPublisher,
	config *AssemblerConfig,
	logger log.Logger,
) *ContextAssembler {
	threshold := DefaultSummaryThreshold
	if config != nil && config.SummaryThreshold > 0 {
		threshold = config.SummaryThreshold
	}
	return &ContextAssembler{
		messageRepo: messageRepo,
		summaryRepo: summaryRepo,
		summarizer:  summarizer,
		events:      events,
		threshold:   threshold,
		log:         log.NewHelper(log.With(logger, "module", "biz/context_assembler")),
	}
}

// LoadForAIContext 读取最新摘要以及高水位之后的消息
func (a *ContextAssembler) LoadForAIContext(ctx context.Context, conversationID int64) (*domain.ConversationSummary, []*domain.Message, error) {
	summary, err := a.summaryRepo.GetLatestSummary(ctx, conversationID)
	if err != nil {
		return nil, nil, fmt.Errorf("load latest summary: %w", err)
	}

	messages, err := a.messageRepo.ListMessagesAfter(ctx, conversationID, summary.HighWaterMark())
	if err != nil {
		return nil, nil, fmt.Errorf("load messages: %w", err)
	}

	return summary, messages, nil
}

// Assemble 组装对话上下文
func (a *ContextAssembler) Assemble(ctx context.Context, conversationID int64) (*AssembledContext, error) {
	ctx, span := tracer.Start(ctx, "ContextAssembler.Assemble",
		trace.WithAttributes(attribute.Int64("conversation.id", conversationID)))
	defer span.End()

	// 1. 读取摘要与摘要之后的消息
	summary, messages, err := a.LoadForAIContext(ctx, conversationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// 2. 构建候选上下文并估算
	entries := BuildContext(summary, messages)
	estimated := EstimateTokens(entries)
	span.SetAttributes(attribute.Int("context.estimated_tokens", estimated))

	if estimated < a.threshold || len(entries) == 0 {
		return &AssembledContext{Entries: entries, EstimatedTokens: estimated, Summary: summary}, nil
	}

	a.log.WithContext(ctx).Infof("conversation %d context estimated at %d tokens (threshold %d), summarizing",
		conversationID, estimated, a.threshold)

	// 3. 摘要：旧摘要文本 + 其后的消息
	result := a.summarizer.Summarize(ctx, summarizationInput(summary, messages))
	if !result.Succeeded {
		summarizationTotal.WithLabelValues("failed").Inc()
		a.log.WithContext(ctx).Warnf("conversation %d summarization failed, sending unsummarized context", conversationID)
		return &AssembledContext{Entries: entries, EstimatedTokens: estimated, Summary: summary}, nil
	}

	// 4. 持久化新摘要，高水位取候选中最后一条消息
	highWaterMark := domain.LastMessageID(messages)
	if highWaterMark == 0 {
		highWaterMark = summary.HighWaterMark()
	}
	saved, err := a.summaryRepo.SaveSummary(ctx, conversationID, result.Summary, highWaterMark)
	switch {
	case errors.Is(err, domain.ErrStaleSummary):
		// 并发请求已写入更新的摘要，直接使用
		a.log.WithContext(ctx).Infof("conversation %d already summarized past message %d", conversationID, highWaterMark)
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("save summary: %w", err)
	default:
		summarizationTotal.WithLabelValues("succeeded").Inc()
		a.events.PublishConversationSummarized(ctx, saved)
	}

	// 5. 按新高水位重新读取
	summary, messages, err = a.LoadForAIContext(ctx, conversationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	entries = BuildContext(summary, messages)

	a.log.WithContext(ctx).Infof("conversation %d summarized up to message %d: %d -> %d tokens",
		conversationID, highWaterMark, estimated, EstimateTokens(entries))

	return &AssembledContext{
		Entries:         entries,
		EstimatedTokens: EstimateTokens(entries),
		Summarized:      true,
		Summary:         summary,
	}, nil
}

// BuildContext 构建候选上下文
//
// 摘要作为首个 system 条目；ID 不大于高水位的消息被丢弃。
func BuildContext(summary *domain.ConversationSummary, messages []*domain.Message) []domain.ChatEntry {
	entries := make([]domain.ChatEntry, 0, len(messages)+1)
	if summary != nil && summary.Summary != "" {
		entries = append(entries, domain.ChatEntry{
			Role:    domain.ChatRoleSystem,
			Content: summaryEntryPrefix + summary.Summary,
		})
	}

	hwm := summary.HighWaterMark()
	for _, m := range messages {
		if m.ID <= hwm {
			continue
		}
		entries = append(entries, domain.ChatEntry{Role: roleForMessage(m.Type), Content: m.Content})
	}
	return entries
}

func summarizationInput(summary *domain.ConversationSummary, messages []*domain.Message) []domain.ChatEntry {
	entries := make([]domain.ChatEntry, 0, len(messages)+1)
	if summary != nil && summary.Summary != "" {
		entries = append(entries, domain.ChatEntry{Role: domain.ChatRoleSystem, Content: summary.Summary})
	}
	for _, m := range messages {
		entries = append(entries, domain.ChatEntry{Role: roleForMessage(m.Type), Content: m.Content})
	}
	return entries
}

func roleForMessage(t domain.MessageType) domain.ChatRole {
	switch t {
	case domain.MessageTypeUser:
		return domain.ChatRoleUser
	case domain.MessageTypeAI:
		return domain.ChatRoleAssistant
	default:
		return domain.ChatRoleSystem
	}
}
