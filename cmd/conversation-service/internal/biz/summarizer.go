package biz

import (
	"context"
	"fmt"
	"strings"

	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

const (
	// SummaryUnavailable 摘要失败时的占位文本，不得持久化
	SummaryUnavailable = "Unable to generate summary"

	summarySystemPrompt = "You are a helpful assistant that summarizes conversations. " +
		"Create a concise summary that preserves all important context, decisions, and information " +
		"needed to continue the conversation coherently."
	summaryRequestPrefix = "Please summarize the following conversation:\n\n"
)

// SummaryResult 摘要结果
type SummaryResult struct {
	Summary   string
	Succeeded bool
}

// SummaryGenerator 摘要生成接口
type SummaryGenerator interface {
	Summarize(ctx context.Context, entries []domain.ChatEntry) SummaryResult
}

// Summarizer 基于模型网关的摘要器
type Summarizer struct {
	llm ChatCompleter
	log *log.Helper
}

// NewSummarizer 创建摘要器
func NewSummarizer(llm ChatCompleter, logger log.Logger) *Summarizer {
	return &Summarizer{
		llm: llm,
		log: log.NewHelper(log.With(logger, "module", "biz/summarizer")),
	}
}

// Summarize 将条目渲染为文本记录并请求模型生成摘要
func (s *Summarizer) Summarize(ctx context.Context, entries []domain.ChatEntry) SummaryResult {
	request := []domain.ChatEntry{
		{Role: domain.ChatRoleSystem, Content: summarySystemPrompt},
		{Role: domain.ChatRoleUser, Content: summaryRequestPrefix + RenderTranscript(entries)},
	}

	result := s.llm.Complete(domain.WithOperation(ctx, domain.OperationSummary), request, nil)
	if result.Failed() {
		s.log.WithContext(ctx).Warnf("summary generation failed: %s", failureText(result))
		return SummaryResult{Summary: SummaryUnavailable}
	}

	summary := strings.TrimSpace(result.Response)
	if summary == "" {
		s.log.WithContext(ctx).Warn("summary generation returned empty text")
		return SummaryResult{Summary: SummaryUnavailable}
	}

	return SummaryResult{Summary: summary, Succeeded: true}
}

// RenderTranscript 渲染为 "role: content"，条目之间空行分隔
func RenderTranscript(entries []domain.ChatEntry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s: %s", e.Role, e.Content))
	}
	return strings.Join(parts, "\n\n")
}

func failureText(r *domain.CompletionResult) string {
	if r == nil {
		return "no result"
	}
	return r.Error
}
