package biz

import (
	"context"
	"fmt"
	"strings"

	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
)

// maxTitleLength 侧边栏标题最大字符数
const maxTitleLength = 25

const titlePromptTemplate = "Create a very short title (max 25 characters) for a sidebar chat list. " +
	"Based on this message: \"%s\". Reply only with the title, no quotes."

// TitleGeneratorUsecase 标题生成用例
type TitleGeneratorUsecase struct {
	llm              ChatCompleter
	conversationRepo domain.ConversationRepository
	log              *log.Helper
}

// NewTitleGeneratorUsecase 创建标题生成用例
func NewTitleGeneratorUsecase(
	llm ChatCompleter,
	conversationRepo domain.ConversationRepository,
	logger log.Logger,
) *TitleGeneratorUsecase {
	return &TitleGeneratorUsecase{
		llm:              llm,
		conversationRepo: conversationRepo,
		log:              log.NewHelper(log.With(logger, "module", "biz/title_generator")),
	}
}

// GenerateTitle 根据首条用户消息生成并保存标题
func (uc *TitleGeneratorUsecase) GenerateTitle(ctx context.Context, conversationID int64, firstMessage string) (string, error) {
	title := uc.SuggestTitle(ctx, firstMessage)
	if err := uc.conversationRepo.UpdateTitle(ctx, conversationID, title); err != nil {
		return "", fmt.Errorf("update conversation title: %w", err)
	}
	return title, nil
}

// SuggestTitle 生成标题，模型失败或结果过于笼统时退化为消息前三个词
func (uc *TitleGeneratorUsecase) SuggestTitle(ctx context.Context, firstMessage string) string {
	prompt := []domain.ChatEntry{
		{Role: domain.ChatRoleUser, Content: fmt.Sprintf(titlePromptTemplate, firstMessage)},
	}

	result := uc.llm.Complete(domain.WithOperation(ctx, domain.OperationTitle), prompt, nil)
	if result.Failed() {
		uc.log.WithContext(ctx).Warnf("title generation failed: %s", failureText(result))
		titleGenerationTotal.WithLabelValues("fallback").Inc()
		return fallbackTitle(firstMessage)
	}

	title := cleanTitle(result.Response)
	if strings.EqualFold(title, domain.DefaultConversationTitle) && firstMessage != "" {
		titleGenerationTotal.WithLabelValues("fallback").Inc()
		return fallbackTitle(firstMessage)
	}

	titleGenerationTotal.WithLabelValues("model").Inc()
	return title
}

// cleanTitle 去引号、裁剪长度
func cleanTitle(raw string) string {
	title := strings.NewReplacer(`"`, "", "'", "").Replace(strings.TrimSpace(raw))
	title = truncateRunes(strings.TrimSpace(title), maxTitleLength)
	if title == "" {
		return domain.DefaultConversationTitle
	}
	return title
}

// fallbackTitle 取消息前三个词
func fallbackTitle(message string) string {
	words := strings.Fields(message)
	if len(words) > 3 {
		words = words[:3]
	}
	title := truncateRunes(strings.Join(words, " "), maxTitleLength)
	if title == "" {
		return domain.DefaultConversationTitle
	}
	return title
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
