package biz

import (
	"context"
	"fmt"
	"strings"

	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel/attribute"
)

// ChatConfig 对话编排配置
type ChatConfig struct {
	// SystemPrompt 非空时作为首个 system 条目发送，不参与摘要
	SystemPrompt string
	Tools        []domain.ToolDefinition
}

// ChatRequest 发送消息请求，ConversationID 为 0 表示新建对话
type ChatRequest struct {
	ConversationID int64
	Message        string
}

// ChatReply 发送消息结果
//
// Error 非空表示模型调用失败，此时只有用户消息被保存。
type ChatReply struct {
	ConversationID int64
	MessageID      int64
	Response       string
	Error          string
	ToolCalls      []domain.ToolCall
	Summarized     bool
	TitleGenerated bool
	Title          string
}

// ChatUsecase 对话编排用例
type ChatUsecase struct {
	conversations *ConversationUsecase
	messageRepo   domain.MessageRepository
	assembler     *ContextAssembler
	toolLoop      *ToolLoop
	titles        *TitleGeneratorUsecase
	events        EventPublisher
	systemPrompt  string
	tools         []domain.ToolDefinition
	log           *log.Helper
}

// NewChatUsecase 创建对话编排用例
func NewChatUsecase(
	conversations *ConversationUsecase,
	messageRepo domain.MessageRepository,
	assembler *ContextAssembler,
	toolLoop *ToolLoop,
	titles *TitleGeneratorUsecase,
	events EventPublisher,
	config *ChatConfig,
	logger log.Logger,
) *ChatUsecase {
	uc := &ChatUsecase{
		conversations: conversations,
		messageRepo:   messageRepo,
		assembler:     assembler,
		toolLoop:      toolLoop,
		titles:        titles,
		events:        events,
		log:           log.NewHelper(log.With(logger, "module", "biz/chat")),
	}
	if config != nil {
		uc.systemPrompt = strings.TrimSpace(config.SystemPrompt)
		uc.tools = config.Tools
	}
	return uc
}

// SendMessage 保存用户消息、组装上下文、调用模型并保存回复
func (uc *ChatUsecase) SendMessage(ctx context.Context, user *domain.Identity, req *ChatRequest) (*ChatReply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, domain.ErrEmptyMessage
	}

	ctx, span := tracer.Start(ctx, "ChatUsecase.SendMessage")
	defer span.End()

	// 1. 确定对话
	conversation, err := uc.resolveConversation(ctx, user, req.ConversationID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("conversation.id", conversation.ID))

	// 2. 先判断是否首条消息，再保存用户消息
	count, err := uc.messageRepo.CountMessages(ctx, conversation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}
	isFirst := count == 0

	userMessage, err := uc.messageRepo.SaveMessage(ctx, conversation.ID, domain.MessageTypeUser, req.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}
	uc.events.PublishMessageCreated(ctx, userMessage)

	// 3. 组装上下文
	assembled, err := uc.assembler.Assemble(ctx, conversation.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble context: %w", err)
	}

	reply := &ChatReply{
		ConversationID: conversation.ID,
		Summarized:     assembled.Summarized,
	}

	// 4. 模型调用（含一轮工具确认）
	entries := withUserTurn(assembled.Entries, req.Message, assembled.Summarized)
	result := uc.toolLoop.Run(domain.WithOperation(ctx, domain.OperationChat), uc.withSystemPrompt(entries), uc.tools)
	if result.Failed() {
		reply.Error = failureText(result)
		uc.log.WithContext(ctx).Warnf("conversation %d completion failed: %s", conversation.ID, reply.Error)
		return reply, nil
	}

	// 5. 保存回复
	aiMessage, err := uc.messageRepo.SaveMessage(ctx, conversation.ID, domain.MessageTypeAI, result.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to save ai message: %w", err)
	}
	uc.events.PublishMessageCreated(ctx, aiMessage)

	reply.MessageID = aiMessage.ID
	reply.Response = result.Response
	reply.ToolCalls = result.ToolCalls

	// 6. 首轮对话生成标题，失败不影响回复
	if isFirst {
		title, err := uc.titles.GenerateTitle(ctx, conversation.ID, req.Message)
		if err != nil {
			uc.log.WithContext(ctx).Warnf("conversation %d title generation failed: %v", conversation.ID, err)
		} else {
			reply.TitleGenerated = true
			reply.Title = title
		}
	}

	span.SetAttributes(
		attribute.Bool("chat.summarized", reply.Summarized),
		attribute.Int("chat.tool_calls", len(reply.ToolCalls)),
	)
	return reply, nil
}

func (uc *ChatUsecase) resolveConversation(ctx context.Context, user *domain.Identity, conversationID int64) (*domain.Conversation, error) {
	if conversationID == 0 {
		return uc.conversations.CreateConversation(ctx, user)
	}
	return uc.conversations.GetOwnedConversation(ctx, conversationID, user)
}

// withUserTurn 保证请求以本轮用户消息结尾
//
// 摘要高水位包含刚保存的用户消息，摘要后的上下文不再携带它，需要补回；高水位保持不变。
func withUserTurn(entries []domain.ChatEntry, message string, summarized bool) []domain.ChatEntry {
	if n := len(entries); n > 0 && entries[n-1].Role == domain.ChatRoleUser && entries[n-1].Content == message {
		return entries
	}
	if !summarized && hasUserEntry(entries) {
		return entries
	}
	out := make([]domain.ChatEntry, 0, len(entries)+1)
	out = append(out, entries...)
	return append(out, domain.ChatEntry{Role: domain.ChatRoleUser, Content: message})
}

func hasUserEntry(entries []domain.ChatEntry) bool {
	for _, entry := range entries {
		if entry.Role == domain.ChatRoleUser {
			return true
		}
	}
	return false
}

func (uc *ChatUsecase) withSystemPrompt(entries []domain.ChatEntry) []domain.ChatEntry {
	if uc.systemPrompt == "" {
		return entries
	}
	out := make([]domain.ChatEntry, 0, len(entries)+1)
	out = append(out, domain.ChatEntry{Role: domain.ChatRoleSystem, Content: uc.systemPrompt})
	return append(out, entries...)
}
