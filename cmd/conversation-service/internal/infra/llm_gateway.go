package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/go-kratos/kratos/v2/log"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultModel 默认模型
	DefaultModel = "gpt-oss-120b"

	chatCompletionsPath = "/chat/completions"
)

// LLMConfig 模型网关配置
type LLMConfig struct {
	// APIBase OpenAI 兼容端点，可带或不带 /chat/completions 后缀
	APIBase     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
}

// LLMGateway OpenAI 兼容的聊天补全网关
//
// 单次请求，不重试；所有失败都转换为 CompletionResult.Error。
type LLMGateway struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	log         *log.Helper
}

// NewLLMGateway 创建模型网关
func NewLLMGateway(config *LLMConfig, logger log.Logger) (*LLMGateway, error) {
	if config == nil || config.APIKey == "" {
		return nil, errors.New("llm api key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if base := normalizeAPIBase(config.APIBase); base != "" {
		clientConfig.BaseURL = base
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	return &LLMGateway{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		log:         log.NewHelper(log.With(logger, "module", "infra/llm_gateway")),
	}, nil
}

// Complete 发送一次聊天补全请求
func (g *LLMGateway) Complete(ctx context.Context, entries []domain.ChatEntry, tools []domain.ToolDefinition) *domain.CompletionResult {
	operation := domain.OperationFromContext(ctx)
	ctx, span := tracer.Start(ctx, "LLMGateway.Complete", trace.WithAttributes(
		attribute.String("llm.operation", operation),
		attribute.String("llm.model", g.model),
		attribute.Int("llm.messages", len(entries)),
		attribute.Int("llm.tools", len(tools)),
	))
	defer span.End()

	start := time.Now()
	result := g.complete(ctx, entries, tools)
	llmRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if result.Failed() {
		llmRequestsTotal.WithLabelValues(operation, "error").Inc()
		span.SetStatus(codes.Error, result.Error)
		return result
	}

	llmRequestsTotal.WithLabelValues(operation, "success").Inc()
	span.SetAttributes(attribute.Int("llm.tool_calls", len(result.ToolCalls)))
	return result
}

func (g *LLMGateway) complete(ctx context.Context, entries []domain.ChatEntry, tools []domain.ToolDefinition) *domain.CompletionResult {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    toOpenAIMessages(entries),
		Tools:       toOpenAITools(tools),
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		g.log.WithContext(ctx).Errorf("chat completion request failed: %v", err)
		return domain.ErrorResult(describeRequestError(ctx, err))
	}

	if len(resp.Choices) == 0 {
		return domain.ErrorResult("No response from AI API")
	}

	message := resp.Choices[0].Message
	if len(message.ToolCalls) > 0 {
		calls, err := parseToolCalls(message.ToolCalls)
		if err != nil {
			g.log.WithContext(ctx).Errorf("invalid tool call from model: %v", err)
			return domain.ErrorResult(err.Error())
		}
		return &domain.CompletionResult{Response: message.Content, ToolCalls: calls}
	}

	if strings.TrimSpace(message.Content) == "" {
		return domain.ErrorResult("No response content from AI API")
	}
	return &domain.CompletionResult{Response: message.Content}
}

func toOpenAIMessages(entries []domain.ChatEntry) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(entries))
	for _, e := range entries {
		msg := openai.ChatCompletionMessage{
			Role:       string(e.Role),
			Content:    e.Content,
			ToolCallID: e.ToolCallID,
		}
		for _, tc := range e.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: encodeArguments(tc.Arguments),
				},
			})
		}
		messages = append(messages, msg)
	}
	return messages
}

func toOpenAITools(tools []domain.ToolDefinition) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

// parseToolCalls 解析工具调用参数；空字符串视为 {}，非法 JSON 报错
func parseToolCalls(calls []openai.ToolCall) ([]domain.ToolCall, error) {
	out := make([]domain.ToolCall, 0, len(calls))
	for _, c := range calls {
		args := map[string]any{}
		if raw := strings.TrimSpace(c.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return nil, fmt.Errorf("invalid arguments for tool call %s (%s): %w", c.ID, c.Function.Name, err)
			}
		}
		llmToolCallsTotal.WithLabelValues(c.Function.Name).Inc()
		out = append(out, domain.ToolCall{ID: c.ID, Name: c.Function.Name, Arguments: args})
	}
	return out, nil
}

func encodeArguments(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// describeRequestError 面向调用方的错误描述，不包含上游响应体
func describeRequestError(ctx context.Context, err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("AI API request failed: status %d", apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("AI API request failed: status %d", reqErr.HTTPStatusCode)
	}
	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return "AI API request timed out"
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "AI API request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return "AI API request canceled"
	}
	return "AI API request failed: upstream unreachable"
}

func normalizeAPIBase(base string) string {
	base = strings.TrimSpace(base)
	base = strings.TrimRight(base, "/")
	base = strings.TrimSuffix(base, chatCompletionsPath)
	return strings.TrimRight(base, "/")
}
