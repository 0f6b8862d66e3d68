package domain

import "context"

// ChatRole 发送给模型的上下文角色
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleTool      ChatRole = "tool"
)

// ChatEntry 上下文条目
//
// Content 为空表示 null（仅携带 ToolCalls 的 assistant 条目）。
// ToolCallID 仅用于 tool 条目。
type ChatEntry struct {
	Role       ChatRole
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
}

// ToolCall 模型请求的工具调用
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDefinition 工具定义（function 类型）
type ToolDefinition struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Parameters  map[string]any `json:"parameters" yaml:"parameters"`
}

// CompletionResult 一次模型补全的结果
//
// Error 非空即失败，此时 Response 与 ToolCalls 均无意义。
type CompletionResult struct {
	Response  string     `json:"response"`
	Error     string     `json:"error,omitempty"`
	ToolCalls []ToolCall `json:"toolCalls,omitempty"`
}

// Failed 是否失败
func (r *CompletionResult) Failed() bool {
	return r == nil || r.Error != ""
}

// HasToolCalls 是否包含工具调用
func (r *CompletionResult) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// ErrorResult 构造失败结果
func ErrorResult(msg string) *CompletionResult {
	return &CompletionResult{Error: msg}
}

// 补全用途标签，用于指标与追踪
const (
	OperationChat    = "chat"
	OperationSummary = "summary"
	OperationTitle   = "title"
)

type operationKey struct{}

// WithOperation 在 ctx 上标注本次补全的用途
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// OperationFromContext 未标注时返回 OperationChat
func OperationFromContext(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey{}).(string); ok && op != "" {
		return op
	}
	return OperationChat
}
