package biz

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"chatassistant/cmd/conversation-service/internal/domain"
)

// stubCompleter 按顺序返回预设结果并记录请求
type stubCompleter struct {
	mu       sync.Mutex
	results  []*domain.CompletionResult
	requests [][]domain.ChatEntry
	tools    [][]domain.ToolDefinition
	ops      []string
}

func newStubCompleter(results ...*domain.CompletionResult) *stubCompleter {
	return &stubCompleter{results: results}
}

func (s *stubCompleter) Complete(ctx context.Context, entries []domain.ChatEntry, tools []domain.ToolDefinition) *domain.CompletionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := append([]domain.ChatEntry(nil), entries...)
	s.requests = append(s.requests, copied)
	s.tools = append(s.tools, tools)
	s.ops = append(s.ops, domain.OperationFromContext(ctx))
	if len(s.results) == 0 {
		return &domain.CompletionResult{Response: "default response"}
	}
	r := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return r
}

func (s *stubCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// routedCompleter 按用途路由到不同的桩
type routedCompleter struct {
	byOp map[string]*stubCompleter
}

func (r *routedCompleter) Complete(ctx context.Context, entries []domain.ChatEntry, tools []domain.ToolDefinition) *domain.CompletionResult {
	return r.byOp[domain.OperationFromContext(ctx)].Complete(ctx, entries, tools)
}

type memMessageRepo struct {
	mu       sync.Mutex
	nextID   int64
	messages []*domain.Message
	edits    []*domain.MessageEdit
	saveErr  error
	saves    int
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{}
}

func (r *memMessageRepo) SaveMessage(_ context.Context, conversationID int64, typ domain.MessageType, content string) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	r.nextID++
	m := &domain.Message{ID: r.nextID, ConversationID: conversationID, Type: typ, Content: content, CreatedAt: time.Now()}
	r.messages = append(r.messages, m)
	return m, nil
}

func (r *memMessageRepo) GetMessage(_ context.Context, id int64) (*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			c := *m
			return &c, nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func (r *memMessageRepo) ListMessages(ctx context.Context, conversationID int64) ([]*domain.Message, error) {
	return r.ListMessagesAfter(ctx, conversationID, 0)
}

func (r *memMessageRepo) ListMessagesAfter(_ context.Context, conversationID, afterID int64) ([]*domain.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.ID > afterID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memMessageRepo) CountMessages(_ context.Context, conversationID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.messages {
		if m.ConversationID == conversationID {
			n++
		}
	}
	return n, nil
}

func (r *memMessageRepo) UpdateMessageContent(_ context.Context, id int64, content string) (*domain.MessageEdit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			edit := &domain.MessageEdit{ID: int64(len(r.edits) + 1), MessageID: id, PreviousContent: m.Content, EditedAt: time.Now()}
			r.edits = append(r.edits, edit)
			m.Content = content
			return edit, nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func (r *memMessageRepo) byType(typ domain.MessageType) []*domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Message
	for _, m := range r.messages {
		if m.Type == typ {
			out = append(out, m)
		}
	}
	return out
}

type memSummaryRepo struct {
	mu        sync.Mutex
	summaries []*domain.ConversationSummary
	saveErr   error
}

func (r *memSummaryRepo) SaveSummary(_ context.Context, conversationID int64, summary string, lastMessageID int64) (*domain.ConversationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	s := &domain.ConversationSummary{
		ID:             int64(len(r.summaries) + 1),
		ConversationID: conversationID,
		Summary:        summary,
		LastMessageID:  lastMessageID,
		CreatedAt:      time.Now(),
	}
	r.summaries = append(r.summaries, s)
	return s, nil
}

func (r *memSummaryRepo) GetLatestSummary(_ context.Context, conversationID int64) (*domain.ConversationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.ConversationSummary
	for _, s := range r.summaries {
		if s.ConversationID == conversationID && (latest == nil || s.ID > latest.ID) {
			latest = s
		}
	}
	return latest, nil
}

type memConversationRepo struct {
	mu            sync.Mutex
	nextID        int64
	conversations map[int64]*domain.Conversation
}

func newMemConversationRepo() *memConversationRepo {
	return &memConversationRepo{conversations: make(map[int64]*domain.Conversation)}
}

func (r *memConversationRepo) CreateConversation(_ context.Context, userID, title string) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c := &domain.Conversation{ID: r.nextID, UserID: userID, Title: title, CreatedAt: time.Now()}
	r.conversations[c.ID] = c
	return c, nil
}

func (r *memConversationRepo) GetConversation(_ context.Context, id int64) (*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *memConversationRepo) ListConversations(_ context.Context, userID string) ([]*domain.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Conversation
	for _, c := range r.conversations {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memConversationRepo) ListAllConversations(_ context.Context) ([]*domain.ConversationWithOwner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.ConversationWithOwner
	for _, c := range r.conversations {
		out = append(out, &domain.ConversationWithOwner{Conversation: *c})
	}
	return out, nil
}

func (r *memConversationRepo) UpdateTitle(_ context.Context, id int64, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return domain.ErrConversationNotFound
	}
	c.Title = title
	return nil
}

func (r *memConversationRepo) DeleteConversation(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conversations[id]; !ok {
		return domain.ErrConversationNotFound
	}
	delete(r.conversations, id)
	return nil
}

type memUserRepo struct {
	users map[string]*domain.User
}

func (r *memUserRepo) EnsureUser(_ context.Context, userID, email, name string) (*domain.User, error) {
	if r.users == nil {
		r.users = make(map[string]*domain.User)
	}
	u, ok := r.users[userID]
	if !ok {
		u = &domain.User{ID: int64(len(r.users) + 1), UserID: userID, CreatedAt: time.Now()}
		r.users[userID] = u
	}
	if email != "" {
		u.Email = email
	}
	if name != "" {
		u.Name = name
	}
	u.LastLogin = time.Now()
	return u, nil
}

func (r *memUserRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	if u, ok := r.users[userID]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

type recordingEvents struct {
	mu         sync.Mutex
	created    []*domain.Message
	summarized []*domain.ConversationSummary
	deleted    []int64
}

func (e *recordingEvents) PublishMessageCreated(_ context.Context, msg *domain.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.created = append(e.created, msg)
}

func (e *recordingEvents) PublishConversationSummarized(_ context.Context, summary *domain.ConversationSummary) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.summarized = append(e.summarized, summary)
}

func (e *recordingEvents) PublishConversationDeleted(_ context.Context, conversationID int64, _ string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = append(e.deleted, conversationID)
}

type recordingCache struct {
	invalidated []int64
	err         error
}

func (c *recordingCache) Invalidate(_ context.Context, conversationID int64) error {
	c.invalidated = append(c.invalidated, conversationID)
	return c.err
}

var errStorage = errors.New("storage unavailable")
