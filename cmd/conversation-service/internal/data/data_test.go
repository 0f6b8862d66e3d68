package data

import (
	"context"
	"testing"
	"time"

	"chatassistant/cmd/conversation-service/internal/domain"
	"chatassistant/pkg/database"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, cleanup, err := NewDB(&database.Config{Driver: database.DriverSQLite, LogLevel: "silent"}, log.DefaultLogger)
	require.NoError(t, err)
	t.Cleanup(cleanup)
	return db
}

func newTestCache(t *testing.T) (*SummaryCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewSummaryCache(rdb, nil), mr
}

func TestMessageRepository_OrderAndHighWaterMark(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	var saved []*domain.Message
	for i, content := range []string{"q1", "a1", "q2", "a2"} {
		typ := domain.MessageTypeUser
		if i%2 == 1 {
			typ = domain.MessageTypeAI
		}
		m, err := repo.SaveMessage(ctx, 7, typ, content)
		require.NoError(t, err)
		saved = append(saved, m)
	}
	_, err := repo.SaveMessage(ctx, 8, domain.MessageTypeUser, "other conversation")
	require.NoError(t, err)

	for i := 1; i < len(saved); i++ {
		assert.Greater(t, saved[i].ID, saved[i-1].ID)
	}

	all, err := repo.ListMessages(ctx, 7)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "q1", all[0].Content)
	assert.Equal(t, domain.MessageTypeAI, all[3].Type)

	after, err := repo.ListMessagesAfter(ctx, 7, saved[1].ID)
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, "q2", after[0].Content)
	assert.Equal(t, "a2", after[1].Content)

	count, err := repo.CountMessages(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	_, err = repo.SaveMessage(ctx, 7, domain.MessageType(9), "bad")
	assert.ErrorIs(t, err, domain.ErrInvalidMessageType)
}

func TestMessageRepository_UpdateRecordsEdit(t *testing.T) {
	db := newTestDB(t)
	repo := NewMessageRepository(db)
	ctx := context.Background()

	m, err := repo.SaveMessage(ctx, 1, domain.MessageTypeUser, "original")
	require.NoError(t, err)

	edit, err := repo.UpdateMessageContent(ctx, m.ID, "changed")
	require.NoError(t, err)
	assert.Equal(t, "original", edit.PreviousContent)

	reloaded, err := repo.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", reloaded.Content)

	var edits []MessageEditDO
	require.NoError(t, db.Where("message_id = ?", m.ID).Find(&edits).Error)
	assert.Len(t, edits, 1)

	_, err = repo.UpdateMessageContent(ctx, 999, "x")
	assert.ErrorIs(t, err, domain.ErrMessageNotFound)
}

func TestSummaryRepository_LatestAndStale(t *testing.T) {
	db := newTestDB(t)
	repo := NewSummaryRepository(db, nil, log.DefaultLogger)
	ctx := context.Background()

	none, err := repo.GetLatestSummary(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = repo.SaveSummary(ctx, 3, "first", 10)
	require.NoError(t, err)
	_, err = repo.SaveSummary(ctx, 3, "second", 20)
	require.NoError(t, err)

	latest, err := repo.GetLatestSummary(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "second", latest.Summary)
	assert.Equal(t, int64(20), latest.LastMessageID)

	_, err = repo.SaveSummary(ctx, 3, "stale", 15)
	assert.ErrorIs(t, err, domain.ErrStaleSummary)

	_, err = repo.SaveSummary(ctx, 3, "same mark", 20)
	assert.NoError(t, err)
}

func TestSummaryRepository_UsesCache(t *testing.T) {
	db := newTestDB(t)
	cache, mr := newTestCache(t)
	repo := NewSummaryRepository(db, cache, log.DefaultLogger)
	ctx := context.Background()

	saved, err := repo.SaveSummary(ctx, 5, "cached summary", 42)
	require.NoError(t, err)
	assert.True(t, mr.Exists(summaryKey(5)))

	// 直接删库后仍能从缓存读到
	require.NoError(t, db.Where("id = ?", saved.ID).Delete(&SummaryDO{}).Error)
	latest, err := repo.GetLatestSummary(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "cached summary", latest.Summary)
	assert.Equal(t, int64(42), latest.LastMessageID)

	require.NoError(t, cache.Invalidate(ctx, 5))
	latest, err = repo.GetLatestSummary(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestSummaryCache_KeepsNewerSummary(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	newer := &domain.ConversationSummary{ID: 2, ConversationID: 8, Summary: "newer", LastMessageID: 40}
	older := &domain.ConversationSummary{ID: 1, ConversationID: 8, Summary: "older", LastMessageID: 20}
	sameMarkOlder := &domain.ConversationSummary{ID: 1, ConversationID: 8, Summary: "same mark older", LastMessageID: 40}

	require.NoError(t, cache.Set(ctx, newer))
	require.NoError(t, cache.Set(ctx, older))
	require.NoError(t, cache.Set(ctx, sameMarkOlder))

	got, err := cache.Get(ctx, 8)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "newer", got.Summary)
	assert.Equal(t, int64(40), got.LastMessageID)
	assert.Greater(t, mr.TTL(summaryKey(8)), time.Duration(0))

	newest := &domain.ConversationSummary{ID: 3, ConversationID: 8, Summary: "newest", LastMessageID: 55}
	require.NoError(t, cache.Set(ctx, newest))
	got, err = cache.Get(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, "newest", got.Summary)
}

func TestSummaryRepository_MissReadDoesNotOverwriteNewerSave(t *testing.T) {
	db := newTestDB(t)
	cache, _ := newTestCache(t)
	repo := NewSummaryRepository(db, cache, log.DefaultLogger)
	ctx := context.Background()

	first, err := repo.SaveSummary(ctx, 9, "first", 10)
	require.NoError(t, err)
	second, err := repo.SaveSummary(ctx, 9, "second", 30)
	require.NoError(t, err)

	// 缓存未命中的读取在新摘要提交之后才回填旧值
	require.NoError(t, cache.Set(ctx, first))

	latest, err := repo.GetLatestSummary(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.ID)
	assert.Equal(t, int64(30), latest.LastMessageID)
}

func TestSummaryCache_NilClientIsNoop(t *testing.T) {
	cache := NewSummaryCache(nil, nil)
	ctx := context.Background()

	assert.NoError(t, cache.Set(ctx, &domain.ConversationSummary{ConversationID: 1}))
	got, err := cache.Get(ctx, 1)
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, cache.Invalidate(ctx, 1))
}

func TestConversationRepository_CRUD(t *testing.T) {
	db := newTestDB(t)
	conversations := NewConversationRepository(db)
	ctx := context.Background()

	first, err := conversations.CreateConversation(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultConversationTitle, first.Title)
	second, err := conversations.CreateConversation(ctx, "alice", "Second")
	require.NoError(t, err)
	_, err = conversations.CreateConversation(ctx, "bob", "Bob's")
	require.NoError(t, err)

	list, err := conversations.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)

	require.NoError(t, conversations.UpdateTitle(ctx, first.ID, "Renamed"))
	got, err := conversations.GetConversation(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)

	assert.ErrorIs(t, conversations.UpdateTitle(ctx, 999, "x"), domain.ErrConversationNotFound)
	_, err = conversations.GetConversation(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestConversationRepository_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	conversations := NewConversationRepository(db)
	messages := NewMessageRepository(db)
	summaries := NewSummaryRepository(db, nil, log.DefaultLogger)
	ctx := context.Background()

	conv, err := conversations.CreateConversation(ctx, "alice", "")
	require.NoError(t, err)
	keep, err := conversations.CreateConversation(ctx, "alice", "")
	require.NoError(t, err)

	m, err := messages.SaveMessage(ctx, conv.ID, domain.MessageTypeUser, "hi")
	require.NoError(t, err)
	_, err = messages.UpdateMessageContent(ctx, m.ID, "hello")
	require.NoError(t, err)
	_, err = summaries.SaveSummary(ctx, conv.ID, "s", m.ID)
	require.NoError(t, err)
	_, err = messages.SaveMessage(ctx, keep.ID, domain.MessageTypeUser, "survivor")
	require.NoError(t, err)

	require.NoError(t, conversations.DeleteConversation(ctx, conv.ID))

	var count int64
	require.NoError(t, db.Model(&MessageDO{}).Where("conversation_id = ?", conv.ID).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&MessageEditDO{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&SummaryDO{}).Count(&count).Error)
	assert.Zero(t, count)

	remaining, err := messages.ListMessages(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	assert.ErrorIs(t, conversations.DeleteConversation(ctx, conv.ID), domain.ErrConversationNotFound)
}

func TestConversationRepository_ListAllWithOwner(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	conversations := NewConversationRepository(db)
	ctx := context.Background()

	_, err := users.EnsureUser(ctx, "alice", "alice@example.com", "Alice")
	require.NoError(t, err)
	_, err = conversations.CreateConversation(ctx, "alice", "Hers")
	require.NoError(t, err)
	_, err = conversations.CreateConversation(ctx, "ghost", "Orphan")
	require.NoError(t, err)

	all, err := conversations.ListAllConversations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	byTitle := map[string]*domain.ConversationWithOwner{}
	for _, c := range all {
		byTitle[c.Title] = c
	}
	assert.Equal(t, "alice@example.com", byTitle["Hers"].UserEmail)
	assert.Equal(t, "Alice", byTitle["Hers"].UserName)
	assert.Empty(t, byTitle["Orphan"].UserEmail)
}

func TestUserRepository_EnsureUser(t *testing.T) {
	db := newTestDB(t)
	users := NewUserRepository(db)
	ctx := context.Background()

	created, err := users.EnsureUser(ctx, "sub-1", "a@example.com", "A")
	require.NoError(t, err)
	assert.False(t, created.IsAdmin)

	updated, err := users.EnsureUser(ctx, "sub-1", "", "Renamed")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "a@example.com", updated.Email)
	assert.Equal(t, "Renamed", updated.Name)
	assert.False(t, updated.LastLogin.Before(created.LastLogin))

	_, err = users.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
