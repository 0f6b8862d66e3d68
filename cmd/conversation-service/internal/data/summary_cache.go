package data

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"chatassistant/cmd/conversation-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	summaryKeyPrefix  = "conversation:summary:"
	defaultSummaryTTL = 24 * time.Hour
)

// 仅当新摘要不旧于已缓存摘要时写入（先比高水位，再比摘要 ID）
var setIfNewerScript = redis.NewScript(`
	local current = redis.call('GET', KEYS[1])
	if current then
		local ok, cached = pcall(cjson.decode, current)
		if ok and type(cached) == 'table' then
			local cachedMark = tonumber(cached.LastMessageID) or 0
			local cachedID = tonumber(cached.ID) or 0
			local mark = tonumber(ARGV[2])
			local id = tonumber(ARGV[3])
			if cachedMark > mark or (cachedMark == mark and cachedID > id) then
				return 0
			end
		end
	end
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[4])
	return 1
`)

// SummaryCache 最新摘要缓存
//
// rdb 为 nil 时所有操作为空操作。
type SummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSummaryCache 创建摘要缓存
func NewSummaryCache(rdb *redis.Client, config *RedisConfig) *SummaryCache {
	ttl := defaultSummaryTTL
	if config != nil && config.SummaryTTL > 0 {
		ttl = config.SummaryTTL
	}
	return &SummaryCache{rdb: rdb, ttl: ttl}
}

// Get 读取缓存，未命中返回 (nil, nil)
func (c *SummaryCache) Get(ctx context.Context, conversationID int64) (*domain.ConversationSummary, error) {
	if c == nil || c.rdb == nil {
		return nil, nil
	}

	data, err := c.rdb.Get(ctx, summaryKey(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var summary domain.ConversationSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Set 写入缓存，已缓存更新的摘要时不覆盖
func (c *SummaryCache) Set(ctx context.Context, summary *domain.ConversationSummary) error {
	if c == nil || c.rdb == nil || summary == nil {
		return nil
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return setIfNewerScript.Run(ctx, c.rdb,
		[]string{summaryKey(summary.ConversationID)},
		string(data), summary.LastMessageID, summary.ID, c.ttl.Milliseconds(),
	).Err()
}

// Invalidate 使缓存失效
func (c *SummaryCache) Invalidate(ctx context.Context, conversationID int64) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, summaryKey(conversationID)).Err()
}

func summaryKey(conversationID int64) string {
	return summaryKeyPrefix + strconv.FormatInt(conversationID, 10)
}
