package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"engdocs-qa-platform/internal/logger"
	"engdocs-qa-platform/models"
)

const (
	keyPrefix = "session:"
	// Turns kept per session; older entries are trimmed on append.
	maxTurns = 20
)

// Cache is the short-term conversation memory. It is best effort: every
// operation degrades to empty history on Redis failure so a cache
// outage never breaks the query path.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{client: client, ttl: ttl}
}

// Append pushes one turn and refreshes the TTL.
func (c *Cache) Append(ctx context.Context, sessionID string, turn models.HistoryTurn) {
	data, err := json.Marshal(turn)
	if err != nil {
		return
	}
	key := keyPrefix + sessionID
	pipe := c.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -maxTurns, -1)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("session append failed", "session_id", sessionID, "error", err)
	}
}

// History returns up to n most recent turns in chronological order.
// Returns empty on any failure.
func (c *Cache) History(ctx context.Context, sessionID string, n int64) []models.HistoryTurn {
	if n <= 0 {
		n = 10
	}
	entries, err := c.client.LRange(ctx, keyPrefix+sessionID, -n, -1).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("session history read failed", "session_id", sessionID, "error", err)
		}
		return nil
	}

	turns := make([]models.HistoryTurn, 0, len(entries))
	for _, entry := range entries {
		var turn models.HistoryTurn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			continue
		}
		turns = append(turns, turn)
	}
	return turns
}

// Exists reports whether the session has cached history.
func (c *Cache) Exists(ctx context.Context, sessionID string) bool {
	n, err := c.client.Exists(ctx, keyPrefix+sessionID).Result()
	return err == nil && n > 0
}

// Warm seeds a session from durable history, typically after a cache
// miss on an existing conversation. Best effort.
func (c *Cache) Warm(ctx context.Context, sessionID string, turns []models.HistoryTurn) {
	if len(turns) == 0 {
		return
	}
	key := keyPrefix + sessionID
	pipe := c.client.Pipeline()
	pipe.Del(ctx, key)
	for _, turn := range turns {
		data, err := json.Marshal(turn)
		if err != nil {
			continue
		}
		pipe.RPush(ctx, key, data)
	}
	pipe.LTrim(ctx, key, -maxTurns, -1)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("session warm failed", "session_id", sessionID, "error", err)
	}
}

// Clear drops a session's cached history.
func (c *Cache) Clear(ctx context.Context, sessionID string) {
	if err := c.client.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		logger.Warn("session clear failed", "session_id", sessionID, "error", err)
	}
}
