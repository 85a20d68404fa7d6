// Package cache memoizes answers in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"llmpedia-backend/internal/rag"
	"llmpedia-backend/utils"
)

const keyPrefix = "maestro:answer:"

// AnswerCache stores JSON-encoded answers, brotli-compressed when large,
// under a hash of the collection and the normalized question.
type AnswerCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewAnswerCache(rdb redis.Cmdable, ttl time.Duration) *AnswerCache {
	return &AnswerCache{rdb: rdb, ttl: ttl}
}

// Key is the Redis key for a (collection, question) pair.
func Key(collection, question string) string {
	return keyPrefix + utils.HashKey(collection, utils.NormalizeQuestion(question))
}

func (c *AnswerCache) Get(ctx context.Context, collection, question string) (*rag.Answer, bool, error) {
	data, err := c.rdb.Get(ctx, Key(collection, question)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	data, err = utils.DecompressPayload(data)
	if err != nil {
		return nil, false, fmt.Errorf("decode cached answer: %w", err)
	}
	var answer rag.Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		return nil, false, fmt.Errorf("decode cached answer: %w", err)
	}
	return &answer, true, nil
}

func (c *AnswerCache) Set(ctx context.Context, collection, question string, answer *rag.Answer) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	data, err = utils.CompressPayload(data)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, Key(collection, question), data, c.ttl).Err()
}
