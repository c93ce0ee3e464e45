package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nsridhar76/go-orderpipeline/internal/domain"
)

// RedisStream implements Queue on Redis Streams.
type RedisStream struct {
	rdb redis.UniversalClient
}

func NewRedisStream(rdb redis.UniversalClient) *RedisStream {
	return &RedisStream{rdb: rdb}
}

func (q *RedisStream) Append(ctx context.Context, stream string, fields map[string]string) (string, error) {
	values := make(map[string]any, len(fields))
	for k, v := range fields {
		values[k] = v
	}
	id, err := q.rdb.XAdd(ctx, &redis.XAddArgs{Stream: stream, Values: values}).Result()
	if err != nil {
		return "", fmt.Errorf("%w: xadd %s: %v", domain.ErrQueueUnavailable, stream, err)
	}
	return id, nil
}

func (q *RedisStream) ReadBlocking(ctx context.Context, stream, from string, timeout time.Duration, count int64) ([]Entry, error) {
	res, err := q.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, from},
		Count:   count,
		Block:   timeout,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: xread %s: %v", domain.ErrQueueUnavailable, stream, err)
	}

	var out []Entry
	for _, s := range res {
		for _, msg := range s.Messages {
			out = append(out, Entry{ID: msg.ID, Fields: stringFields(msg.Values)})
		}
	}
	return out, nil
}

func (q *RedisStream) LastID(ctx context.Context, stream string) (string, error) {
	msgs, err := q.rdb.XRevRangeN(ctx, stream, "+", "-", 1).Result()
	if err != nil {
		return "", fmt.Errorf("%w: xrevrange %s: %v", domain.ErrQueueUnavailable, stream, err)
	}
	if len(msgs) == 0 {
		return StartID, nil
	}
	return msgs[0].ID, nil
}

func stringFields(values map[string]any) map[string]string {
	out := make(map[string]string, len(values))
	for k, v := range values {
		switch t := v.(type) {
		case string:
			out[k] = t
		case nil:
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
