package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultMaxAttempts  = 8
	DefaultRetryBackoff = 5 * time.Second
	maxRetryBackoff     = 5 * time.Minute
	promoteBatch        = 100
)

// promoteScript moves due messages from the delayed set to the far end of
// the ready list, behind everything already waiting.
var promoteScript = redis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for _, m in ipairs(due) do
	redis.call("ZREM", KEYS[1], m)
	redis.call("LPUSH", KEYS[2], m)
end
return #due`)

// RedisQueue is a reliable list queue: LPUSH to publish, BRPOPLPUSH into a
// processing list to receive, LREM from the processing list to ack.
//
// A nacked message waits in a delayed sorted set with exponential backoff
// and returns to the ready list once due. After maxAttempts deliveries it
// moves to the dead-letter list instead.
type RedisQueue struct {
	client      *redis.Client
	key         string
	processing  string
	delayed     string
	dead        string
	wait        time.Duration
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

// RedisOption configures a RedisQueue.
type RedisOption func(*RedisQueue)

// WithRetry sets the delivery cap and the first redelivery delay. The delay
// doubles per attempt up to five minutes.
func WithRetry(maxAttempts int, backoff time.Duration) RedisOption {
	return func(q *RedisQueue) {
		if maxAttempts > 0 {
			q.maxAttempts = maxAttempts
		}
		if backoff > 0 {
			q.backoff = backoff
		}
	}
}

// NewRedisQueue creates a queue stored under key. Redis blocks in whole
// seconds and treats zero as forever, so wait is raised to one second.
func NewRedisQueue(client *redis.Client, key string, wait time.Duration, opts ...RedisOption) *RedisQueue {
	if wait < time.Second {
		wait = time.Second
	}
	q := &RedisQueue{
		client:      client,
		key:         key,
		processing:  key + ":processing",
		delayed:     key + ":delayed",
		dead:        key + ":dead",
		wait:        wait,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultRetryBackoff,
		now:         time.Now,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Publish pushes msg onto the queue.
func (q *RedisQueue) Publish(ctx context.Context, msg Message) error {
	body, err := encode(msg)
	if err != nil {
		return err
	}
	if err := q.client.LPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// Receive promotes due retries, then blocks up to the wait time for one
// message.
func (q *RedisQueue) Receive(ctx context.Context) ([]*Delivery, error) {
	if err := q.promote(ctx); err != nil {
		return nil, err
	}

	body, err := q.client.BRPopLPush(ctx, q.key, q.processing, q.wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis brpoplpush: %w", err)
	}

	msg, err := decode(body)
	if err != nil {
		log.Warn("dropping bad queue message", "queue", q.key, "error", err)
		q.client.LRem(ctx, q.processing, 1, body)
		return nil, nil
	}
	return []*Delivery{{
		Message: msg,
		ack: func(ctx context.Context) error {
			return q.client.LRem(ctx, q.processing, 1, body).Err()
		},
		nack: func(ctx context.Context) error {
			return q.retry(ctx, body, msg)
		},
	}}, nil
}

func (q *RedisQueue) promote(ctx context.Context) error {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	err := promoteScript.Run(ctx, q.client, []string{q.delayed, q.key}, now, promoteBatch).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis promote retries: %w", err)
	}
	return nil
}

// retry takes body off the processing list and schedules its next attempt,
// or dead-letters it once the cap is reached.
func (q *RedisQueue) retry(ctx context.Context, body string, msg Message) error {
	msg.Attempts++
	next, err := encode(msg)
	if err != nil {
		return err
	}
	dead := msg.Attempts >= q.maxAttempts
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.processing, 1, body)
		if dead {
			p.LPush(ctx, q.dead, next)
			return nil
		}
		due := q.now().Add(q.delay(msg.Attempts)).UnixMilli()
		p.ZAdd(ctx, q.delayed, redis.Z{Score: float64(due), Member: next})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis nack: %w", err)
	}
	if dead {
		log.Warn("import message dead-lettered", "queue", q.key, "import_id", msg.ImportID, "attempts", msg.Attempts)
	}
	return nil
}

// delay is backoff doubled per previous failure, capped.
func (q *RedisQueue) delay(attempts int) time.Duration {
	d := q.backoff
	for i := 1; i < attempts && d < maxRetryBackoff; i++ {
		d *= 2
	}
	return min(d, maxRetryBackoff)
}

// DeadLetters returns the messages that exhausted their attempts, newest
// first.
func (q *RedisQueue) DeadLetters(ctx context.Context) ([]Message, error) {
	bodies, err := q.client.LRange(ctx, q.dead, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	out := make([]Message, 0, len(bodies))
	for _, b := range bodies {
		if msg, err := decode(b); err == nil {
			out = append(out, msg)
		}
	}
	return out, nil
}

// RequeueInFlight moves every message left in the processing list back onto
// the queue. Run it when no consumer is active, e.g. on worker start after a
// crash; messages held by live consumers would be delivered twice.
func (q *RedisQueue) RequeueInFlight(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.RPopLPush(ctx, q.processing, q.key).Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("requeue in-flight: %w", err)
		}
		n++
	}
}
