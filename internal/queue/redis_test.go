package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisQueue(client, "imports:queue", time.Second), mr
}

func TestRedisQueue_PublishReceiveAck(t *testing.T) {
	q, mr := newRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, Message{ImportID: "a"}))
	require.NoError(t, q.Publish(ctx, Message{ImportID: "b"}))

	got, err := q.Receive(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Message.ImportID, "first published is first received")

	inFlight, _ := mr.List("imports:queue:processing")
	assert.Len(t, inFlight, 1)

	require.NoError(t, got[0].Ack(ctx))
	inFlight, _ = mr.List("imports:queue:processing")
	assert.Empty(t, inFlight)
}

func TestRedisQueue_NackDelaysRedelivery(t *testing.T) {
	q, mr := newRedisQueue(t)
	now := time.Unix(1_700_000_000, 0)
	q.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, Message{ImportID: "a"}))
	require.NoError(t, q.Publish(ctx, Message{ImportID: "b"}))
	got, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, got[0].Nack(ctx))

	inFlight, _ := mr.List("imports:queue:processing")
	assert.Empty(t, inFlight)
	delayed, _ := mr.ZMembers("imports:queue:delayed")
	assert.Len(t, delayed, 1)

	next, err := q.Receive(ctx)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, "b", next[0].Message.ImportID, "a retry does not jump ahead of waiting messages")
	require.NoError(t, next[0].Ack(ctx))

	now = now.Add(DefaultRetryBackoff)
	again, err := q.Receive(ctx)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, "a", again[0].Message.ImportID)
	assert.Equal(t, 1, again[0].Message.Attempts)
}

func TestRedisQueue_DeadLettersAfterMaxAttempts(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	q := NewRedisQueue(client, "imports:queue", time.Second, WithRetry(3, time.Second))
	now := time.Unix(1_700_000_000, 0)
	q.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, Message{ImportID: "gone"}))
	for i := 0; i < 3; i++ {
		got, err := q.Receive(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1, "delivery %d", i+1)
		require.NoError(t, got[0].Nack(ctx))
		now = now.Add(maxRetryBackoff)
	}

	dead, err := q.DeadLetters(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Message{{ImportID: "gone", Attempts: 3}}, dead)
	delayed, _ := mr.ZMembers("imports:queue:delayed")
	assert.Empty(t, delayed)
	assert.False(t, mr.Exists("imports:queue"))
}

func TestRedisQueue_RetryDelayDoublesUpToCap(t *testing.T) {
	q := NewRedisQueue(nil, "k", time.Second, WithRetry(0, time.Second))
	assert.Equal(t, time.Second, q.delay(1))
	assert.Equal(t, 4*time.Second, q.delay(3))
	assert.Equal(t, maxRetryBackoff, q.delay(20))
}

func TestRedisQueue_ReceiveEmpty(t *testing.T) {
	q, _ := newRedisQueue(t)
	got, err := q.Receive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRedisQueue_DropsBadMessage(t *testing.T) {
	q, mr := newRedisQueue(t)
	mr.Lpush("imports:queue", "not json")

	got, err := q.Receive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	inFlight, _ := mr.List("imports:queue:processing")
	assert.Empty(t, inFlight)
}

func TestRedisQueue_RequeueInFlight(t *testing.T) {
	q, _ := newRedisQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, Message{ImportID: "a"}))
	_, err := q.Receive(ctx) // crash before ack
	require.NoError(t, err)

	n, err := q.RequeueInFlight(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := q.Receive(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Message.ImportID)
}

func TestPublish_RejectsEmptyImportID(t *testing.T) {
	q, _ := newRedisQueue(t)
	assert.Error(t, q.Publish(context.Background(), Message{}))
}
