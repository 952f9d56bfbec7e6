package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/queue"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/service/imports"
	"github.com/DuneV/Marketing-page-mockup-sub000/internal/worker"
)

type stubProcessor struct {
	mu    sync.Mutex
	seen  []string
	fails map[string]int
}

func (p *stubProcessor) Process(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, id)
	if p.fails[id] > 0 {
		p.fails[id]--
		return errors.New("transient")
	}
	return nil
}

func (p *stubProcessor) count(id string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.seen {
		if s == id {
			n++
		}
	}
	return n
}

func (p *stubProcessor) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

func TestRunner_AcksSuccessAndRedeliversFailure(t *testing.T) {
	q := queue.NewMemory(8, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, queue.Message{ImportID: "a"}))
	require.NoError(t, q.Publish(ctx, queue.Message{ImportID: "b"}))

	p := &stubProcessor{fails: map[string]int{"b": 1}}
	done := make(chan struct{})
	go func() {
		worker.NewRunner(q, p, 2).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(q.Acked()) == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 3, p.calls())
	assert.Equal(t, []queue.Message{{ImportID: "b"}}, q.Nacked())
	assert.Zero(t, q.Pending())
}

func TestRunner_EndToEnd(t *testing.T) {
	f := newFixture(t, salesFields)
	id := f.upload(t, threeRows)
	f.analyzeAndCommit(t, id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		worker.NewRunner(f.queue, f.m, 1).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(f.queue.Acked()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Len(t, f.repo.StagedRows(id), 3)
}

type missingImportProcessor struct {
	stubProcessor
	missing string
}

func (p *missingImportProcessor) Process(ctx context.Context, id string) error {
	_ = p.stubProcessor.Process(ctx, id)
	if id == p.missing {
		return imports.ErrImportNotFound
	}
	return nil
}

func TestRunner_FailingMessageDoesNotStarveOthers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	q := queue.NewRedisQueue(client, "imports:queue", time.Second, queue.WithRetry(3, time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, q.Publish(ctx, queue.Message{ImportID: "deleted"}))
	require.NoError(t, q.Publish(ctx, queue.Message{ImportID: "good"}))

	p := &missingImportProcessor{missing: "deleted"}
	done := make(chan struct{})
	go func() {
		worker.NewRunner(q, p, 1).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return p.count("good") == 1 }, 3*time.Second, 5*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 1, p.count("deleted"), "the failed message waits out its backoff")
	delayed, _ := mr.ZMembers("imports:queue:delayed")
	assert.Len(t, delayed, 1)
	inFlight, _ := mr.List("imports:queue:processing")
	assert.Empty(t, inFlight)
}
