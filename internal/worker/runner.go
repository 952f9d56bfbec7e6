package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/DuneV/Marketing-page-mockup-sub000/internal/queue"
)

// receiveBackoff is the pause after a failed Receive.
const receiveBackoff = time.Second

// Processor materializes one import.
type Processor interface {
	Process(ctx context.Context, importID string) error
}

// Runner consumes processing messages with a fixed number of goroutines.
// A delivery is acked only after its import reached DONE or FAILED.
type Runner struct {
	consumer    queue.Consumer
	processor   Processor
	concurrency int
}

func NewRunner(consumer queue.Consumer, processor Processor, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Runner{consumer: consumer, processor: processor, concurrency: concurrency}
}

// Run blocks until ctx is cancelled or the consumer is closed.
func (r *Runner) Run(ctx context.Context) {
	log.Info("worker starting", "concurrency", r.concurrency)

	var wg sync.WaitGroup
	for i := 0; i < r.concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.consume(ctx, id)
		}(i)
	}
	wg.Wait()

	log.Info("worker stopped")
}

func (r *Runner) consume(ctx context.Context, id int) {
	for ctx.Err() == nil {
		deliveries, err := r.consumer.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			log.Error("receive failed", "consumer", id, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(receiveBackoff):
			}
			continue
		}
		for _, d := range deliveries {
			r.handle(ctx, d)
		}
	}
}

func (r *Runner) handle(ctx context.Context, d *queue.Delivery) {
	importID := d.Message.ImportID
	if err := r.processor.Process(ctx, importID); err != nil {
		if errors.Is(err, ErrBusy) {
			log.Info("import busy, redelivering", "import_id", importID)
		} else {
			log.Error("materialize failed", "import_id", importID, "error", err)
		}
		if nerr := d.Nack(context.WithoutCancel(ctx)); nerr != nil {
			log.Warn("nack failed", "import_id", importID, "error", nerr)
		}
		return
	}
	if err := d.Ack(context.WithoutCancel(ctx)); err != nil {
		log.Warn("ack failed", "import_id", importID, "error", err)
	}
}
