package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"oj/internal/heartbeat"
	"oj/internal/metrics"
	"oj/internal/queue"
)

// maxRetries bounds how many times a job is requeued after a processing
// error before it is given up on and marked System Error.
const maxRetries = 3

const reclaimInterval = 15 * time.Second

// Consumer runs concurrency goroutines pulling from bus and driving pipeline
// for each delivered job id, plus a background reclaimer that requeues
// deliveries whose visibility timeout expired.
type Consumer struct {
	bus         queue.Bus
	pipeline    *Pipeline
	concurrency int
	hb          *heartbeat.State

	mu      sync.Mutex
	retries map[string]int
}

func NewConsumer(bus queue.Bus, pipeline *Pipeline, concurrency int, hb *heartbeat.State) *Consumer {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Consumer{bus: bus, pipeline: pipeline, concurrency: concurrency, hb: hb, retries: map[string]int{}}
}

// Run blocks until ctx is canceled, running concurrency worker goroutines and
// a reclaimer goroutine.
func (c *Consumer) Run(ctx context.Context) {
	go c.reclaim(ctx)

	var wg sync.WaitGroup
	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			c.loop(ctx, slot)
		}(i + 1)
	}
	wg.Wait()
}

func (c *Consumer) loop(ctx context.Context, slot int) {
	for {
		delivery, err := c.bus.Consume(ctx, queue.JobQueueName)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) {
				select {
				case <-ctx.Done():
					return
				case <-time.After(100 * time.Millisecond):
					continue
				}
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("[worker %d] consume error: %v", slot, err)
			time.Sleep(time.Second)
			continue
		}

		if c.hb != nil {
			c.hb.JobStarted(delivery.Payload)
		}

		procErr := c.pipeline.Process(ctx, delivery.Payload)
		if procErr != nil {
			c.handleFailure(ctx, slot, delivery, procErr)
		} else if err := c.bus.Ack(ctx, queue.JobQueueName, delivery); err != nil {
			log.Printf("[worker %d] ack failed for job %s: %v", slot, delivery.Payload, err)
		}

		if c.hb != nil {
			c.hb.JobFinished(delivery.Payload, procErr)
		}
	}
}

func (c *Consumer) handleFailure(ctx context.Context, slot int, delivery queue.Delivery, procErr error) {
	log.Printf("[worker %d] job %s failed: %v", slot, delivery.Payload, procErr)

	c.mu.Lock()
	c.retries[delivery.Payload]++
	attempts := c.retries[delivery.Payload]
	c.mu.Unlock()

	if attempts <= maxRetries {
		if err := c.bus.Nack(ctx, queue.JobQueueName, delivery); err != nil {
			log.Printf("[worker %d] nack failed for job %s: %v", slot, delivery.Payload, err)
		}
		return
	}

	c.mu.Lock()
	delete(c.retries, delivery.Payload)
	c.mu.Unlock()

	if err := c.pipeline.MarkSystemError(ctx, delivery.Payload, procErr); err != nil {
		log.Printf("[worker %d] failed to mark job %s as system error: %v", slot, delivery.Payload, err)
	}
	if err := c.bus.Ack(ctx, queue.JobQueueName, delivery); err != nil {
		log.Printf("[worker %d] ack failed for job %s: %v", slot, delivery.Payload, err)
	}
}

func (c *Consumer) reclaim(ctx context.Context) {
	ticker := time.NewTicker(reclaimInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.bus.RequeueExpired(ctx, queue.JobQueueName)
			if err != nil {
				log.Printf("[reclaimer] requeue expired error: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("[reclaimer] requeued %d expired jobs", n)
			}
			if pending, processing, err := c.bus.Depth(ctx, queue.JobQueueName); err == nil {
				metrics.SetQueueDepth(queue.JobQueueName, "pending", pending)
				metrics.SetQueueDepth(queue.JobQueueName, "processing", processing)
			}
		}
	}
}
