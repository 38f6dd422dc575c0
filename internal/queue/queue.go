// Package queue implements the message bus adapter: a Redis-backed
// publish/consume/ack/nack contract with visibility-timeout reservation and a
// reclaimer for deliveries that were never acknowledged.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultVisibilityTimeout bounds how long a reserved job id may stay
// unacknowledged before another consumer is allowed to pick it up.
const DefaultVisibilityTimeout = 30 * time.Second

// JobQueueName is the bus queue job intake publishes to and judge workers
// consume from.
const JobQueueName = "jobs"

// ErrEmpty is returned by Consume when nothing is pending.
var ErrEmpty = errors.New("queue: nothing pending")

// Delivery is one reserved item: Tag identifies it for Ack/Nack, Payload is
// the job id (serialized as a string, typically the decimal job id).
type Delivery struct {
	Tag     string
	Payload string
}

// Bus is the minimal queue contract used by job intake and the judge worker.
type Bus interface {
	Publish(ctx context.Context, queueName string, payload string) error
	Consume(ctx context.Context, queueName string) (Delivery, error)
	Ack(ctx context.Context, queueName string, d Delivery) error
	Nack(ctx context.Context, queueName string, d Delivery) error
	RequeueExpired(ctx context.Context, queueName string) (int, error)
	Depth(ctx context.Context, queueName string) (pending int64, processing int64, err error)
}

// RedisBus implements Bus over a single go-redis client, namespacing queue
// keys by namespace so multiple OJ instances can share a broker.
type RedisBus struct {
	client     *redis.Client
	namespace  string
	visibility time.Duration
}

// NewRedisClient returns a configured, ping-validated go-redis client.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// NewRedisBus wraps client with queue helpers namespaced under namespace.
func NewRedisBus(client *redis.Client, namespace string, visibility time.Duration) *RedisBus {
	if visibility <= 0 {
		visibility = DefaultVisibilityTimeout
	}
	return &RedisBus{client: client, namespace: namespace, visibility: visibility}
}

func (b *RedisBus) pendingKey(queueName string) string {
	return fmt.Sprintf("%s:%s:pending", b.namespace, queueName)
}

func (b *RedisBus) processingKey(queueName string) string {
	return fmt.Sprintf("%s:%s:processing", b.namespace, queueName)
}

// Publish durably enqueues payload; returns only once the broker confirms it.
func (b *RedisBus) Publish(ctx context.Context, queueName string, payload string) error {
	return b.client.LPush(ctx, b.pendingKey(queueName), payload).Err()
}

var reserveScript = redis.NewScript(`
local v = redis.call('RPOP', KEYS[1])
if v then
  redis.call('ZADD', KEYS[2], ARGV[1], v)
end
return v
`)

// Consume atomically moves one item from pending to processing with a
// visibility-timeout score, so it is not lost if this consumer dies before
// acknowledging it. Returns ErrEmpty when nothing is pending.
func (b *RedisBus) Consume(ctx context.Context, queueName string) (Delivery, error) {
	expireScore := float64(time.Now().Add(b.visibility).UnixMilli())
	res, err := reserveScript.Run(ctx, b.client, []string{b.pendingKey(queueName), b.processingKey(queueName)}, expireScore).Result()
	if err != nil {
		return Delivery{}, err
	}
	if res == nil {
		return Delivery{}, ErrEmpty
	}
	s, ok := res.(string)
	if !ok {
		return Delivery{}, errors.New("queue: unexpected reserve response type")
	}
	return Delivery{Tag: s, Payload: s}, nil
}

// Ack removes a processing item after successful handling.
func (b *RedisBus) Ack(ctx context.Context, queueName string, d Delivery) error {
	return b.client.ZRem(ctx, b.processingKey(queueName), d.Tag).Err()
}

// Nack re-queues the item onto pending immediately (used by the worker's
// bounded-retry path rather than waiting out the full visibility timeout).
func (b *RedisBus) Nack(ctx context.Context, queueName string, d Delivery) error {
	pipe := b.client.TxPipeline()
	pipe.ZRem(ctx, b.processingKey(queueName), d.Tag)
	pipe.LPush(ctx, b.pendingKey(queueName), d.Payload)
	_, err := pipe.Exec(ctx)
	return err
}

var requeueExpiredScript = redis.NewScript(`
local vals = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local count = table.getn(vals)
if count > 0 then
  redis.call('ZREM', KEYS[1], unpack(vals))
  redis.call('LPUSH', KEYS[2], unpack(vals))
end
return vals
`)

// RequeueExpired moves processing items whose visibility deadline has passed
// back onto pending, and returns how many were moved. Intended to be called
// periodically by a reclaimer goroutine in each worker process.
func (b *RedisBus) RequeueExpired(ctx context.Context, queueName string) (int, error) {
	score := float64(time.Now().UnixMilli())
	res, err := requeueExpiredScript.Run(ctx, b.client, []string{b.processingKey(queueName), b.pendingKey(queueName)}, score).Result()
	if err != nil {
		return 0, err
	}
	if res == nil {
		return 0, nil
	}
	vals, ok := res.([]interface{})
	if !ok {
		return 0, errors.New("queue: unexpected requeue response type")
	}
	return len(vals), nil
}

// Depth reports pending and in-flight counts for observability.
func (b *RedisBus) Depth(ctx context.Context, queueName string) (int64, int64, error) {
	pending, err := b.client.LLen(ctx, b.pendingKey(queueName)).Result()
	if err != nil {
		return 0, 0, err
	}
	processing, err := b.client.ZCard(ctx, b.processingKey(queueName)).Result()
	if err != nil {
		return 0, 0, err
	}
	return pending, processing, nil
}
