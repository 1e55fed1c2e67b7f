package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/everkeep/everkeep/internal/pkg/cache"
	"github.com/everkeep/everkeep/internal/pkg/mail"
)

const (
	// Redis key prefixes
	IntentKeyPrefix     = "intent:"
	IntentQueueKey      = "intent_queue"
	IntentProcessingKey = "intent_processing"
	IntentStatsKey      = "intent_stats"

	// Intent settings
	DefaultMaxRetries = 3
	IntentTTL         = 24 * time.Hour // Intents expire after 24 hours
)

// Deliverer turns a dequeued intent into actual notifications (emails plus
// persisted notification records).
type Deliverer interface {
	Deliver(ctx context.Context, intent *Intent) error
}

// Queue is the Redis-backed notification intent queue. Emitting is a cheap
// pipeline write; a small worker pool drains the queue and delivers.
type Queue struct {
	client     *redis.Client
	deliverer  Deliverer
	workers    int
	workerPool chan struct{}
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewQueue creates a new intent queue draining into the given deliverer.
func NewQueue(deliverer Deliverer, workers int) *Queue {
	if workers <= 0 {
		workers = 2 // Default number of workers
	}

	return &Queue{
		client:     cache.GetClient(),
		deliverer:  deliverer,
		workers:    workers,
		workerPool: make(chan struct{}, workers),
		stopCh:     make(chan struct{}),
	}
}

// NewMailQueue creates an intent queue delivering via the given mail sender.
func NewMailQueue(sender mail.Sender, workers int) *Queue {
	return NewQueue(NewMailDeliverer(sender), workers)
}

// EmitRelease queues a release intent. Implements Emitter.
func (q *Queue) EmitRelease(payload ReleasePayload) error {
	_, err := q.enqueue(IntentTypeRelease, payload.ToMap())
	return err
}

// EmitReminder queues a proof-of-life reminder intent. Implements Emitter.
func (q *Queue) EmitReminder(payload ReminderPayload) error {
	_, err := q.enqueue(IntentTypeReminder, payload.ToMap())
	return err
}

// enqueue stores the intent and pushes its id onto the pending list.
func (q *Queue) enqueue(intentType IntentType, payload map[string]interface{}) (*Intent, error) {
	ctx := context.Background()

	intent := &Intent{
		ID:         uuid.New().String(),
		Type:       intentType,
		Status:     IntentStatusPending,
		Payload:    payload,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
	}

	data, err := json.Marshal(intent)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal intent: %w", err)
	}

	intentKey := IntentKeyPrefix + intent.ID

	// Use a pipeline for atomic operations
	pipe := q.client.Pipeline()
	pipe.Set(ctx, intentKey, data, IntentTTL)
	pipe.LPush(ctx, IntentQueueKey, intent.ID)
	pipe.HIncrBy(ctx, IntentStatsKey, string(IntentStatusPending), 1)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to enqueue intent: %w", err)
	}

	log.Infof("[Notify] Enqueued %s intent %s", intent.Type, intent.ID)
	return intent, nil
}

// Start starts the delivery workers
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}

	q.running = true
	q.stopCh = make(chan struct{})
	log.Infof("[Notify] Starting %d delivery workers", q.workers)

	// Workers hand their token back before exiting, so the pool must be
	// rebuilt on every start or a restart blocks on a full channel.
	q.workerPool = make(chan struct{}, q.workers)
	for i := 0; i < q.workers; i++ {
		q.workerPool <- struct{}{}
	}

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
}

// Stop stops the delivery workers
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}

	log.Info("[Notify] Stopping delivery workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[Notify] All delivery workers stopped")
}

// worker drains intents from the queue
func (q *Queue) worker(id int) {
	defer q.wg.Done()
	log.Infof("[Notify] Worker %d started", id)

	ctx := context.Background()

	for {
		select {
		case <-q.stopCh:
			log.Infof("[Notify] Worker %d stopping", id)
			return
		default:
			<-q.workerPool

			intent, err := q.dequeue(ctx)
			if err != nil {
				if err != redis.Nil {
					log.Errorf("[Notify] Worker %d: error dequeuing intent: %v", id, err)
				}
				q.workerPool <- struct{}{}
				time.Sleep(time.Second)
				continue
			}

			if intent != nil {
				q.process(ctx, intent)
			}

			q.workerPool <- struct{}{}
		}
	}
}

// dequeue moves the next intent id from pending to processing atomically.
func (q *Queue) dequeue(ctx context.Context) (*Intent, error) {
	result, err := q.client.BRPopLPush(ctx, IntentQueueKey, IntentProcessingKey, time.Second).Result()
	if err != nil {
		return nil, err
	}

	intentID := result
	intentKey := IntentKeyPrefix + intentID

	data, err := q.client.Get(ctx, intentKey).Result()
	if err != nil {
		q.client.LRem(ctx, IntentProcessingKey, 1, intentID)
		return nil, fmt.Errorf("intent data not found for ID %s", intentID)
	}

	var intent Intent
	if err := json.Unmarshal([]byte(data), &intent); err != nil {
		q.client.LRem(ctx, IntentProcessingKey, 1, intentID)
		return nil, fmt.Errorf("failed to unmarshal intent %s: %w", intentID, err)
	}

	return &intent, nil
}

// process delivers a single intent, retrying failed deliveries with backoff.
func (q *Queue) process(ctx context.Context, intent *Intent) {
	intent.MarkAsProcessing()
	q.update(ctx, intent)

	err := q.deliverer.Deliver(ctx, intent)

	if err != nil {
		log.Errorf("[Notify] Intent %s failed: %v", intent.ID, err)
		intent.MarkAsFailed(err.Error())

		if intent.IsRetryable() {
			log.Infof("[Notify] Retrying intent %s (attempt %d/%d)", intent.ID, intent.RetryCount, intent.MaxRetries)
			intent.Status = IntentStatusRetrying
			q.update(ctx, intent)

			time.AfterFunc(time.Minute*time.Duration(intent.RetryCount), func() {
				q.client.LPush(ctx, IntentQueueKey, intent.ID)
			})
		} else {
			log.Errorf("[Notify] Intent %s permanently failed after %d retries", intent.ID, intent.RetryCount)
			q.bumpStats(ctx, IntentStatusFailed, 1)
			q.update(ctx, intent)
		}
	} else {
		intent.MarkAsDelivered()
		q.bumpStats(ctx, IntentStatusDelivered, 1)
		// Delivered intents are done; drop the payload from Redis.
		if err := q.client.Del(ctx, IntentKeyPrefix+intent.ID).Err(); err != nil {
			log.Errorf("[Notify] Failed to remove delivered intent %s: %v", intent.ID, err)
		}
	}

	if err := q.client.LRem(ctx, IntentProcessingKey, 1, intent.ID).Err(); err != nil {
		log.Errorf("[Notify] Failed to remove intent %s from processing: %v", intent.ID, err)
	}
}

// update rewrites intent data in Redis
func (q *Queue) update(ctx context.Context, intent *Intent) {
	data, err := json.Marshal(intent)
	if err != nil {
		log.Errorf("[Notify] Failed to marshal intent %s: %v", intent.ID, err)
		return
	}

	if err := q.client.Set(ctx, IntentKeyPrefix+intent.ID, data, IntentTTL).Err(); err != nil {
		log.Errorf("[Notify] Failed to update intent %s: %v", intent.ID, err)
	}
}

// bumpStats updates delivery statistics
func (q *Queue) bumpStats(ctx context.Context, status IntentStatus, delta int64) {
	if err := q.client.HIncrBy(ctx, IntentStatsKey, string(status), delta).Err(); err != nil {
		log.Errorf("[Notify] Failed to update intent stats: %v", err)
	}
}

// GetStats returns counts of intent outcomes
func (q *Queue) GetStats(ctx context.Context) (map[IntentStatus]int64, error) {
	stats, err := q.client.HGetAll(ctx, IntentStatsKey).Result()
	if err != nil {
		return nil, err
	}

	result := make(map[IntentStatus]int64)
	for status, count := range stats {
		if countInt, err := json.Number(count).Int64(); err == nil {
			result[IntentStatus(status)] = countInt
		}
	}

	return result, nil
}

// GetQueueSize returns the number of pending intents
func (q *Queue) GetQueueSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, IntentQueueKey).Result()
}
