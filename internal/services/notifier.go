package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"

	"github.com/vaultbank/backend/internal/models"
)

// RedisNotifier pushes completed-transaction events onto a Redis list for
// out-of-band delivery. Dispatch never returns an error: a committed
// transaction must not be affected by notification failures, so problems are
// logged and left to the worker's retry loop. Without a Redis client the
// notifier degrades to log-only delivery.
type RedisNotifier struct {
	redis *redis.Client
	queue string
}

func NewRedisNotifier(redisClient *redis.Client) *RedisNotifier {
	viper.SetDefault("notify.queue", "notification_queue")
	return &RedisNotifier{
		redis: redisClient,
		queue: viper.GetString("notify.queue"),
	}
}

func (n *RedisNotifier) Dispatch(event models.NotificationEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("[NOTIFY] Failed to encode event for transaction %s: %v", event.TransactionID, err)
		return
	}

	if n.redis == nil {
		log.Printf("[NOTIFY] %s", string(data))
		return
	}

	if err := n.redis.RPush(context.Background(), n.queue, data).Err(); err != nil {
		log.Printf("[NOTIFY] Failed to queue event for transaction %s: %v", event.TransactionID, err)
	}
}

// NotificationWorker drains the notification queue and delivers events with
// at-least-once semantics: an event that fails delivery is pushed back to the
// queue and retried on a later pass.
type NotificationWorker struct {
	redis   *redis.Client
	queue   string
	deliver func(models.NotificationEvent) error
}

func NewNotificationWorker(redisClient *redis.Client) *NotificationWorker {
	viper.SetDefault("notify.queue", "notification_queue")
	return &NotificationWorker{
		redis:   redisClient,
		queue:   viper.GetString("notify.queue"),
		deliver: deliverToLog,
	}
}

// Run blocks until the context is cancelled.
func (w *NotificationWorker) Run(ctx context.Context) {
	if w.redis == nil {
		<-ctx.Done()
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result, err := w.redis.BLPop(ctx, time.Second, w.queue).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[NOTIFY] Queue read failed: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var event models.NotificationEvent
		if err := json.Unmarshal([]byte(result[1]), &event); err != nil {
			log.Printf("[NOTIFY] Dropping undecodable event: %v", err)
			continue
		}

		if err := w.deliver(event); err != nil {
			log.Printf("[NOTIFY] Delivery failed for transaction %s, requeueing: %v", event.TransactionID, err)
			if pushErr := w.redis.RPush(context.Background(), w.queue, result[1]).Err(); pushErr != nil {
				log.Printf("[NOTIFY] Requeue failed for transaction %s: %v", event.TransactionID, pushErr)
			}
		}
	}
}

func deliverToLog(event models.NotificationEvent) error {
	log.Printf("Notification: Transaction %s (%s) %s for %s %s",
		event.TransactionID, event.Type, event.Status, event.Amount, event.Currency)
	return nil
}
