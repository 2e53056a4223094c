package repository

import (
	"context"
	"fmt"
	"strings"

	"gymdesk/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Table names used on the change feed. They match the external store's
// table names so subscribers can refresh selectively.
const (
	TableAccounts  = "accounts"
	TableTimeSlots = "time_slots"
	TableBookings  = "bookings"
)

const channelPrefix = "gym:changes:"

// RedisChangeFeed broadcasts change notifications over Redis pub/sub, one
// channel per table. Each feed instance carries an origin id so a process
// does not refresh in response to its own writes.
type RedisChangeFeed struct {
	client *redis.Client
	origin string
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisChangeFeed(client *redis.Client) *RedisChangeFeed {
	return &RedisChangeFeed{client: client, origin: uuid.NewString()}
}

func (f *RedisChangeFeed) Notify(ctx context.Context, table string) error {
	if f.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := f.client.Publish(ctx, channelPrefix+table, f.origin).Err(); err != nil {
		return fmt.Errorf("failed to publish change notice: %w", err)
	}
	return nil
}

// Subscribe listens for change notices until ctx is done. Notices published
// by this feed instance are dropped.
func (f *RedisChangeFeed) Subscribe(ctx context.Context, handler func(table string)) error {
	if f.client == nil {
		return fmt.Errorf("redis client is nil")
	}

	pubsub := f.client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to change feed: %w", err)
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload == f.origin {
					continue
				}
				handler(strings.TrimPrefix(msg.Channel, channelPrefix))
			}
		}
	}()

	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
