package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CallbackConsumer consumes provider callbacks from Redis Streams
type CallbackConsumer struct {
	rdb          *redis.Client
	groupName    string
	consumerName string
	logger       *slog.Logger
}

// NewCallbackConsumer creates a new CallbackConsumer instance
func NewCallbackConsumer(redisURL, consumerName string, logger *slog.Logger) (*CallbackConsumer, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	// Read timeout must exceed the XReadGroup Block duration (5s)
	// to avoid spurious i/o timeout errors on idle streams.
	opts.ReadTimeout = 10 * time.Second

	client := redis.NewClient(opts)

	// Start ID "0" means read from beginning if group is new
	err = client.XGroupCreateMkStream(context.Background(), StreamProviderCallbacks, GroupWorkers, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}
	// Ignore BUSYGROUP error - group already exists

	return &CallbackConsumer{
		rdb:          client,
		groupName:    GroupWorkers,
		consumerName: consumerName,
		logger:       logger,
	}, nil
}

// Pending entries idle for reclaimMinIdle are claimed again every
// reclaimInterval, so a failed handler is retried without a new callback.
const (
	reclaimInterval = time.Minute
	reclaimMinIdle  = time.Minute
)

// Consume runs a blocking loop feeding callbacks to handler. Messages whose
// handler fails stay pending and are reclaimed by a periodic sweep, which
// also picks up entries left behind by consumers that went away.
func (c *CallbackConsumer) Consume(ctx context.Context, handler func(context.Context, TaskCallback) error) error {
	nextReclaim := time.Now().Add(reclaimInterval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if time.Now().After(nextReclaim) {
			c.reclaim(ctx, handler)
			nextReclaim = time.Now().Add(reclaimInterval)
		}

		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.groupName,
			Consumer: c.consumerName,
			Streams:  []string{StreamProviderCallbacks, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if errors.Is(err, redis.Nil) {
			continue
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Blocking reads return a timeout when no messages arrive
			// within the Block duration; this is normal, not an error.
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			c.logger.Error("Failed to read from stream", "error", err)
			continue
		}

		for _, stream := range streams {
			c.process(ctx, handler, stream.Messages)
		}
	}
}

// reclaim takes over pending entries that have been idle long enough and
// runs them through handler again.
func (c *CallbackConsumer) reclaim(ctx context.Context, handler func(context.Context, TaskCallback) error) {
	start := "0-0"
	for {
		messages, next, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   StreamProviderCallbacks,
			Group:    c.groupName,
			Consumer: c.consumerName,
			MinIdle:  reclaimMinIdle,
			Start:    start,
			Count:    10,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Error("Failed to reclaim pending messages", "error", err)
			}
			return
		}
		if len(messages) > 0 {
			c.logger.Info("Reclaimed pending callbacks", "count", len(messages))
			c.process(ctx, handler, messages)
		}
		if next == "0-0" || len(messages) == 0 {
			return
		}
		start = next
	}
}

func (c *CallbackConsumer) process(ctx context.Context, handler func(context.Context, TaskCallback) error, messages []redis.XMessage) {
	for _, id := range handleMessages(ctx, c.logger, handler, messages) {
		c.ack(ctx, id)
	}
}

// handleMessages feeds messages to handler and returns the ids to ack.
// Malformed messages can never succeed and are acked; failed ones are not.
func handleMessages(ctx context.Context, logger *slog.Logger, handler func(context.Context, TaskCallback) error, messages []redis.XMessage) []string {
	var done []string
	for _, message := range messages {
		cb, err := DecodeCallback(message.Values)
		if err != nil {
			logger.Error("Invalid callback message", "error", err, "message_id", message.ID)
			done = append(done, message.ID)
			continue
		}

		if err := handler(ctx, cb); err != nil {
			logger.Error("Callback handler failed", "error", err,
				"provider", cb.Provider, "task_id", cb.TaskID)
			continue
		}
		done = append(done, message.ID)
	}
	return done
}

func (c *CallbackConsumer) ack(ctx context.Context, id string) {
	if err := c.rdb.XAck(ctx, StreamProviderCallbacks, c.groupName, id).Err(); err != nil {
		c.logger.Error("Failed to ACK message", "error", err, "message_id", id)
	}
}

// DecodeCallback extracts the callback carried in a stream message.
func DecodeCallback(values map[string]interface{}) (TaskCallback, error) {
	var cb TaskCallback
	payload, ok := values["payload"].(string)
	if !ok {
		return cb, errors.New("message has no payload")
	}
	if err := json.Unmarshal([]byte(payload), &cb); err != nil {
		return cb, fmt.Errorf("failed to unmarshal callback: %w", err)
	}
	if cb.Provider == "" || cb.TaskID == "" {
		return cb, errors.New("callback is missing provider or task id")
	}
	return cb, nil
}

// Close closes the Redis client connection
func (c *CallbackConsumer) Close() error {
	return c.rdb.Close()
}

// StartCallbackConsumer starts a consumer in a background goroutine and
// returns a stop function.
func StartCallbackConsumer(redisURL, consumerName string, updater TaskUpdater, logger *slog.Logger) (stop func(), err error) {
	consumer, err := NewCallbackConsumer(redisURL, consumerName, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create callback consumer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := consumer.Consume(ctx, HandleTaskCallback(updater, logger)); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Callback consumer stopped with error", "error", err)
		}
	}()

	logger.Info("Callback consumer started", "consumer", consumerName)

	return func() {
		cancel()
		consumer.Close()
	}, nil
}
