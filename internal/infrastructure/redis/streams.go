package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DispatchStream carries manual send requests from the API to the
	// worker, so an operator click and the daily scheduler share one
	// dispatch path.
	DispatchStream = "dunning:dispatch"
)

// DispatchRequest is the payload of one send request on the stream.
type DispatchRequest struct {
	RequestID string   `json:"request_id"`
	Mode      string   `json:"mode"` // "manual" or "automatic"
	Type      string   `json:"type"` // message type filter, empty for all
	ItemIDs   []string `json:"item_ids,omitempty"`
}

type StreamProducer struct {
	client *redis.Client
}

func NewStreamProducer(client *redis.Client) *StreamProducer {
	return &StreamProducer{client: client}
}

// PublishDispatchRequest enqueues a send request for the worker.
func (p *StreamProducer) PublishDispatchRequest(ctx context.Context, req DispatchRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal dispatch request: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: DispatchStream,
		Values: map[string]any{
			"request_id": req.RequestID,
			"payload":    string(payload),
			"timestamp":  time.Now().Unix(),
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish dispatch request: %w", err)
	}
	return nil
}

// ParseDispatchRequest decodes a stream message produced by
// PublishDispatchRequest.
func ParseDispatchRequest(msg redis.XMessage) (*DispatchRequest, error) {
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		return nil, fmt.Errorf("dispatch message %s has no payload", msg.ID)
	}
	var req DispatchRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dispatch request: %w", err)
	}
	return &req, nil
}

type StreamConsumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewStreamConsumer(
	client *redis.Client,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *StreamConsumer {
	return &StreamConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

func (c *StreamConsumer) CreateGroup(ctx context.Context) error {
	// Create stream if it doesn't exist
	const busyGroupMsg = "BUSYGROUP"
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

func (c *StreamConsumer) Read(ctx context.Context) ([]redis.XStream, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()

	if err != nil {
		if err == redis.Nil {
			// No new messages
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	return streams, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, messageID string) error {
	err := c.client.XAck(ctx, c.stream, c.group, messageID).Err()
	if err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

func (c *StreamConsumer) Claim(ctx context.Context, minIdleTime time.Duration, messageIDs []string) ([]redis.XMessage, error) {
	messages, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  minIdleTime,
		Messages: messageIDs,
	}).Result()

	if err != nil {
		return nil, fmt.Errorf("failed to claim messages: %w", err)
	}

	return messages, nil
}
