package ws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"log/slog"

	"github.com/Sajalrastogi191/CodeWithPair/internal/app"
)

// BusMessage is one relay frame crossing instances. Origin carries the
// publishing instance's id so subscribers can skip their own traffic;
// Target, when set, makes the frame a unicast.
type BusMessage struct {
	RoomID  string `json:"roomId"`
	Origin  string `json:"origin"`
	Sender  string `json:"sender,omitempty"`
	Target  string `json:"target,omitempty"`
	Payload []byte `json:"payload"`
}

// RedisBus mirrors relay frames between service instances over redis
// pub/sub, one channel per room.
type RedisBus struct {
	rdb        *redis.Client
	log        *slog.Logger
	instanceID string
}

// NewRedisBus connects to redis and verifies connectivity
func NewRedisBus(ctx context.Context, cfg app.Config, log *slog.Logger) (*RedisBus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisBus{rdb: rdb, log: log, instanceID: uuid.NewString()}, nil
}

// PublishRoom mirrors a room fanout; senderID is excluded on delivery.
func (b *RedisBus) PublishRoom(ctx context.Context, roomID, senderID string, payload []byte) error {
	return b.publish(ctx, BusMessage{
		RoomID:  roomID,
		Origin:  b.instanceID,
		Sender:  senderID,
		Payload: payload,
	})
}

// PublishDirect mirrors a unicast for a connection that lives elsewhere.
func (b *RedisBus) PublishDirect(ctx context.Context, roomID, targetID string, payload []byte) error {
	return b.publish(ctx, BusMessage{
		RoomID:  roomID,
		Origin:  b.instanceID,
		Target:  targetID,
		Payload: payload,
	})
}

func (b *RedisBus) publish(ctx context.Context, m BusMessage) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, channel(m.RoomID), raw).Err()
}

// Subscribe listens to all room channels and invokes fn for each frame
// published by another instance.
func (b *RedisBus) Subscribe(ctx context.Context, fn func(BusMessage)) {
	pubsub := b.rdb.PSubscribe(ctx, channel("*"))
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			_ = pubsub.Close()
			return
		case msg := <-ch:
			var bm BusMessage
			if err := json.Unmarshal([]byte(msg.Payload), &bm); err != nil {
				b.log.Warn("bus.decode", "err", err)
				continue
			}
			// Redis echoes our own publishes back to us.
			if bm.Origin == b.instanceID || bm.RoomID == "" {
				continue
			}
			fn(bm)
		}
	}
}

// Close shuts down the redis connection
func (b *RedisBus) Close() { _ = b.rdb.Close() }

// channel namespacing for room pub/sub
func channel(roomID string) string { return "room:" + roomID }
