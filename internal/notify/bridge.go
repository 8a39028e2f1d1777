package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jarcode/pkg/utils/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// The worker and the API are separate processes, so evaluation notifications
// cross over Redis pub/sub: the worker publishes to a per-user channel and the
// API forwards into its in-process hub. Pub/sub is fire-and-forget, matching
// the hub's delivery contract.
const channelPrefix = "jarcode:notify:"

const publishTimeout = 2 * time.Second

// RedisPublisher implements the orchestrator's Notifier on the worker side.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) (*RedisPublisher, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisPublisher{client: client}, nil
}

// Publish sends one payload to the user's channel. Returns the number of
// subscribed API processes, not end-user connections.
func (p *RedisPublisher) Publish(userID int64, payload []byte) int {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	channel := channelPrefix + strconv.FormatInt(userID, 10)
	receivers, err := p.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		logger.WithContext(ctx).Warn("publish notification failed",
			zap.Int64("user_id", userID), zap.Error(err))
		return 0
	}
	return int(receivers)
}

// RedisForwarder runs in the API process and relays notifications from Redis
// into the local hub.
type RedisForwarder struct {
	client *redis.Client
	hub    *Hub
}

func NewRedisForwarder(client *redis.Client, hub *Hub) (*RedisForwarder, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if hub == nil {
		return nil, fmt.Errorf("hub is required")
	}
	return &RedisForwarder{client: client, hub: hub}, nil
}

// Run blocks forwarding messages until ctx is cancelled.
func (f *RedisForwarder) Run(ctx context.Context) error {
	pubsub := f.client.PSubscribe(ctx, channelPrefix+"*")
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			userID, err := parseChannelUserID(msg.Channel)
			if err != nil {
				logger.WithContext(ctx).Warn("drop notification on unparsable channel",
					zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			f.hub.Publish(userID, []byte(msg.Payload))
		}
	}
}

func parseChannelUserID(channel string) (int64, error) {
	raw, ok := strings.CutPrefix(channel, channelPrefix)
	if !ok {
		return 0, fmt.Errorf("unexpected channel %q", channel)
	}
	return strconv.ParseInt(raw, 10, 64)
}
