package notifications

import (
	"context"
	"encoding/json"
	"log"
	"runtime/debug"

	"messiahverse/internal/models"

	"github.com/redis/go-redis/v9"
)

// MoodChannel is the Redis pub/sub channel carrying mood updates, so every
// instance behind the load balancer broadcasts them to its own listeners.
const MoodChannel = "mood:updates"

// Notifier publishes mood updates into Redis and feeds subscribed updates
// into the local hub.
type Notifier struct {
	rdb *redis.Client
	hub *Hub
}

// NewNotifier creates a Notifier. rdb may be nil; updates then only reach
// listeners on this instance.
func NewNotifier(rdb *redis.Client, hub *Hub) *Notifier {
	return &Notifier{rdb: rdb, hub: hub}
}

// PublishMood broadcasts a mood update. With Redis available the update
// goes through pub/sub so every instance (this one included) picks it up
// via its subscriber; without Redis the local hub is notified directly.
func (n *Notifier) PublishMood(ctx context.Context, status *models.MoodStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}

	if n.rdb == nil {
		if n.hub != nil {
			n.hub.Broadcast(payload)
		}
		return nil
	}
	return n.rdb.Publish(ctx, MoodChannel, payload).Err()
}

// StartSubscriber listens on the mood channel and broadcasts received
// updates to the local hub until ctx is cancelled.
func (n *Notifier) StartSubscriber(ctx context.Context) error {
	if n.rdb == nil || n.hub == nil {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, MoodChannel)
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in mood subscriber: %v\n%s", r, debug.Stack())
						}
					}()
					n.hub.Broadcast([]byte(msg.Payload))
				}()
			}
		}
	}()

	return nil
}
