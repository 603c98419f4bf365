package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

const tableEventsChannel = "table_events"

// TableEvent is a cross-instance table lifecycle event
type TableEvent struct {
	Type    string `json:"type"`
	TableID string `json:"table_id"`
	Message string `json:"message,omitempty"`
}

// PublishTableEvent announces a table event to every instance.
func PublishTableEvent(ctx context.Context, rdb *redis.Client, ev TableEvent) {
	if rdb == nil {
		return
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := rdb.Publish(ctx, tableEventsChannel, b).Err(); err != nil {
		log.Printf("[WS] publish %s failed for table %s: %v", ev.Type, ev.TableID, err)
	}
}

// StartTableEventSubscriber subscribes to table_events and forwards each event to
// the clients of that table on this instance.
func StartTableEventSubscriber(ctx context.Context, rdb *redis.Client, hub *Hub) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; table event subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, tableEventsChannel)
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		log.Println("[WS] table_events subscriber started")
		for msg := range ch {
			var ev TableEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("[WS] invalid event payload: %v", err)
				continue
			}
			if ev.TableID == "" {
				continue
			}
			hub.dispatchEvent(ev)
		}
	}()
}

func (h *Hub) dispatchEvent(ev TableEvent) {
	switch ev.Type {
	case "table_suspended", "table_closed", "table_resumed":
		if n := h.RoomSize(ev.TableID); n == 0 {
			return
		}
		log.Printf("[WS] relaying %s for table %s", ev.Type, ev.TableID)
		h.BroadcastToTable(ev.TableID, OutMessage{Type: ev.Type, Data: ev})
	default:
		log.Printf("[WS] unknown event type: %s", ev.Type)
	}
}
