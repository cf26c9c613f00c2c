package realtime

import (
	"context"
	"errors"

	"github.com/goccy/go-json"

	"tableorder/internal/common/logger"
	"tableorder/internal/common/mq"
	"tableorder/internal/domain"
)

// RunBridge consumes row-change events from the changes queue and feeds
// them into the hub. Undecodable deliveries are dead-lettered.
func RunBridge(ctx context.Context, mqc *mq.Client, hub *Hub, lg *logger.Logger) error {
	deliveries, err := mqc.Consume(mq.QueueChanges, "feed-gateway", 16)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("changes consumer channel closed")
			}
			var ev domain.ChangeEvent
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				lg.Error("change_event_undecodable", err, map[string]any{"bytes": len(d.Body)})
				_ = d.Nack(false, false)
				continue
			}
			hub.Broadcast(ev)
			_ = d.Ack(false)
		}
	}
}
