package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront_back_end/internal/models"
)

func orderStatusChannel(orderID int64) string {
	return fmt.Sprintf("order_status:%d", orderID)
}

// PublishOrderStatus diffuse un changement de statut aux abonnés de la commande
func (s *Store) PublishOrderStatus(ctx context.Context, event models.OrderStatusEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode status event: %w", err)
	}
	if err := s.rdb.Publish(ctx, orderStatusChannel(event.OrderID), data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// SubscribeOrderStatus retourne un flux d'évènements fermé quand ctx est annulé
func (s *Store) SubscribeOrderStatus(ctx context.Context, orderID int64) (<-chan models.OrderStatusEvent, error) {
	sub := s.rdb.Subscribe(ctx, orderStatusChannel(orderID))
	// attend la confirmation d'abonnement
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan models.OrderStatusEvent)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event models.OrderStatusEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
