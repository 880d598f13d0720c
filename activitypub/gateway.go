package activitypub

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/deemkeen/stegofed/domain"
)

// Gateway contains outbound delivery failures. Deliver returns immediately; the delivery runs
// under the supervisor and its outcome is only logged and counted.
type Gateway struct {
	protocol   Protocol
	supervisor *Supervisor
}

func NewGateway(protocol Protocol, supervisor *Supervisor) *Gateway {
	return &Gateway{protocol: protocol, supervisor: supervisor}
}

func (g *Gateway) Deliver(ctx context.Context, sender *domain.Account, recipients []Recipient, activity *Activity, opts DeliveryOptions) {
	name := fmt.Sprintf("deliver %s %s to %v", activity.Type, activity.ID, recipients)
	g.supervisor.Go(ctx, name, func(ctx context.Context) error {
		g.deliver(ctx, sender, recipients, activity, opts)
		return nil
	})
}

func (g *Gateway) deliver(ctx context.Context, sender *domain.Account, recipients []Recipient, activity *Activity, opts DeliveryOptions) {
	err := g.protocol.Deliver(ctx, sender, recipients, activity, opts)
	switch {
	case err == nil:
		deliveries.WithLabelValues(activity.Type, "ok").Inc()
	case errors.Is(err, ErrNoPublicAddress):
		log.Printf("Gateway: %s %s not delivered to %v (no public address, skipping)", activity.Type, activity.ID, recipients)
		deliveries.WithLabelValues(activity.Type, "skipped").Inc()
	default:
		log.Printf("Gateway: Failed to deliver %s %s to %v: %v", activity.Type, activity.ID, recipients, err)
		deliveries.WithLabelValues(activity.Type, "failed").Inc()
	}
}
