// Package events carries application status changes over Watermill.
// Events always go to an in-process gochannel; a Kafka publisher can be added
// for consumers outside the service.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"busmate/internal/models"
)

const TopicPassStatusChanged = "pass.status_changed"

type PassStatusChanged struct {
	ApplicationID uint                     `json:"application_id"`
	UserID        uint                     `json:"user_id"`
	RouteID       uint                     `json:"route_id"`
	Status        models.ApplicationStatus `json:"status"`
	SeatNumber    *string                  `json:"seat_number"`
	OccurredAt    time.Time                `json:"occurred_at"`
}

// NewPassStatusChanged snapshots app into an event.
func NewPassStatusChanged(app *models.Application) PassStatusChanged {
	return PassStatusChanged{
		ApplicationID: app.ID,
		UserID:        app.UserID,
		RouteID:       app.RouteID,
		Status:        app.Status,
		SeatNumber:    app.SeatNumber,
		OccurredAt:    time.Now().UTC(),
	}
}

// Publisher is what the workflow depends on.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, evt PassStatusChanged) error
}

// Bus publishes to the local gochannel and, if set, an external publisher.
type Bus struct {
	local    *gochannel.GoChannel
	external message.Publisher
	logger   watermill.LoggerAdapter
}

func NewBus(logger watermill.LoggerAdapter, external message.Publisher) *Bus {
	return &Bus{
		local:    gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger),
		external: external,
		logger:   logger,
	}
}

func (b *Bus) PublishStatusChanged(ctx context.Context, evt PassStatusChanged) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var errs []error
	if err := b.local.Publish(TopicPassStatusChanged, newMessage(ctx, payload)); err != nil {
		errs = append(errs, fmt.Errorf("local publish: %w", err))
	}
	if b.external != nil {
		if err := b.external.Publish(TopicPassStatusChanged, newMessage(ctx, payload)); err != nil {
			errs = append(errs, fmt.Errorf("external publish: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Subscribe returns decoded status events until ctx is done.
func (b *Bus) Subscribe(ctx context.Context) (<-chan PassStatusChanged, error) {
	msgs, err := b.local.Subscribe(ctx, TopicPassStatusChanged)
	if err != nil {
		return nil, err
	}
	out := make(chan PassStatusChanged)
	go func() {
		defer close(out)
		for msg := range msgs {
			var evt PassStatusChanged
			if err := json.Unmarshal(msg.Payload, &evt); err != nil {
				b.logger.Error("dropping malformed status event", err, watermill.LogFields{"uuid": msg.UUID})
				msg.Ack()
				continue
			}
			select {
			case out <- evt:
			case <-ctx.Done():
				msg.Nack()
				return
			}
			msg.Ack()
		}
	}()
	return out, nil
}

func (b *Bus) Close() error {
	var errs []error
	if err := b.local.Close(); err != nil {
		errs = append(errs, err)
	}
	if b.external != nil {
		if err := b.external.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func newMessage(ctx context.Context, payload []byte) *message.Message {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return msg
}
