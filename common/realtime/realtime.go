// Package realtime pushes door activity to other staff devices.
package realtime

import (
	"context"
	"fmt"
	"time"

	pubnub "github.com/pubnub/go"

	"github.com/ticketbooth-services/common/logger"
)

// Door activity kinds
const (
	KindCheckIn      = "checkin"
	KindGroupCheckIn = "group_checkin"
	KindRedeem       = "redeem"
)

// DoorActivity is published after a check-in or redemption commits.
type DoorActivity struct {
	Kind      string    `json:"kind"`
	EventID   int64     `json:"eventId"`
	TicketIDs []int64   `json:"ticketIds"`
	Actor     string    `json:"actor"`
	At        time.Time `json:"at"`
}

// Broadcaster publishes door activity.
type Broadcaster interface {
	Publish(ctx context.Context, activity DoorActivity) error
}

// Channel is the per-event channel door devices subscribe to.
func Channel(eventID int64) string {
	return fmt.Sprintf("door-event-%d", eventID)
}

// Config holds PubNub keys.
type Config struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
}

// New returns a PubNub broadcaster, or a no-op one when keys are missing.
func New(cfg Config, log *logger.Logger) Broadcaster {
	if cfg.PublishKey == "" || cfg.SubscribeKey == "" {
		log.Info("realtime broadcast disabled: PubNub keys not configured")
		return Noop{}
	}

	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PublishKey
	pnConfig.SubscribeKey = cfg.SubscribeKey
	pnConfig.SecretKey = cfg.SecretKey

	pn := pubnub.NewPubNub(pnConfig)
	return &PubNub{
		publish: func(channel string, message interface{}) error {
			_, _, err := pn.Publish().Channel(channel).Message(message).Execute()
			return err
		},
		log: log.With("component", "realtime"),
	}
}

// PubNub publishes to one channel per event.
type PubNub struct {
	publish func(channel string, message interface{}) error
	log     *logger.Logger
}

func (p *PubNub) Publish(ctx context.Context, activity DoorActivity) error {
	channel := Channel(activity.EventID)
	if err := p.publish(channel, activity); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	p.log.WithContext(ctx).Debug("door activity published", "channel", channel, "kind", activity.Kind)
	return nil
}

// Noop discards activity.
type Noop struct{}

func (Noop) Publish(context.Context, DoorActivity) error { return nil }
