package realtime

import (
	"fmt"

	"event-checkin/config"

	"github.com/google/uuid"
	pubnub "github.com/pubnub/go"
)

// Publisher fans applied changes out to connected clients.
type Publisher interface {
	Publish(channel string, message interface{}) error
}

func EventChannel(eventID uuid.UUID) string {
	return fmt.Sprintf("event-%s", eventID)
}

type PubNubPublisher struct {
	pn *pubnub.PubNub
}

// NewPublisher returns a PubNub publisher, or a no-op one when PubNub is not configured.
func NewPublisher(cfg config.PubNubConfig) Publisher {
	if !cfg.Enabled() {
		return noopPublisher{}
	}
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PublishKey
	pnConfig.SubscribeKey = cfg.SubscribeKey
	pnConfig.SecretKey = cfg.SecretKey

	return &PubNubPublisher{pn: pubnub.NewPubNub(pnConfig)}
}

func (p *PubNubPublisher) Publish(channel string, message interface{}) error {
	_, _, err := p.pn.Publish().
		Channel(channel).
		Message(message).
		Execute()
	return err
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, interface{}) error { return nil }
