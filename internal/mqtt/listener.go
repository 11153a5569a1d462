// Package mqtt receives message events published by the messaging bridge.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/PratikDhanave/group-message-collector/internal/models"
)

// Submitter accepts events for processing.
type Submitter interface {
	Submit(ctx context.Context, ev models.Event) (models.Decision, error)
}

type Config struct {
	Broker   string // e.g. tcp://localhost:1883
	Topic    string
	ClientID string
	QoS      byte
}

type Listener struct {
	cfg    Config
	submit Submitter
	log    zerolog.Logger
	client paho.Client
}

func NewListener(cfg Config, submit Submitter, log zerolog.Logger) *Listener {
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("group-collector-%d", time.Now().UnixNano())
	}
	return &Listener{cfg: cfg, submit: submit, log: log}
}

// Start connects, subscribes on every (re)connect and blocks until ctx is
// cancelled.
func (l *Listener) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(l.cfg.Broker).
		SetClientID(l.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetOnConnectHandler(func(c paho.Client) {
			l.log.Info().Str("broker", l.cfg.Broker).Msg("mqtt connected")
			handler := func(_ paho.Client, msg paho.Message) {
				l.handle(ctx, msg.Topic(), msg.Payload())
			}
			if token := c.Subscribe(l.cfg.Topic, l.cfg.QoS, handler); token.Wait() && token.Error() != nil {
				l.log.Error().Err(token.Error()).Str("topic", l.cfg.Topic).Msg("mqtt subscribe")
			} else {
				l.log.Info().Str("topic", l.cfg.Topic).Msg("mqtt subscribed")
			}
		}).
		SetConnectionLostHandler(func(c paho.Client, err error) {
			l.log.Warn().Err(err).Msg("mqtt connection lost")
		})

	l.client = paho.NewClient(opts)

	// With connect retry enabled the token only completes once a broker
	// answers, so wait on ctx as well.
	token := l.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("connect mqtt: %w", err)
		}
	case <-ctx.Done():
	}

	<-ctx.Done()
	l.log.Info().Msg("mqtt disconnecting")
	l.client.Disconnect(250)
	return nil
}

func (l *Listener) handle(ctx context.Context, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Str("topic", topic).Msg("mqtt handler panic")
		}
	}()

	var ev models.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		l.log.Warn().Err(err).Str("topic", topic).Msg("invalid event payload")
		return
	}
	if err := ev.Validate(); err != nil {
		l.log.Warn().Err(err).Str("topic", topic).Str("message_id", ev.MessageID).Msg("invalid event payload")
		return
	}

	d, err := l.submit.Submit(ctx, ev)
	if err != nil {
		l.log.Warn().Err(err).Str("topic", topic).Str("message_id", ev.MessageID).Msg("event not processed")
		return
	}
	l.log.Debug().Str("message_id", ev.MessageID).Bool("accepted", d.Accepted).Str("reason", string(d.Reason)).Msg("event processed")
}
