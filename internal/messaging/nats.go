package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"focusflow/internal/core/pomodoro"
	"focusflow/internal/logging"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

const natsRequestTimeout = 10 * time.Second

// NATSResponder answers dispatcher requests on a NATS subject and publishes
// status updates on <subject>.status.
type NATSResponder struct {
	conn       *nats.Conn
	sub        *nats.Subscription
	dispatcher *Dispatcher
	subject    string
	log        *logrus.Entry
}

// NewNATSResponder connects to url.
func NewNATSResponder(url, subject string, dispatcher *Dispatcher) (*NATSResponder, error) {
	log := logging.NewLogger("messaging")
	conn, err := nats.Connect(url,
		nats.Name("focusflow"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.WithError(err).Warn("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			log.WithField("url", conn.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSResponder{conn: conn, dispatcher: dispatcher, subject: subject, log: log}, nil
}

// Start subscribes to the request subject. Requests run with ctx as parent.
func (responder *NATSResponder) Start(ctx context.Context) error {
	sub, err := responder.conn.Subscribe(responder.subject, func(msg *nats.Msg) {
		requestCtx, cancel := context.WithTimeout(ctx, natsRequestTimeout)
		defer cancel()
		reply := Reply(responder.dispatcher.Dispatch(requestCtx, msg.Data))
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			responder.log.WithError(err).Warn("Failed to answer NATS request")
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", responder.subject, err)
	}
	responder.sub = sub
	responder.log.WithField("subject", responder.subject).Info("NATS responder subscribed")
	return nil
}

// PublishStatus forwards engine events until ctx is done or events closes.
func (responder *NATSResponder) PublishStatus(ctx context.Context, events <-chan pomodoro.Event) {
	subject := responder.subject + ".status"
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(newStatusUpdate(event))
			if err != nil {
				continue
			}
			if err := responder.conn.Publish(subject, payload); err != nil {
				responder.log.WithError(err).Debug("Failed to publish status update")
			}
		}
	}
}

// Close unsubscribes and drains the connection.
func (responder *NATSResponder) Close() error {
	if responder.sub != nil {
		_ = responder.sub.Unsubscribe()
	}
	return responder.conn.Drain()
}
