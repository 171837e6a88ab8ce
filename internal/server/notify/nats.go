package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dmitrijs2005/gophstore/internal/logging"
	nats "github.com/nats-io/nats.go"
)

var errNotConnected = errors.New("nats connection is closed")

// publisher is the part of *nats.Conn the notifier uses.
type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	IsClosed() bool
}

// NATSNotifier publishes ResetNotice values as JSON to a subject. Transient
// publish failures are retried with exponential backoff.
type NATSNotifier struct {
	conn    publisher
	subject string
	log     logging.Logger

	// MaxElapsed bounds the retries of a single notification.
	MaxElapsed time.Duration
}

func NewNATSNotifier(conn *nats.Conn, subject string, log logging.Logger) *NATSNotifier {
	return newNATSNotifier(conn, subject, log)
}

func newNATSNotifier(conn publisher, subject string, log logging.Logger) *NATSNotifier {
	return &NATSNotifier{conn: conn, subject: subject, log: log, MaxElapsed: 3 * time.Second}
}

func (n *NATSNotifier) NotifyPasswordReset(ctx context.Context, notice ResetNotice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return err
	}

	// Publish succeeds at most once; after that only the flush is retried.
	attempt := 0
	published := false
	op := func() error {
		attempt++
		if n.conn.IsClosed() {
			return backoff.Permanent(errNotConnected)
		}
		if !published {
			if err := n.conn.Publish(n.subject, data); err != nil {
				n.log.Warn(ctx, "publish failed", "subject", n.subject, "attempt", attempt, "error", err)
				return err
			}
			published = true
		}
		if err := n.conn.FlushWithContext(ctx); err != nil {
			n.log.Warn(ctx, "flush failed", "subject", n.subject, "attempt", attempt, "error", err)
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = n.MaxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return err
	}

	n.log.Info(ctx, "password reset notice published", "subject", n.subject, "user_id", notice.UserID)
	return nil
}

// Connect dials url with reconnects enabled. The returned connection should be
// drained by the caller on shutdown.
func Connect(ctx context.Context, url string, log logging.Logger) (*nats.Conn, error) {
	var nc *nats.Conn
	op := func() error {
		var err error
		nc, err = nats.Connect(url,
			nats.Name("gophstore"),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					log.Warn(context.Background(), "nats disconnected", "error", err)
				}
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				log.Info(context.Background(), "nats reconnected", "url", c.ConnectedUrl())
			}),
		)
		return err
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return nc, nil
}
