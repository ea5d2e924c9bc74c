// Package bus carries kioskcm's change events over NATS JetStream as JSON.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// maxDeliver bounds redeliveries of a message whose handler keeps failing.
const maxDeliver = 10

var errNilBus = errors.New("bus is not connected")

type Bus struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger zerolog.Logger
}

// New dials url and opens a JetStream context. The connection reconnects
// forever and reports disconnects through logger.
func New(url string, logger zerolog.Logger) (*Bus, error) {
	b := &Bus{logger: logger.With().Str("component", "bus").Logger()}

	conn, err := nats.Connect(url,
		nats.Name("kioskcm"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(b.onDisconnect),
		nats.ReconnectHandler(b.onReconnect),
	)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	b.conn, b.js = conn, js
	return b, nil
}

func (b *Bus) onDisconnect(_ *nats.Conn, err error) {
	if err != nil {
		b.logger.Warn().Err(err).Msg("nats disconnected")
	}
}

func (b *Bus) onReconnect(conn *nats.Conn) {
	b.logger.Info().Str("url", conn.ConnectedUrl()).Msg("nats reconnected")
}

// Close drains pending messages before closing the connection.
func (b *Bus) Close() {
	if b == nil || b.conn == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// EnsureStream declares the stream that retains subjects for maxAge. An
// existing stream keeps its data and takes the new subject list.
func (b *Bus) EnsureStream(name string, subjects []string, maxAge time.Duration) error {
	if b == nil {
		return errNilBus
	}
	cfg := &nats.StreamConfig{
		Name:     name,
		Subjects: subjects,
		Storage:  nats.FileStorage,
		MaxAge:   maxAge,
	}
	_, err := b.js.StreamInfo(name)
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		_, err = b.js.AddStream(cfg)
	case err == nil:
		_, err = b.js.UpdateStream(cfg)
	}
	if err != nil {
		return fmt.Errorf("stream %s: %w", name, err)
	}
	return nil
}

func (b *Bus) Healthy() bool {
	return b != nil && b.conn != nil && b.conn.IsConnected()
}

// Publish sends v as JSON on subj and waits for the stream to store it.
func (b *Bus) Publish(ctx context.Context, subj string, v any) error {
	if b == nil {
		return errNilBus
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", subj, err)
	}
	if _, err := b.js.Publish(subj, payload, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", subj, err)
	}
	return nil
}

type consumer struct {
	ctx     context.Context
	subject string
	handle  func(context.Context, []byte) error
	logger  zerolog.Logger

	sub  *nats.Subscription
	once sync.Once
	err  error
}

func (c *consumer) receive(msg *nats.Msg) {
	if err := c.handle(c.ctx, msg.Data); err != nil {
		c.logger.Debug().Err(err).Str("subject", c.subject).Msg("handler failed; requesting redelivery")
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

func (c *consumer) Close() error {
	c.once.Do(func() { c.err = c.sub.Drain() })
	return c.err
}

// Subscribe attaches handle to the durable consumer on subj. A handler error
// requests redelivery. The consumer is drained when ctx ends or the returned
// Closer is closed.
func (b *Bus) Subscribe(ctx context.Context, subj, durable string, handle func(ctx context.Context, data []byte) error) (io.Closer, error) {
	if b == nil {
		return nil, errNilBus
	}
	if handle == nil {
		return nil, errors.New("handler is required")
	}

	c := &consumer{ctx: ctx, subject: subj, handle: handle, logger: b.logger}
	sub, err := b.js.Subscribe(subj, c.receive,
		nats.Durable(durable),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.MaxDeliver(maxDeliver),
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s as %s: %w", subj, durable, err)
	}
	c.sub = sub

	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()
	return c, nil
}
