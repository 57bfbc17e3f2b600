// Package bus carries JSON events over NATS JetStream. Trace context travels
// in message headers so consumers continue the publisher's trace.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "cdrpulse/pkg/bus"
	maxDeliver = 5
)

// Identified payloads are published with a JetStream message id, so a retried
// publish of the same event is stored once.
type Identified interface {
	MessageID() string
}

// Config describes the connection and the stream to bind.
type Config struct {
	URL  string
	Name string
	// Stream is created, or updated to capture Subjects, when set.
	Stream   string
	Subjects []string
}

// Bus wraps a NATS JetStream connection for publishing and consuming events.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// Connect dials NATS and makes sure the configured stream exists.
func Connect(cfg Config) (*Bus, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}

	nc, err := nats.Connect(cfg.URL, connectOptions(cfg.Name)...)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.URL, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}

	b := &Bus{conn: nc, js: js}
	if cfg.Stream != "" {
		if err := b.ensureStream(cfg.Stream, cfg.Subjects); err != nil {
			nc.Close()
			return nil, err
		}
	}
	return b, nil
}

func connectOptions(name string) []nats.Option {
	return []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
}

func (b *Bus) ensureStream(name string, subjects []string) error {
	info, err := b.js.StreamInfo(name)
	switch {
	case errors.Is(err, nats.ErrStreamNotFound):
		if _, err := b.js.AddStream(&nats.StreamConfig{Name: name, Subjects: subjects}); err != nil {
			return fmt.Errorf("add stream %s: %w", name, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("stream info %s: %w", name, err)
	}

	if slices.Equal(info.Config.Subjects, subjects) {
		return nil
	}
	cfg := info.Config
	cfg.Subjects = subjects
	if _, err := b.js.UpdateStream(&cfg); err != nil {
		return fmt.Errorf("update stream %s: %w", name, err)
	}
	return nil
}

// Close drains the connection, falling back to a hard close.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Publish encodes v as JSON and publishes it to subj with the trace context of ctx.
func (b *Bus) Publish(ctx context.Context, subj string, v any) error {
	if b == nil {
		return errors.New("nil bus")
	}
	msg, err := newMsg(ctx, subj, v)
	if err != nil {
		return err
	}
	if _, err := b.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %s: %w", subj, err)
	}
	return nil
}

func newMsg(ctx context.Context, subj string, v any) (*nats.Msg, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", subj, err)
	}
	msg := nats.NewMsg(subj)
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")
	if id, ok := v.(Identified); ok {
		msg.Header.Set(nats.MsgIdHdr, subj+"/"+id.MessageID())
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))
	return msg, nil
}

// messageContext returns ctx carrying the trace context found in msg's headers.
func messageContext(ctx context.Context, msg *nats.Msg) context.Context {
	if msg.Header == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(msg.Header))
}

type drainer interface {
	Drain() error
}

type subscription struct {
	sub     drainer
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
	err     error
}

// newSubscription drains sub when ctx ends or Close is called, whichever
// comes first.
func newSubscription(ctx context.Context, sub drainer) *subscription {
	s := &subscription{sub: sub, done: make(chan struct{}), stopped: make(chan struct{})}
	go func() {
		defer close(s.stopped)
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	return s
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.sub.Drain()
	})
	return s.err
}

// Subscribe creates a durable consumer on subj and invokes fn for each message
// inside a consumer span. A handler error naks the message; it is redelivered
// up to maxDeliver times. The subscription is drained when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, subj, durable string, fn func(ctx context.Context, subject string, data []byte) error) (io.Closer, error) {
	if b == nil {
		return nil, errors.New("nil bus")
	}
	if fn == nil {
		return nil, errors.New("nil handler")
	}

	tracer := otel.Tracer(tracerName)
	handler := func(msg *nats.Msg) {
		msgCtx, span := tracer.Start(messageContext(ctx, msg), "consume "+msg.Subject,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.system", "nats"),
				attribute.String("messaging.destination.name", msg.Subject),
				attribute.String("messaging.consumer.group.name", durable),
			),
		)
		defer span.End()

		if err := fn(msgCtx, msg.Subject, msg.Data); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}

	sub, err := b.js.Subscribe(subj, handler,
		nats.Durable(durable),
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.MaxDeliver(maxDeliver),
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subj, err)
	}

	return newSubscription(ctx, sub), nil
}
