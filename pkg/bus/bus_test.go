package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type runEvent struct {
	ID string `json:"id"`
}

func (e runEvent) MessageID() string { return e.ID }

func TestNilBus(t *testing.T) {
	var b *Bus

	require.EqualError(t, b.Publish(context.Background(), "cdrpulse.runs.created", map[string]string{"id": "1"}), "nil bus")

	_, err := b.Subscribe(context.Background(), "cdrpulse.>", "watch", func(context.Context, string, []byte) error { return nil })
	require.EqualError(t, err, "nil bus")

	require.NotPanics(t, b.Close)
}

func TestConnectRequiresURL(t *testing.T) {
	_, err := Connect(Config{Name: "cdrpulse"})
	require.EqualError(t, err, "nats url is required")
}

func TestSubscribeRequiresHandler(t *testing.T) {
	b := &Bus{}
	_, err := b.Subscribe(context.Background(), "cdrpulse.>", "watch", nil)
	require.EqualError(t, err, "nil handler")
}

type countingDrainer struct {
	calls atomic.Int32
	err   error
}

func (d *countingDrainer) Drain() error {
	d.calls.Add(1)
	return d.err
}

func waitStopped(t *testing.T, s *subscription) {
	t.Helper()
	select {
	case <-s.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription watcher still running")
	}
}

func TestSubscriptionCloseStopsWatcher(t *testing.T) {
	d := &countingDrainer{err: errors.New("connection closed")}
	s := newSubscription(context.Background(), d)

	require.EqualError(t, s.Close(), "connection closed")
	waitStopped(t, s)

	require.EqualError(t, s.Close(), "connection closed")
	require.Equal(t, int32(1), d.calls.Load())
}

func TestSubscriptionDrainsOnContextDone(t *testing.T) {
	d := &countingDrainer{}
	ctx, cancel := context.WithCancel(context.Background())
	s := newSubscription(ctx, d)

	cancel()
	waitStopped(t, s)
	require.Equal(t, int32(1), d.calls.Load())

	require.NoError(t, s.Close())
	require.Equal(t, int32(1), d.calls.Load())
}

func TestNewMsg(t *testing.T) {
	msg, err := newMsg(context.Background(), "cdrpulse.runs.created", runEvent{ID: "r1"})
	require.NoError(t, err)
	require.Equal(t, "cdrpulse.runs.created", msg.Subject)
	require.JSONEq(t, `{"id":"r1"}`, string(msg.Data))
	require.Equal(t, "application/json", msg.Header.Get("Content-Type"))
	require.Equal(t, "cdrpulse.runs.created/r1", msg.Header.Get(nats.MsgIdHdr))

	msg, err = newMsg(context.Background(), "cdrpulse.stats", map[string]int{"completed": 2})
	require.NoError(t, err)
	require.Empty(t, msg.Header.Get(nats.MsgIdHdr))

	_, err = newMsg(context.Background(), "cdrpulse.bad", make(chan int))
	require.Error(t, err)
}

func TestTraceContextRoundTrip(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), parent)

	msg, err := newMsg(ctx, "cdrpulse.runs.finished", runEvent{ID: "r1"})
	require.NoError(t, err)
	require.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", propagation.HeaderCarrier(msg.Header).Get("traceparent"))

	got := trace.SpanContextFromContext(messageContext(context.Background(), msg))
	require.Equal(t, traceID, got.TraceID())
	require.Equal(t, spanID, got.SpanID())

	bare := &nats.Msg{Subject: "cdrpulse.runs.finished"}
	require.False(t, trace.SpanContextFromContext(messageContext(context.Background(), bare)).IsValid())
}
