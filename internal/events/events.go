// Package events defines the lifecycle notifications published on the bus
// when configurations and runs change.
package events

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cdrpulse/internal/models"
)

// Stream is the JetStream stream that captures every cdrpulse subject.
const Stream = "CDRPULSE"

const (
	ConfigurationCreated = "cdrpulse.configurations.created"
	ConfigurationUpdated = "cdrpulse.configurations.updated"
	ConfigurationDeleted = "cdrpulse.configurations.deleted"
	RunCreated           = "cdrpulse.runs.created"
	RunUpdated           = "cdrpulse.runs.updated"
	RunFinished          = "cdrpulse.runs.finished"

	// All matches every subject above.
	All = "cdrpulse.>"
)

// Publisher is satisfied by *bus.Bus.
type Publisher interface {
	Publish(ctx context.Context, subject string, v any) error
}

// ConfigurationEvent is published for configuration writes.
type ConfigurationEvent struct {
	ID            string                    `json:"id"`
	Configuration *models.TestConfiguration `json:"configuration,omitempty"`
	At            time.Time                 `json:"at"`
}

// MessageID identifies one write of a configuration. Updates carry the
// strictly increasing updatedAt of the row.
func (e ConfigurationEvent) MessageID() string {
	at := e.At
	if e.Configuration != nil {
		at = e.Configuration.UpdatedAt
	}
	return e.ID + "/" + strconv.FormatInt(at.UnixNano(), 10)
}

// RunEvent is published for run writes. PreviousStatus is empty on creation.
type RunEvent struct {
	Run            models.TestRun   `json:"run"`
	PreviousStatus models.RunStatus `json:"previousStatus,omitempty"`
	At             time.Time        `json:"at"`
}

func (e RunEvent) MessageID() string {
	return e.Run.ID + "/" + string(e.Run.Status) + "/" + strconv.FormatInt(e.At.UnixNano(), 10)
}

// Emitter publishes events without ever failing the caller. A nil publisher
// disables publishing.
type Emitter struct {
	pub Publisher
	now func() time.Time
}

// NewEmitter wraps pub. pub may be nil.
func NewEmitter(pub Publisher) *Emitter {
	return &Emitter{pub: pub, now: time.Now}
}

// Enabled reports whether events are actually published.
func (e *Emitter) Enabled() bool {
	return e != nil && e.pub != nil
}

func (e *Emitter) ConfigurationCreated(ctx context.Context, cfg models.TestConfiguration) {
	e.publish(ctx, ConfigurationCreated, ConfigurationEvent{ID: cfg.ID, Configuration: &cfg, At: e.now().UTC()})
}

func (e *Emitter) ConfigurationUpdated(ctx context.Context, cfg models.TestConfiguration) {
	e.publish(ctx, ConfigurationUpdated, ConfigurationEvent{ID: cfg.ID, Configuration: &cfg, At: e.now().UTC()})
}

func (e *Emitter) ConfigurationDeleted(ctx context.Context, id string) {
	e.publish(ctx, ConfigurationDeleted, ConfigurationEvent{ID: id, At: e.now().UTC()})
}

func (e *Emitter) RunCreated(ctx context.Context, run models.TestRun) {
	e.publish(ctx, RunCreated, RunEvent{Run: run, At: e.now().UTC()})
}

// RunUpdated publishes the update and, when the run just reached a terminal
// status, a finished event as well.
func (e *Emitter) RunUpdated(ctx context.Context, run models.TestRun, previous models.RunStatus) {
	evt := RunEvent{Run: run, PreviousStatus: previous, At: e.now().UTC()}
	e.publish(ctx, RunUpdated, evt)
	if run.Status.Terminal() && !previous.Terminal() {
		e.publish(ctx, RunFinished, evt)
	}
}

func (e *Emitter) publish(ctx context.Context, subject string, payload any) {
	if !e.Enabled() {
		return
	}
	if err := e.pub.Publish(ctx, subject, payload); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("publish event")
	}
}

// Subscriber is satisfied by *bus.Bus.
type Subscriber interface {
	Subscribe(ctx context.Context, subject, durable string, fn func(ctx context.Context, subject string, data []byte) error) (io.Closer, error)
}

// Watch logs every event published under All until ctx is cancelled.
func Watch(ctx context.Context, sub Subscriber, durable string, logger zerolog.Logger) (io.Closer, error) {
	return sub.Subscribe(ctx, All, durable, func(_ context.Context, subject string, data []byte) error {
		logger.Info().
			Str("kind", strings.TrimPrefix(subject, "cdrpulse.")).
			RawJSON("payload", data).
			Msg("event")
		return nil
	})
}
