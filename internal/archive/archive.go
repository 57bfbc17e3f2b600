// Package archive stores completed runs in an S3-compatible bucket.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cdrpulse/internal/models"
	"cdrpulse/internal/results"
)

// ErrDisabled is returned by a nil Archiver.
var ErrDisabled = errors.New("archive disabled")

// ObjectStore is satisfied by *s3.Client.
type ObjectStore interface {
	PutJSON(ctx context.Context, bucket, key string, v any, meta map[string]string) error
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// Document is the archived form of a run.
type Document struct {
	Configuration models.TestConfiguration `json:"configuration"`
	Run           models.TestRun           `json:"run"`
	Summary       results.Summary          `json:"summary"`
	ArchivedAt    time.Time                `json:"archivedAt"`
}

// Archiver writes run documents under runs/<configurationId>/<runId>.json.
type Archiver struct {
	store  ObjectStore
	bucket string
	now    func() time.Time
}

// New returns an Archiver writing to bucket.
func New(store ObjectStore, bucket string) *Archiver {
	return &Archiver{store: store, bucket: bucket, now: time.Now}
}

// Key returns the object key of a run.
func Key(run models.TestRun) string {
	return fmt.Sprintf("runs/%s/%s.json", run.TestConfigurationID, run.ID)
}

// Enabled reports whether runs are archived.
func (a *Archiver) Enabled() bool {
	return a != nil && a.store != nil
}

// Archive uploads a completed run together with its summary.
func (a *Archiver) Archive(ctx context.Context, cfg models.TestConfiguration, run models.TestRun) (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}
	report, err := results.NewReport(cfg, run)
	if err != nil {
		return "", err
	}

	key := Key(run)
	doc := Document{
		Configuration: cfg,
		Run:           run,
		Summary:       report.Summary,
		ArchivedAt:    a.now().UTC(),
	}
	meta := map[string]string{
		"configuration-id": cfg.ID,
		"run-id":           run.ID,
		"verdict":          report.Summary.Verdict,
	}
	if err := a.store.PutJSON(ctx, a.bucket, key, doc, meta); err != nil {
		return "", fmt.Errorf("archive %s: %w", key, err)
	}
	return key, nil
}

// URL returns a time-limited download link for an archived run.
func (a *Archiver) URL(ctx context.Context, run models.TestRun, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}
	return a.store.PresignGet(ctx, a.bucket, Key(run), ttl)
}
