// Package store persists test configurations and runs through GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	// DefaultTimeout bounds every storage operation.
	DefaultTimeout = 5 * time.Second

	DefaultRunLimit = 50
	MaxRunLimit     = 500
)

// ErrNotFound is returned when an id does not match a stored entity.
var ErrNotFound = errors.New("not found")

// StorageError wraps a driver or ORM failure with the operation that failed.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// Store is the transactional persistence layer.
type Store struct {
	orm          *gorm.DB
	now          func() time.Time
	defaultLimit int
	maxLimit     int
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithRunLimits sets the default and maximum number of runs returned by ListRuns.
func WithRunLimits(def, max int) Option {
	return func(s *Store) {
		if def > 0 {
			s.defaultLimit = def
		}
		if max >= s.defaultLimit {
			s.maxLimit = max
		}
	}
}

// New constructs a Store backed by orm.
func New(orm *gorm.DB, opts ...Option) (*Store, error) {
	if orm == nil {
		return nil, errors.New("store: orm is required")
	}
	s := &Store{
		orm:          orm,
		now:          time.Now,
		defaultLimit: DefaultRunLimit,
		maxLimit:     MaxRunLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Limits returns the default and maximum run list sizes.
func (s *Store) Limits() (def, max int) {
	return s.defaultLimit, s.maxLimit
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.orm.DB()
	if err != nil {
		return storageErr("ping", err)
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return storageErr("ping", sqlDB.PingContext(ctx))
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// after returns a timestamp strictly later than prev.
func (s *Store) after(prev time.Time) time.Time {
	t := s.timestamp()
	if !t.After(prev) {
		t = prev.Add(time.Microsecond)
	}
	return t
}

func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, DefaultTimeout)
}
