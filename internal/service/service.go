// Package service implements the BitTask domain operations on top of the
// store and the offline queue.
//
// Every task and attachment mutation writes the entity and its queue entry
// in one transaction. Missing entities are reported as nil or false with a
// nil error; bad input is reported as *ValidationError; anything else is a
// storage failure.
package service

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/DaveSongnata/BitTask/internal/queue"
	"github.com/DaveSongnata/BitTask/internal/store"
)

// ValidationError reports input rejected before anything was written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// requireText trims s and rejects it when empty.
func requireText(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", invalid(field, "must not be empty")
	}
	return s, nil
}

// deps is what every service shares.
type deps struct {
	db     *store.DB
	queue  *queue.Queue
	now    func() time.Time
	logger *zap.Logger
}

// timestamp returns the current time at the millisecond precision the
// store keeps.
func (d *deps) timestamp() time.Time {
	return d.now().UTC().Truncate(time.Millisecond)
}

// Option configures New.
type Option func(*deps)

// WithClock overrides time.Now for entity timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(d *deps) {
		if logger != nil {
			d.logger = logger.With(zap.String("component", "service"))
		}
	}
}

// Services bundles the domain services over one store.
type Services struct {
	Tasks       *TaskService
	Boards      *BoardService
	Subtasks    *SubtaskService
	Attachments *AttachmentService
	Settings    *SettingsService
}

// New wires the services to db and q.
func New(db *store.DB, q *queue.Queue, opts ...Option) *Services {
	d := &deps{
		db:     db,
		queue:  q,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}

	return &Services{
		Tasks:       &TaskService{d},
		Boards:      &BoardService{d},
		Subtasks:    &SubtaskService{d},
		Attachments: &AttachmentService{d},
		Settings:    &SettingsService{d},
	}
}
