package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DaveSongnata/BitTask/internal/queue"
	"github.com/DaveSongnata/BitTask/internal/store"
)

// Config holds the driver's tuning knobs.
type Config struct {
	// MaxRetries is the per-entry retry ceiling.
	MaxRetries int

	// BatchSize caps the envelopes sent in one Push call.
	BatchSize int

	// Interval is the time between passes in Run.
	Interval time.Duration

	// CleanupInterval is how often Run deletes synced entries.
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      queue.DefaultMaxRetries,
		BatchSize:       50,
		Interval:        30 * time.Second,
		CleanupInterval: 10 * time.Minute,
	}
}

// Report counts what one pass did.
type Report struct {
	Pushed     int `json:"pushed" yaml:"pushed"`         // accepted by the remote, forced resends included
	Forced     int `json:"forced" yaml:"forced"`         // conflicts won locally and resent
	Superseded int `json:"superseded" yaml:"superseded"` // conflicts won by the remote; marked synced unsent
	Failed     int `json:"failed" yaml:"failed"`         // marked failed in this pass
	HeldBack   int `json:"heldBack" yaml:"heldBack"`     // skipped behind a failed or exhausted entry

	Pulled   int           `json:"pulled" yaml:"pulled"`   // remote tasks written locally
	Deleted  int           `json:"deleted" yaml:"deleted"` // remote tombstones applied
	Skipped  int           `json:"skipped" yaml:"skipped"` // remote changes ignored in favour of pending local ones
	PullErr  string        `json:"pullError,omitempty" yaml:"pullError,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Driver runs push and pull passes against a Remote.
type Driver struct {
	db     *store.DB
	queue  *queue.Queue
	remote Remote
	config Config
	logger *zap.Logger
	now    func() time.Time
}

// NewDriver returns a driver. Zero fields in config take their defaults
// and a nil logger discards output.
func NewDriver(db *store.DB, q *queue.Queue, remote Remote, config Config, logger *zap.Logger) (*Driver, error) {
	if db == nil || q == nil {
		return nil, fmt.Errorf("db and queue are required")
	}
	if remote == nil {
		return nil, fmt.Errorf("remote cannot be nil")
	}

	defaults := DefaultConfig()
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Driver{
		db:     db,
		queue:  q,
		remote: remote,
		config: config,
		logger: logger.With(zap.String("component", "sync")),
		now:    time.Now,
	}, nil
}

// SyncOnce pushes, then pulls.
func (d *Driver) SyncOnce(ctx context.Context) (*Report, error) {
	start := d.now()
	report := &Report{}

	if err := d.push(ctx, report); err != nil {
		return report, err
	}
	if err := d.pull(ctx, report); err != nil {
		return report, err
	}

	report.Duration = d.now().Sub(start)
	d.logger.Info("sync pass complete",
		zap.Int("pushed", report.Pushed),
		zap.Int("forced", report.Forced),
		zap.Int("superseded", report.Superseded),
		zap.Int("failed", report.Failed),
		zap.Int("held_back", report.HeldBack),
		zap.Int("pulled", report.Pulled),
		zap.Int("deleted", report.Deleted),
		zap.Int("skipped", report.Skipped),
		zap.Duration("took", report.Duration))
	return report, nil
}

// Run syncs immediately and then every Interval until ctx is cancelled,
// cleaning up synced entries every CleanupInterval. Pass failures are
// logged; Run only returns when ctx is done.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("starting sync loop",
		zap.Duration("interval", d.config.Interval),
		zap.Int("max_retries", d.config.MaxRetries))

	d.pass(ctx)

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()
	cleanup := time.NewTicker(d.config.CleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("sync loop stopped")
			return ctx.Err()

		case <-ticker.C:
			d.pass(ctx)

		case <-cleanup.C:
			if _, err := d.queue.CleanupSynced(ctx); err != nil {
				d.logger.Warn("cleanup failed", zap.Error(err))
			}
		}
	}
}

func (d *Driver) pass(ctx context.Context) {
	if _, err := d.SyncOnce(ctx); err != nil && ctx.Err() == nil {
		d.logger.Error("sync pass failed", zap.Error(err))
	}
}
