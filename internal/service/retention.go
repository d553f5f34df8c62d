package service

import (
	"context"
	"time"

	"github.com/adshield/fraud-service/internal/util/logger"
)

// RetentionStore deletes aged rows in bounded batches.
type RetentionStore interface {
	DeleteClicksBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
	DeleteActivitiesBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// RetentionConfig controls the background purge of the analytics tables.
// Click rows feed the pattern check and statistics, so their retention must
// cover at least the day window; activity rows are the audit trail and are
// kept longer.
type RetentionConfig struct {
	Enabled       bool
	ClickTTL      time.Duration
	ActivityTTL   time.Duration
	SweepInterval time.Duration
	BatchSize     int
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.ClickTTL <= 0 {
		c.ClickTTL = 7 * 24 * time.Hour
	}
	if c.ActivityTTL <= 0 {
		c.ActivityTTL = 90 * 24 * time.Hour
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Hour
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5000
	}
	return c
}

// RetentionSweeper periodically hard-deletes expired click and activity rows.
type RetentionSweeper struct {
	store RetentionStore
	cfg   RetentionConfig
	stop  chan struct{}
	done  chan struct{}
}

func NewRetentionSweeper(store RetentionStore, cfg RetentionConfig) *RetentionSweeper {
	return &RetentionSweeper{
		store: store,
		cfg:   cfg.withDefaults(),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

func (s *RetentionSweeper) Start() {
	if !s.cfg.Enabled {
		close(s.done)
		return
	}
	go s.loop()
}

func (s *RetentionSweeper) Stop(ctx context.Context) {
	close(s.stop)
	select {
	case <-s.done:
	case <-ctx.Done():
	}
}

func (s *RetentionSweeper) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.stop:
			return
		}
	}
}

// Sweep runs one purge pass. Each table is swept independently so a failure
// on one does not starve the other.
func (s *RetentionSweeper) Sweep(ctx context.Context) {
	now := time.Now()

	deleted := s.sweepTable(ctx, "click_events", now.Add(-s.cfg.ClickTTL), s.store.DeleteClicksBefore)
	deleted += s.sweepTable(ctx, "suspicious_activities", now.Add(-s.cfg.ActivityTTL), s.store.DeleteActivitiesBefore)

	if deleted > 0 {
		logger.Infof("retention sweep deleted %d rows", deleted)
	}
}

func (s *RetentionSweeper) sweepTable(ctx context.Context, table string, cutoff time.Time, del func(context.Context, time.Time, int) (int64, error)) int64 {
	var total int64
	for {
		select {
		case <-s.stop:
			return total
		case <-ctx.Done():
			return total
		default:
		}

		n, err := del(ctx, cutoff, s.cfg.BatchSize)
		if err != nil {
			logger.Errorf("retention sweep of %s: %v", table, err)
			return total
		}
		total += n
		if n < int64(s.cfg.BatchSize) {
			return total
		}
	}
}
