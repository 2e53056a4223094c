package repository

import (
	"context"
	"sync/atomic"
	"time"

	"gymdesk/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverChangeFeed publishes via the primary feed and degrades to the
// fallback when the primary errors. Recovery is re-probed once a minute.
type FailoverChangeFeed struct {
	primary   domain.ChangeFeed
	fallback  domain.ChangeFeed
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck time.Time
}

func NewFailoverChangeFeed(primary, fallback domain.ChangeFeed, logger *zerolog.Logger) *FailoverChangeFeed {
	return &FailoverChangeFeed{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (f *FailoverChangeFeed) Notify(ctx context.Context, table string) error {
	if !f.isDown.Load() {
		err := f.primary.Notify(ctx, table)
		if err == nil {
			return nil
		}
		f.logger.Error().Err(err).Msg("Primary change feed failed, falling back to memory")
		f.isDown.Store(true)
		f.lastCheck = time.Now()
	}

	// Try to recover after 1 minute
	if f.isDown.Load() && time.Since(f.lastCheck) > time.Minute {
		err := f.primary.Notify(ctx, table)
		if err == nil {
			f.isDown.Store(false)
			return nil
		}
		f.lastCheck = time.Now()
	}

	return f.fallback.Notify(ctx, table)
}

// Subscribe registers the handler on both feeds so notices arrive regardless
// of which side delivered them.
func (f *FailoverChangeFeed) Subscribe(ctx context.Context, handler func(table string)) error {
	if err := f.fallback.Subscribe(ctx, handler); err != nil {
		return err
	}
	if err := f.primary.Subscribe(ctx, handler); err != nil {
		f.logger.Error().Err(err).Msg("Primary change feed subscribe failed, memory feed only")
		f.isDown.Store(true)
		f.lastCheck = time.Now()
	}
	return nil
}
