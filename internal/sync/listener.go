package sync

import (
	"context"
	"time"

	"gymdesk/internal/database"
	"gymdesk/internal/domain"
	"gymdesk/internal/store"

	"github.com/rs/zerolog"
)

// FeedListener refreshes the in-memory store whenever another process
// announces a change. Notices are coalesced: a burst of changes triggers one
// reload.
type FeedListener struct {
	store  *store.Store
	db     *database.DB
	feed   domain.ChangeFeed
	logger *zerolog.Logger
	kick   chan struct{}

	// debounce window before reloading after the first notice
	settle time.Duration
}

func NewFeedListener(st *store.Store, db *database.DB, feed domain.ChangeFeed, logger *zerolog.Logger) *FeedListener {
	return &FeedListener{
		store:  st,
		db:     db,
		feed:   feed,
		logger: logger,
		kick:   make(chan struct{}, 1),
		settle: 200 * time.Millisecond,
	}
}

// Start subscribes to the feed and runs the reload loop until ctx is done.
func (l *FeedListener) Start(ctx context.Context) error {
	err := l.feed.Subscribe(ctx, func(table string) {
		l.logger.Debug().Str("table", table).Msg("change notice received")
		select {
		case l.kick <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}

	go l.loop(ctx)
	return nil
}

func (l *FeedListener) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.kick:
		}

		timer := time.NewTimer(l.settle)
	drain:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-l.kick:
			case <-timer.C:
				break drain
			}
		}

		l.Reload(ctx)
	}
}

// Reload replaces the in-memory state with the database snapshot. Booking
// slot references span tables, so a full reload is the only way to keep the
// collections mutually consistent.
func (l *FeedListener) Reload(ctx context.Context) {
	snap, err := l.db.LoadSnapshot(ctx)
	if err != nil {
		l.logger.Error().Err(err).Msg("store reload failed")
		return
	}
	l.store.Load(snap)
	l.logger.Info().
		Int("accounts", len(snap.Accounts)).
		Int("time_slots", len(snap.TimeSlots)).
		Int("bookings", len(snap.Bookings)).
		Msg("store reloaded from database")
}

// SnapshotTicker periodically schedules full mirror rebuilds.
func SnapshotTicker(ctx context.Context, worker domain.SyncWorker, interval time.Duration, logger *zerolog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := worker.EnqueueSnapshot(ctx); err != nil {
				logger.Error().Err(err).Msg("snapshot enqueue failed")
			}
		}
	}
}
