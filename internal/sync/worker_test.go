package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gymdesk/internal/database"
	"gymdesk/internal/models"
	"gymdesk/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMirror struct {
	upserts        int
	statusUpdates  int
	replaceBooking int
	replaceMembers int
	err            error
}

func (m *fakeMirror) UpsertBooking(ctx context.Context, b *models.Booking) error {
	if m.err != nil {
		return m.err
	}
	m.upserts++
	return nil
}

func (m *fakeMirror) UpdateBookingStatus(ctx context.Context, bookingID, status string) error {
	if m.err != nil {
		return m.err
	}
	m.statusUpdates++
	return nil
}

func (m *fakeMirror) ReplaceBookingsSheet(ctx context.Context, bookings []models.Booking) error {
	if m.err != nil {
		return m.err
	}
	m.replaceBooking++
	return nil
}

func (m *fakeMirror) ReplaceMembersSheet(ctx context.Context, accounts []models.Account) error {
	if m.err != nil {
		return m.err
	}
	m.replaceMembers++
	return nil
}

type fakeSnapshots struct {
	snap store.Snapshot
}

func (s *fakeSnapshots) Snapshot() store.Snapshot { return s.snap }

func newWorkerTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "gymdesk.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleBooking(id string) *models.Booking {
	now := time.Now()
	return &models.Booking{
		ID:            id,
		StudentID:     "s1",
		TrainerID:     "t1",
		TimeSlotID:    "slot1",
		Date:          "2026-09-07",
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestEnqueueTaskLocalQueue(t *testing.T) {
	db := newWorkerTestDB(t)
	logger := zerolog.New(os.Stdout)
	worker := NewMirrorWorker(db, &fakeMirror{}, nil, nil, RetryPolicy{}, &logger)
	ctx := context.Background()

	require.NoError(t, worker.EnqueueTask(ctx, TaskUpsert, "", sampleBooking("b1"), ""))

	// Durable copy in sqlite.
	pending, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, TaskUpsert, pending[0].TaskType)
	assert.Equal(t, "b1", pending[0].BookingID)

	// Fast path copy in the in-memory queue.
	task, ok := worker.tryLocalQueue()
	require.True(t, ok)
	assert.Equal(t, "b1", task.BookingID)

	_, ok = worker.tryLocalQueue()
	assert.False(t, ok)
}

func TestEnqueueTaskValidation(t *testing.T) {
	db := newWorkerTestDB(t)
	logger := zerolog.New(os.Stdout)
	worker := NewMirrorWorker(db, &fakeMirror{}, nil, nil, RetryPolicy{}, &logger)
	ctx := context.Background()

	assert.Error(t, worker.EnqueueTask(ctx, "", "b1", nil, ""))
	assert.Error(t, worker.EnqueueTask(ctx, TaskUpsert, "", nil, ""))
	assert.Error(t, worker.EnqueueTask(ctx, TaskUpdateStatus, "", nil, "confirmed"))
}

func TestEnqueueTaskRedisPath(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	db := newWorkerTestDB(t)
	logger := zerolog.New(os.Stdout)
	worker := NewMirrorWorker(db, &fakeMirror{}, nil, client, RetryPolicy{}, &logger)
	ctx := context.Background()

	require.NoError(t, worker.EnqueueTask(ctx, TaskUpsert, "", sampleBooking("b1"), ""))

	// Redis got the task, the memory queue stayed empty.
	_, ok := worker.tryLocalQueue()
	assert.False(t, ok)

	task, ok := worker.tryRedis(ctx)
	require.True(t, ok)
	assert.Equal(t, "b1", task.BookingID)
	assert.Equal(t, TaskUpsert, task.TaskType)
}

func TestProcessTaskCompletes(t *testing.T) {
	db := newWorkerTestDB(t)
	logger := zerolog.New(os.Stdout)
	mirror := &fakeMirror{}
	worker := NewMirrorWorker(db, mirror, nil, nil, RetryPolicy{}, &logger)
	ctx := context.Background()

	require.NoError(t, worker.EnqueueTask(ctx, TaskUpsert, "", sampleBooking("b1"), ""))
	task, ok := worker.tryLocalQueue()
	require.True(t, ok)

	worker.processTask(ctx, &task)
	assert.Equal(t, 1, mirror.upserts)

	pending, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessTaskRetriesThenFails(t *testing.T) {
	db := newWorkerTestDB(t)
	logger := zerolog.New(os.Stdout)
	mirror := &fakeMirror{err: errors.New("sheet unavailable")}
	worker := NewMirrorWorker(db, mirror, nil, nil, RetryPolicy{MaxRetries: 2}, &logger)
	ctx := context.Background()

	require.NoError(t, worker.EnqueueTask(ctx, TaskUpdateStatus, "b1", nil, models.StatusConfirmed))
	task, ok := worker.tryLocalQueue()
	require.True(t, ok)

	// First attempt schedules a retry.
	worker.processTask(ctx, &task)

	failed, err := db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, failed)

	// Retry is in the future, so the poller skips it for now.
	pending, err := db.GetPendingSyncTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Attempt at the retry cap lands in the failure state.
	task.RetryCount = 1
	worker.processTask(ctx, &task)

	failed, err = db.GetFailedSyncTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.NotNil(t, failed[0].LastError)
	assert.Contains(t, *failed[0].LastError, "sheet unavailable")
}

func TestFailedTaskGoesToDeadLetter(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	db := newWorkerTestDB(t)
	logger := zerolog.New(os.Stdout)
	mirror := &fakeMirror{err: errors.New("sheet unavailable")}
	worker := NewMirrorWorker(db, mirror, nil, client, RetryPolicy{MaxRetries: 1}, &logger)
	ctx := context.Background()

	require.NoError(t, worker.EnqueueTask(ctx, TaskUpdateStatus, "b1", nil, models.StatusConfirmed))
	task, ok := worker.tryRedis(ctx)
	require.True(t, ok)

	worker.processTask(ctx, &task)

	entries, err := client.LRange(ctx, worker.deadLetterKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSnapshotTasksRebuildSheets(t *testing.T) {
	db := newWorkerTestDB(t)
	logger := zerolog.New(os.Stdout)
	mirror := &fakeMirror{}
	snapshots := &fakeSnapshots{snap: store.Snapshot{
		Accounts: []models.Account{{ID: "s1", Role: models.RoleStudent}},
		Bookings: []models.Booking{*sampleBooking("b1")},
	}}
	worker := NewMirrorWorker(db, mirror, snapshots, nil, RetryPolicy{}, &logger)
	ctx := context.Background()

	require.NoError(t, worker.EnqueueSnapshot(ctx))

	for {
		task, ok := worker.tryLocalQueue()
		if !ok {
			break
		}
		worker.processTask(ctx, &task)
	}

	assert.Equal(t, 1, mirror.replaceBooking)
	assert.Equal(t, 1, mirror.replaceMembers)
}

func TestHandleMirrorTaskValidation(t *testing.T) {
	db := newWorkerTestDB(t)
	logger := zerolog.New(os.Stdout)
	worker := NewMirrorWorker(db, &fakeMirror{}, nil, nil, RetryPolicy{}, &logger)
	ctx := context.Background()

	assert.Error(t, worker.handleMirrorTask(ctx, TaskUpsert, mirrorTaskPayload{}))
	assert.Error(t, worker.handleMirrorTask(ctx, TaskUpdateStatus, mirrorTaskPayload{BookingID: "b1"}))
	assert.Error(t, worker.handleMirrorTask(ctx, TaskReplaceBookings, mirrorTaskPayload{}))
	assert.Error(t, worker.handleMirrorTask(ctx, "unknown", mirrorTaskPayload{}))
}
