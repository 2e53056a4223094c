package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"gymdesk/internal/database"
	"gymdesk/internal/models"
	"gymdesk/internal/repository"
	"gymdesk/internal/store"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scheduleFixture struct {
	store *store.Store
	db    *fakePersister
	feed  *fakeFeed
	bus   *fakeBus
	svc   *ScheduleService
}

func newScheduleFixture(t *testing.T) *scheduleFixture {
	t.Helper()
	st := store.New()

	_, err := st.RegisterAccount(models.Account{
		ID:    "trainer-1",
		Name:  "Elena",
		Email: "elena@example.com",
		Role:  models.RoleTrainer,
	})
	require.NoError(t, err)
	_, err = st.RegisterAccount(models.Account{
		ID:    "student-1",
		Name:  "Dana",
		Email: "dana@example.com",
		Role:  models.RoleStudent,
	})
	require.NoError(t, err)

	logger := zerolog.New(io.Discard)
	f := &scheduleFixture{
		store: st,
		db:    &fakePersister{},
		feed:  &fakeFeed{},
		bus:   &fakeBus{},
	}
	f.svc = NewScheduleService(st, f.db, f.feed, f.bus, &logger)
	return f
}

func TestAddTimeSlotPersists(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()

	slot, err := f.svc.AddTimeSlot(ctx, "trainer-1", "Monday", "09:00", "10:00")
	require.NoError(t, err)
	assert.Equal(t, "trainer-1", slot.TrainerID)

	assert.Equal(t, []string{slot.ID}, f.db.txSlots)
	assert.Contains(t, f.feed.tables, repository.TableTimeSlots)
	assert.NotEmpty(t, f.bus.events)
}

func TestAddTimeSlotOverlapRaceRollsBack(t *testing.T) {
	f := newScheduleFixture(t)
	f.db.slotTxErr = database.ErrOverlap
	ctx := context.Background()

	_, err := f.svc.AddTimeSlot(ctx, "trainer-1", "Monday", "09:00", "10:00")
	assert.ErrorIs(t, err, store.ErrTimeSlotConflict)

	// The memory insert was undone.
	slots, err := f.svc.TrainerSlots("trainer-1")
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestAddTimeSlotPersistenceFailureKeepsMemory(t *testing.T) {
	f := newScheduleFixture(t)
	f.db.slotTxErr = errors.New("disk full")
	ctx := context.Background()

	slot, err := f.svc.AddTimeSlot(ctx, "trainer-1", "Monday", "09:00", "10:00")
	assert.ErrorIs(t, err, store.ErrPersistenceFailed)
	require.NotNil(t, slot)

	slots, err := f.svc.TrainerSlots("trainer-1")
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestRemoveTimeSlotDeletes(t *testing.T) {
	f := newScheduleFixture(t)
	ctx := context.Background()

	slot, err := f.svc.AddTimeSlot(ctx, "trainer-1", "Monday", "09:00", "10:00")
	require.NoError(t, err)

	removed, err := f.svc.RemoveTimeSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, slot.ID, removed.ID)
	assert.Equal(t, []string{slot.ID}, f.db.deletedSlots)

	_, err = f.svc.RemoveTimeSlot(ctx, slot.ID)
	assert.ErrorIs(t, err, store.ErrTimeSlotNotFound)
}

func TestAvailableSlotsUnknownTrainer(t *testing.T) {
	f := newScheduleFixture(t)

	_, err := f.svc.AvailableSlots("missing")
	assert.ErrorIs(t, err, store.ErrUnknownTrainer)

	// Студент не является тренером.
	_, err = f.svc.AvailableSlots("student-1")
	assert.ErrorIs(t, err, store.ErrUnknownTrainer)

	// No filter lists everything.
	slots, err := f.svc.AvailableSlots("")
	require.NoError(t, err)
	assert.Empty(t, slots)
}
