package service

import (
	"context"
	"errors"
	"fmt"

	"gymdesk/internal/database"
	"gymdesk/internal/domain"
	"gymdesk/internal/events"
	"gymdesk/internal/metrics"
	"gymdesk/internal/models"
	"gymdesk/internal/repository"
	"gymdesk/internal/store"

	"github.com/rs/zerolog"
)

// ScheduleService manages trainer availability windows.
type ScheduleService struct {
	store    *store.Store
	db       domain.Persister
	feed     domain.ChangeFeed
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
}

func NewScheduleService(st *store.Store, db domain.Persister, feed domain.ChangeFeed, eventBus domain.EventPublisher, logger *zerolog.Logger) *ScheduleService {
	return &ScheduleService{
		store:    st,
		db:       db,
		feed:     feed,
		eventBus: eventBus,
		logger:   logger,
	}
}

// AddTimeSlot publishes a new availability window. The database re-runs the
// overlap check inside a transaction so concurrent inserts for the same
// trainer and day cannot both land.
func (s *ScheduleService) AddTimeSlot(ctx context.Context, trainerID, day, startTime, endTime string) (*models.TimeSlot, error) {
	slot, err := s.store.AddTimeSlot(trainerID, day, startTime, endTime)
	if err != nil {
		metrics.IncBookingOp("add_slot", "error")
		return nil, err
	}

	if s.db != nil {
		if err := s.db.CreateTimeSlotTx(ctx, slot); err != nil {
			if errors.Is(err, database.ErrOverlap) {
				// Lost the transactional overlap race; undo the memory insert.
				if _, removeErr := s.store.RemoveTimeSlot(slot.ID); removeErr != nil {
					s.logger.Error().Err(removeErr).Str("slot_id", slot.ID).Msg("rollback after overlap race failed")
				}
				metrics.IncBookingOp("add_slot", "error")
				return nil, store.ErrTimeSlotConflict
			}
			metrics.IncPersistenceFailure()
			s.logger.Error().Err(err).Str("slot_id", slot.ID).Msg("persistence failed, memory state kept")
			return slot, fmt.Errorf("%w: add time slot: %v", store.ErrPersistenceFailed, err)
		}
		s.notify(ctx, repository.TableTimeSlots)
	}

	metrics.IncBookingOp("add_slot", "ok")
	s.publishSlotEvent(events.EventSlotAdded, slot)
	return slot, nil
}

// RemoveTimeSlot deletes an availability window not held by an active booking.
func (s *ScheduleService) RemoveTimeSlot(ctx context.Context, id string) (*models.TimeSlot, error) {
	slot, err := s.store.RemoveTimeSlot(id)
	if err != nil {
		metrics.IncBookingOp("remove_slot", "error")
		return nil, err
	}

	if s.db != nil {
		if err := s.db.DeleteTimeSlot(ctx, id); err != nil {
			metrics.IncPersistenceFailure()
			s.logger.Error().Err(err).Str("slot_id", id).Msg("persistence failed, memory state kept")
			return slot, fmt.Errorf("%w: remove time slot: %v", store.ErrPersistenceFailed, err)
		}
		s.notify(ctx, repository.TableTimeSlots)
	}

	metrics.IncBookingOp("remove_slot", "ok")
	s.publishSlotEvent(events.EventSlotRemoved, slot)
	return slot, nil
}

// AvailableSlots lists unbooked windows, optionally for one trainer.
func (s *ScheduleService) AvailableSlots(trainerID string) ([]models.TimeSlot, error) {
	if trainerID != "" {
		account, ok := s.store.Account(trainerID)
		if !ok || account.Role != models.RoleTrainer {
			return nil, store.ErrUnknownTrainer
		}
	}
	return s.store.AvailableSlots(trainerID), nil
}

// TrainerSlots lists every window a trainer has published.
func (s *ScheduleService) TrainerSlots(trainerID string) ([]models.TimeSlot, error) {
	account, ok := s.store.Account(trainerID)
	if !ok || account.Role != models.RoleTrainer {
		return nil, store.ErrUnknownTrainer
	}
	return s.store.TrainerSlots(trainerID), nil
}

func (s *ScheduleService) notify(ctx context.Context, table string) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Notify(ctx, table); err != nil {
		s.logger.Warn().Err(err).Str("table", table).Msg("change notify failed")
	}
}

func (s *ScheduleService) publishSlotEvent(eventType string, slot *models.TimeSlot) {
	if s.eventBus == nil {
		return
	}

	payload := events.SlotEventPayload{
		SlotID:    slot.ID,
		TrainerID: slot.TrainerID,
		Day:       slot.Day,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("slot_id", slot.ID).Msg("publish event error")
	}
}
