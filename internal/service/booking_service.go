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
	"gymdesk/internal/sync"

	"github.com/rs/zerolog"
)

// BookingService drives the booking lifecycle. Writes go to the in-memory
// store first and are persisted synchronously afterwards; when the database
// rejects a write that the store accepted, the memory change stays applied
// and the caller gets ErrPersistenceFailed. Mirror updates and domain events
// are asynchronous and best-effort.
type BookingService struct {
	store    *store.Store
	db       domain.Persister
	feed     domain.ChangeFeed
	eventBus domain.EventPublisher
	worker   domain.SyncWorker
	gateway  domain.PaymentGateway
	logger   *zerolog.Logger
}

func NewBookingService(st *store.Store, db domain.Persister, feed domain.ChangeFeed, eventBus domain.EventPublisher, worker domain.SyncWorker, gateway domain.PaymentGateway, logger *zerolog.Logger) *BookingService {
	return &BookingService{
		store:    st,
		db:       db,
		feed:     feed,
		eventBus: eventBus,
		worker:   worker,
		gateway:  gateway,
		logger:   logger,
	}
}

// CreateBooking reserves a slot for a student. The database re-checks the
// slot flag transactionally, so two processes racing for the same slot
// cannot both win even though each passed its own in-memory check.
func (s *BookingService) CreateBooking(ctx context.Context, studentID, trainerID, slotID, date string) (*models.Booking, error) {
	booking, err := s.store.CreateBooking(studentID, trainerID, slotID, date)
	if err != nil {
		metrics.IncBookingOp("create", "error")
		return nil, err
	}

	if s.db != nil {
		if err := s.db.CreateBookingTx(ctx, booking); err != nil {
			if errors.Is(err, database.ErrSlotTaken) {
				// Another process won the slot between our check and the
				// transactional guard. Roll the memory reservation back.
				if _, _, cancelErr := s.store.CancelBooking(booking.ID); cancelErr != nil {
					s.logger.Error().Err(cancelErr).Str("booking_id", booking.ID).Msg("rollback after slot race failed")
				}
				metrics.IncBookingOp("create", "error")
				return nil, store.ErrSlotUnavailable
			}
			return booking, s.persistenceFailed("create booking", booking.ID, err)
		}
		s.notify(ctx, repository.TableBookings, repository.TableTimeSlots)
	}

	metrics.IncBookingOp("create", "ok")
	s.publishEvent(events.EventBookingCreated, booking)
	s.enqueueSync(ctx, booking, sync.TaskUpsert)
	return booking, nil
}

// CancelBooking moves an active booking to cancelled and frees the slot.
func (s *BookingService) CancelBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, freed, err := s.store.CancelBooking(id)
	if err != nil {
		metrics.IncBookingOp("cancel", "error")
		return nil, err
	}

	if err := s.persistBookingAndSlot(ctx, booking, freed); err != nil {
		return booking, s.persistenceFailed("cancel booking", booking.ID, err)
	}

	metrics.IncBookingOp("cancel", "ok")
	s.publishEvent(events.EventBookingCancelled, booking)
	s.enqueueSync(ctx, booking, sync.TaskUpdateStatus)
	return booking, nil
}

// CompleteBooking marks a confirmed session as held and releases the slot.
func (s *BookingService) CompleteBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, freed, err := s.store.CompleteBooking(id)
	if err != nil {
		metrics.IncBookingOp("complete", "error")
		return nil, err
	}

	if err := s.persistBookingAndSlot(ctx, booking, freed); err != nil {
		return booking, s.persistenceFailed("complete booking", booking.ID, err)
	}

	metrics.IncBookingOp("complete", "ok")
	s.publishEvent(events.EventBookingCompleted, booking)
	s.enqueueSync(ctx, booking, sync.TaskUpdateStatus)
	return booking, nil
}

// ProcessPayment charges the simulated gateway for a pending booking. A
// successful charge confirms the booking; a decline records the failure and
// leaves the booking pending so payment can be retried.
func (s *BookingService) ProcessPayment(ctx context.Context, id string, info models.PaymentInfo) (*models.Booking, error) {
	// Reject terminal and already-paid bookings before touching the gateway.
	current, ok := s.store.Booking(id)
	if !ok {
		return nil, store.ErrBookingNotFound
	}
	if current.Status != models.StatusPending || current.PaymentStatus == models.PaymentPaid {
		return nil, fmt.Errorf("%w: cannot pay %s/%s booking", store.ErrInvalidTransition, current.Status, current.PaymentStatus)
	}

	approved, err := s.gateway.Charge(ctx, info)
	if err != nil {
		metrics.IncPayment("error")
		return nil, fmt.Errorf("payment gateway: %w", err)
	}

	booking, err := s.store.SetPaymentResult(id, approved)
	if err != nil {
		return nil, err
	}

	if approved {
		metrics.IncPayment("succeeded")
		s.publishEvent(events.EventPaymentSucceeded, booking)
	} else {
		metrics.IncPayment("declined")
		s.publishEvent(events.EventPaymentFailed, booking)
	}

	if s.db != nil {
		if err := s.db.SaveBooking(ctx, booking); err != nil {
			return booking, s.persistenceFailed("save payment result", booking.ID, err)
		}
		s.notify(ctx, repository.TableBookings)
	}

	s.enqueueSync(ctx, booking, sync.TaskUpdateStatus)
	return booking, nil
}

func (s *BookingService) Booking(id string) (*models.Booking, error) {
	booking, ok := s.store.Booking(id)
	if !ok {
		return nil, store.ErrBookingNotFound
	}
	return booking, nil
}

// BookingBySlot returns the active booking holding a slot.
func (s *BookingService) BookingBySlot(slotID string) (*models.Booking, error) {
	if _, ok := s.store.TimeSlot(slotID); !ok {
		return nil, store.ErrTimeSlotNotFound
	}
	booking, ok := s.store.BookingBySlot(slotID)
	if !ok {
		return nil, store.ErrBookingNotFound
	}
	return booking, nil
}

func (s *BookingService) BookingsByStudent(studentID string) ([]models.Booking, error) {
	if _, ok := s.store.Account(studentID); !ok {
		return nil, store.ErrAccountNotFound
	}
	return s.store.BookingsByStudent(studentID), nil
}

func (s *BookingService) BookingsByTrainer(trainerID string) ([]models.Booking, error) {
	if _, ok := s.store.Account(trainerID); !ok {
		return nil, store.ErrAccountNotFound
	}
	return s.store.BookingsByTrainer(trainerID), nil
}

func (s *BookingService) persistBookingAndSlot(ctx context.Context, booking *models.Booking, slot *models.TimeSlot) error {
	if s.db == nil {
		return nil
	}
	if err := s.db.SaveBooking(ctx, booking); err != nil {
		return err
	}
	if slot != nil {
		if err := s.db.SaveTimeSlot(ctx, slot); err != nil {
			return err
		}
	}
	s.notify(ctx, repository.TableBookings, repository.TableTimeSlots)
	return nil
}

func (s *BookingService) persistenceFailed(op, bookingID string, cause error) error {
	metrics.IncPersistenceFailure()
	s.logger.Error().Err(cause).Str("booking_id", bookingID).Str("op", op).Msg("persistence failed, memory state kept")
	return fmt.Errorf("%w: %s: %v", store.ErrPersistenceFailed, op, cause)
}

func (s *BookingService) notify(ctx context.Context, tables ...string) {
	if s.feed == nil {
		return
	}
	for _, table := range tables {
		if err := s.feed.Notify(ctx, table); err != nil {
			s.logger.Warn().Err(err).Str("table", table).Msg("change notify failed")
		}
	}
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		StudentID:     booking.StudentID,
		TrainerID:     booking.TrainerID,
		TimeSlotID:    booking.TimeSlotID,
		Date:          booking.Date,
		Status:        booking.Status,
		PaymentStatus: booking.PaymentStatus,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking *models.Booking, taskType string) {
	if s.worker == nil {
		return
	}

	var status string
	if taskType == sync.TaskUpdateStatus {
		status = booking.Status
	}

	if err := s.worker.EnqueueTask(ctx, taskType, booking.ID, booking, status); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Str("task", taskType).Msg("mirror enqueue error")
	}
}
