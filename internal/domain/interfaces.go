package domain

import (
	"context"

	"gymdesk/internal/models"
	"gymdesk/internal/store"
)

// Persister is the external relational store boundary. Implementations must
// re-validate availability and overlap conflicts transactionally; the
// in-memory checks alone are insufficient once several processes share the
// backend.
type Persister interface {
	SaveAccount(ctx context.Context, account *models.Account) error
	DeleteAccount(ctx context.Context, id string) error
	SaveTimeSlot(ctx context.Context, slot *models.TimeSlot) error
	CreateTimeSlotTx(ctx context.Context, slot *models.TimeSlot) error
	DeleteTimeSlot(ctx context.Context, id string) error
	CreateBookingTx(ctx context.Context, booking *models.Booking) error
	SaveBooking(ctx context.Context, booking *models.Booking) error
	LoadSnapshot(ctx context.Context) (store.Snapshot, error)
}

// ChangeFeed carries change notifications between processes, keyed by table
// name (accounts, time_slots, bookings).
type ChangeFeed interface {
	Notify(ctx context.Context, table string) error
	Subscribe(ctx context.Context, handler func(table string)) error
}

// SyncWorker schedules asynchronous mirror updates.
type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID string, booking *models.Booking, status string) error
	EnqueueSnapshot(ctx context.Context) error
}

// EventPublisher fans domain events out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// PaymentGateway charges a card. A decline is a false result, not an error.
type PaymentGateway interface {
	Charge(ctx context.Context, info models.PaymentInfo) (bool, error)
}

// MirrorWriter pushes rows to the staff-facing mirror.
type MirrorWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID string, status string) error
	ReplaceBookingsSheet(ctx context.Context, bookings []models.Booking) error
	ReplaceMembersSheet(ctx context.Context, accounts []models.Account) error
}
