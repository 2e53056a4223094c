package store

import "errors"

var (
	ErrSlotUnavailable   = errors.New("time slot is not available")
	ErrUnknownStudent    = errors.New("student not found")
	ErrUnknownTrainer    = errors.New("trainer not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrTimeSlotNotFound  = errors.New("time slot not found")
	ErrTimeSlotConflict  = errors.New("time slot conflicts with an existing one")
	ErrSlotInUse         = errors.New("time slot has an active booking")
	ErrEmailInUse        = errors.New("email is already registered")
	ErrHasActiveBookings = errors.New("account has active bookings")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrInvalidTimeRange  = errors.New("invalid time range")
	ErrInvalidDate       = errors.New("invalid booking date")
	ErrPersistenceFailed = errors.New("persistence failed")
)

// ErrorKind classifies store errors for callers that map them onto a
// transport (HTTP status codes, UI messages).
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindConflict
	KindInvalidTransition
	KindPreconditionFailed
	KindPersistenceFailed
	KindInvalidArgument
)

// Kind returns the taxonomy class of err.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUnknownStudent),
		errors.Is(err, ErrUnknownTrainer),
		errors.Is(err, ErrBookingNotFound),
		errors.Is(err, ErrTimeSlotNotFound),
		errors.Is(err, ErrAccountNotFound):
		return KindNotFound
	case errors.Is(err, ErrSlotUnavailable),
		errors.Is(err, ErrTimeSlotConflict),
		errors.Is(err, ErrEmailInUse):
		return KindConflict
	case errors.Is(err, ErrInvalidTransition):
		return KindInvalidTransition
	case errors.Is(err, ErrHasActiveBookings),
		errors.Is(err, ErrSlotInUse):
		return KindPreconditionFailed
	case errors.Is(err, ErrPersistenceFailed):
		return KindPersistenceFailed
	case errors.Is(err, ErrInvalidTimeRange),
		errors.Is(err, ErrInvalidDate):
		return KindInvalidArgument
	default:
		return KindUnknown
	}
}
