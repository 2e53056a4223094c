package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gymdesk/internal/models"

	"github.com/google/uuid"
)

// Store holds the canonical in-memory collections. Every mutating operation
// takes the write lock for its whole duration, validates fully before
// touching anything and keeps the denormalized student/trainer references in
// step with the canonical maps. A failed operation leaves no partial state.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
	slots    map[string]*models.TimeSlot
	bookings map[string]*models.Booking
}

func New() *Store {
	return &Store{
		accounts: make(map[string]*models.Account),
		slots:    make(map[string]*models.TimeSlot),
		bookings: make(map[string]*models.Booking),
	}
}

// Snapshot is a consistent copy of all four collections.
type Snapshot struct {
	Accounts  []models.Account
	TimeSlots []models.TimeSlot
	Bookings  []models.Booking
}

// CreateBooking reserves a free slot for a student on the given date.
// The new booking starts as pending/payment-pending and the slot is marked
// booked.
func (s *Store) CreateBooking(studentID, trainerID, slotID, date string) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[slotID]
	if !ok || slot.IsBooked {
		return nil, ErrSlotUnavailable
	}

	student, ok := s.accounts[studentID]
	if !ok || student.Role != models.RoleStudent {
		return nil, ErrUnknownStudent
	}

	trainer, ok := s.accounts[trainerID]
	if !ok || trainer.Role != models.RoleTrainer {
		return nil, ErrUnknownTrainer
	}

	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	now := time.Now()
	booking := &models.Booking{
		ID:            uuid.NewString(),
		StudentID:     studentID,
		TrainerID:     trainerID,
		TimeSlotID:    slotID,
		Date:          date,
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.bookings[booking.ID] = booking
	slot.IsBooked = true
	student.Student.BookingIDs = append(student.Student.BookingIDs, booking.ID)
	trainer.Trainer.BookingIDs = append(trainer.Trainer.BookingIDs, booking.ID)

	return cloneBooking(booking), nil
}

// CancelBooking moves an active booking to cancelled and frees its slot.
// Cancelling a terminal booking is an invalid transition, not a no-op.
func (s *Store) CancelBooking(id string) (*models.Booking, *models.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[id]
	if !ok {
		return nil, nil, ErrBookingNotFound
	}
	if models.TerminalStatus(booking.Status) {
		return nil, nil, fmt.Errorf("%w: cannot cancel %s booking", ErrInvalidTransition, booking.Status)
	}

	booking.Status = models.StatusCancelled
	booking.UpdatedAt = time.Now()

	var freed *models.TimeSlot
	if slot, ok := s.slots[booking.TimeSlotID]; ok {
		slot.IsBooked = false
		freed = cloneSlot(slot)
	}

	return cloneBooking(booking), freed, nil
}

// CompleteBooking moves a confirmed booking to completed. Pending bookings
// cannot be completed: confirmation implies payment has succeeded, so the
// paid check is carried by the status check. The slot is released because a
// completed booking no longer holds it.
func (s *Store) CompleteBooking(id string) (*models.Booking, *models.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[id]
	if !ok {
		return nil, nil, ErrBookingNotFound
	}
	if booking.Status != models.StatusConfirmed {
		return nil, nil, fmt.Errorf("%w: cannot complete %s booking", ErrInvalidTransition, booking.Status)
	}

	booking.Status = models.StatusCompleted
	booking.UpdatedAt = time.Now()

	var freed *models.TimeSlot
	if slot, ok := s.slots[booking.TimeSlotID]; ok {
		slot.IsBooked = false
		freed = cloneSlot(slot)
	}

	return cloneBooking(booking), freed, nil
}

// SetPaymentResult records a charge outcome. Success confirms the booking;
// a decline marks payment failed and leaves the booking pending. Only a
// pending, unpaid booking can take a payment result.
func (s *Store) SetPaymentResult(id string, success bool) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	if booking.Status != models.StatusPending || booking.PaymentStatus == models.PaymentPaid {
		return nil, fmt.Errorf("%w: cannot pay %s/%s booking", ErrInvalidTransition, booking.Status, booking.PaymentStatus)
	}

	if success {
		booking.PaymentStatus = models.PaymentPaid
		booking.Status = models.StatusConfirmed
	} else {
		booking.PaymentStatus = models.PaymentFailed
	}
	booking.UpdatedAt = time.Now()

	return cloneBooking(booking), nil
}

// AddTimeSlot publishes a new availability window for a trainer after
// checking it against every existing window for the same trainer and day.
func (s *Store) AddTimeSlot(trainerID, day, startTime, endTime string) (*models.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	trainer, ok := s.accounts[trainerID]
	if !ok || trainer.Role != models.RoleTrainer {
		return nil, ErrUnknownTrainer
	}

	if !models.ValidWeekday(day) {
		return nil, fmt.Errorf("%w: unknown day %q", ErrInvalidTimeRange, day)
	}
	start, err := models.ParseClock(startTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
	}
	end, err := models.ParseClock(endTime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
	}
	if start >= end {
		return nil, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidTimeRange, startTime, endTime)
	}

	// Canonical zero-padded form so "8:00" and "08:00" compare equal
	// everywhere, including lexicographic comparisons at the SQL boundary.
	startTime = fmt.Sprintf("%02d:%02d", start/60, start%60)
	endTime = fmt.Sprintf("%02d:%02d", end/60, end%60)

	for _, existing := range s.slots {
		if existing.TrainerID != trainerID || existing.Day != day {
			continue
		}
		es, _ := models.ParseClock(existing.StartTime)
		ee, _ := models.ParseClock(existing.EndTime)
		if models.Overlaps(start, end, es, ee) {
			return nil, fmt.Errorf("%w: %s %s-%s", ErrTimeSlotConflict, day, existing.StartTime, existing.EndTime)
		}
	}

	slot := &models.TimeSlot{
		ID:        uuid.NewString(),
		TrainerID: trainerID,
		Day:       day,
		StartTime: startTime,
		EndTime:   endTime,
		CreatedAt: time.Now(),
	}
	s.slots[slot.ID] = slot
	trainer.Trainer.SlotIDs = append(trainer.Trainer.SlotIDs, slot.ID)

	return cloneSlot(slot), nil
}

// RemoveTimeSlot deletes an availability window. A slot held by an active
// booking cannot be removed; a stale booked flag with no active booking does
// not block removal.
func (s *Store) RemoveTimeSlot(id string) (*models.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[id]
	if !ok {
		return nil, ErrTimeSlotNotFound
	}
	if slot.IsBooked && s.activeBookingBySlot(id) != nil {
		return nil, ErrSlotInUse
	}

	delete(s.slots, id)
	if trainer, ok := s.accounts[slot.TrainerID]; ok && trainer.Trainer != nil {
		trainer.Trainer.SlotIDs = removeID(trainer.Trainer.SlotIDs, id)
	}

	return cloneSlot(slot), nil
}

// RegisterAccount adds a new account. Email uniqueness is case-insensitive
// across all roles. Profiles are initialized empty for the account's role;
// an ID is assigned when absent.
func (s *Store) RegisterAccount(account models.Account) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch account.Role {
	case models.RoleStudent, models.RoleTrainer, models.RoleAdmin:
	default:
		return nil, fmt.Errorf("unknown role %q", account.Role)
	}

	email := strings.ToLower(strings.TrimSpace(account.Email))
	for _, existing := range s.accounts {
		if strings.ToLower(existing.Email) == email {
			return nil, ErrEmailInUse
		}
	}

	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now

	switch account.Role {
	case models.RoleStudent:
		if account.Student == nil {
			account.Student = &models.StudentProfile{}
		}
		account.Student.BookingIDs = nil
		account.Trainer = nil
	case models.RoleTrainer:
		if account.Trainer == nil {
			account.Trainer = &models.TrainerProfile{}
		}
		account.Trainer.SlotIDs = nil
		account.Trainer.BookingIDs = nil
		account.Student = nil
	default:
		account.Student = nil
		account.Trainer = nil
	}

	stored := account
	s.accounts[account.ID] = &stored

	return cloneAccount(&stored), nil
}

// RemoveAccount deletes an account without active bookings. Removing a
// trainer also deletes its published slots; slot-level activity is
// re-verified separately because slot flags and booking statuses live in
// distinct collections.
func (s *Store) RemoveAccount(id string) ([]models.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}

	for _, b := range s.bookings {
		if (b.StudentID == id || b.TrainerID == id) && b.Active() {
			return nil, ErrHasActiveBookings
		}
	}

	var removed []models.TimeSlot
	if account.Role == models.RoleTrainer {
		for slotID, slot := range s.slots {
			if slot.TrainerID != id {
				continue
			}
			if s.activeBookingBySlot(slotID) != nil {
				return nil, ErrHasActiveBookings
			}
			removed = append(removed, *slot)
		}
		for _, slot := range removed {
			delete(s.slots, slot.ID)
		}
	}

	delete(s.accounts, id)
	return removed, nil
}

// AvailableSlots returns every unbooked slot, optionally filtered to one
// trainer, ordered by weekday then start time. Always computed from live
// state.
func (s *Store) AvailableSlots(trainerID string) []models.TimeSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.TimeSlot
	for _, slot := range s.slots {
		if slot.IsBooked {
			continue
		}
		if trainerID != "" && slot.TrainerID != trainerID {
			continue
		}
		out = append(out, *slot)
	}
	sortSlots(out)
	return out
}

// TrainerSlots returns all of a trainer's slots, booked or not.
func (s *Store) TrainerSlots(trainerID string) []models.TimeSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.TimeSlot
	for _, slot := range s.slots {
		if slot.TrainerID == trainerID {
			out = append(out, *slot)
		}
	}
	sortSlots(out)
	return out
}

// BookingsByStudent returns the student's bookings in creation order.
func (s *Store) BookingsByStudent(studentID string) []models.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[studentID]
	if !ok || account.Student == nil {
		return nil
	}
	return s.bookingsByIDs(account.Student.BookingIDs)
}

// BookingsByTrainer returns the trainer's bookings in creation order.
func (s *Store) BookingsByTrainer(trainerID string) []models.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[trainerID]
	if !ok || account.Trainer == nil {
		return nil
	}
	return s.bookingsByIDs(account.Trainer.BookingIDs)
}

// BookingBySlot returns the active booking holding a slot, if any.
func (s *Store) BookingBySlot(slotID string) (*models.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b := s.activeBookingBySlot(slotID); b != nil {
		return cloneBooking(b), true
	}
	return nil, false
}

// Booking returns a booking by ID.
func (s *Store) Booking(id string) (*models.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, false
	}
	return cloneBooking(b), true
}

// TimeSlot returns a slot by ID.
func (s *Store) TimeSlot(id string) (*models.TimeSlot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[id]
	if !ok {
		return nil, false
	}
	return cloneSlot(slot), true
}

// Account returns an account by ID.
func (s *Store) Account(id string) (*models.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	return cloneAccount(account), true
}

// AccountByEmail looks an account up case-insensitively.
func (s *Store) AccountByEmail(email string) (*models.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	needle := strings.ToLower(strings.TrimSpace(email))
	for _, account := range s.accounts {
		if strings.ToLower(account.Email) == needle {
			return cloneAccount(account), true
		}
	}
	return nil, false
}

// AccountsByRole returns every account with the given role, sorted by name.
func (s *Store) AccountsByRole(role string) []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Account
	for _, account := range s.accounts {
		if account.Role == role {
			out = append(out, *cloneAccount(account))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Snapshot copies all collections for persistence and mirroring.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{}
	for _, a := range s.accounts {
		snap.Accounts = append(snap.Accounts, *cloneAccount(a))
	}
	for _, slot := range s.slots {
		snap.TimeSlots = append(snap.TimeSlots, *slot)
	}
	for _, b := range s.bookings {
		snap.Bookings = append(snap.Bookings, *b)
	}
	sort.Slice(snap.Accounts, func(i, j int) bool { return snap.Accounts[i].CreatedAt.Before(snap.Accounts[j].CreatedAt) })
	sortSlots(snap.TimeSlots)
	sort.Slice(snap.Bookings, func(i, j int) bool { return snap.Bookings[i].CreatedAt.Before(snap.Bookings[j].CreatedAt) })
	return snap
}

// Load replaces all collections and rebuilds the denormalized references
// from the canonical bookings and slots, discarding whatever the incoming
// accounts carried. Used for hydration and change-feed refreshes.
func (s *Store) Load(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = make(map[string]*models.Account, len(snap.Accounts))
	s.slots = make(map[string]*models.TimeSlot, len(snap.TimeSlots))
	s.bookings = make(map[string]*models.Booking, len(snap.Bookings))

	for i := range snap.Accounts {
		account := *cloneAccount(&snap.Accounts[i])
		switch account.Role {
		case models.RoleStudent:
			if account.Student == nil {
				account.Student = &models.StudentProfile{}
			}
			account.Student.BookingIDs = nil
		case models.RoleTrainer:
			if account.Trainer == nil {
				account.Trainer = &models.TrainerProfile{}
			}
			account.Trainer.SlotIDs = nil
			account.Trainer.BookingIDs = nil
		}
		s.accounts[account.ID] = &account
	}

	sortSlots(snap.TimeSlots)
	for i := range snap.TimeSlots {
		slot := snap.TimeSlots[i]
		s.slots[slot.ID] = &slot
		if trainer, ok := s.accounts[slot.TrainerID]; ok && trainer.Trainer != nil {
			trainer.Trainer.SlotIDs = append(trainer.Trainer.SlotIDs, slot.ID)
		}
	}

	sort.Slice(snap.Bookings, func(i, j int) bool { return snap.Bookings[i].CreatedAt.Before(snap.Bookings[j].CreatedAt) })
	for i := range snap.Bookings {
		booking := snap.Bookings[i]
		s.bookings[booking.ID] = &booking
		if student, ok := s.accounts[booking.StudentID]; ok && student.Student != nil {
			student.Student.BookingIDs = append(student.Student.BookingIDs, booking.ID)
		}
		if trainer, ok := s.accounts[booking.TrainerID]; ok && trainer.Trainer != nil {
			trainer.Trainer.BookingIDs = append(trainer.Trainer.BookingIDs, booking.ID)
		}
	}
}

// Empty reports whether the store holds no accounts.
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts) == 0
}

// callers must hold at least the read lock.
func (s *Store) activeBookingBySlot(slotID string) *models.Booking {
	for _, b := range s.bookings {
		if b.TimeSlotID == slotID && b.Active() {
			return b
		}
	}
	return nil
}

func (s *Store) bookingsByIDs(ids []string) []models.Booking {
	out := make([]models.Booking, 0, len(ids))
	for _, id := range ids {
		if b, ok := s.bookings[id]; ok {
			out = append(out, *b)
		}
	}
	return out
}

var dayOrder = func() map[string]int {
	m := make(map[string]int, len(models.Weekdays))
	for i, d := range models.Weekdays {
		m[d] = i
	}
	return m
}()

func sortSlots(slots []models.TimeSlot) {
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Day != slots[j].Day {
			return dayOrder[slots[i].Day] < dayOrder[slots[j].Day]
		}
		if slots[i].StartTime != slots[j].StartTime {
			return slots[i].StartTime < slots[j].StartTime
		}
		return slots[i].ID < slots[j].ID
	})
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func cloneBooking(b *models.Booking) *models.Booking {
	c := *b
	return &c
}

func cloneSlot(slot *models.TimeSlot) *models.TimeSlot {
	c := *slot
	return &c
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	if a.Student != nil {
		sp := *a.Student
		sp.BookingIDs = append([]string(nil), a.Student.BookingIDs...)
		c.Student = &sp
	}
	if a.Trainer != nil {
		tp := *a.Trainer
		tp.Expertise = append([]string(nil), a.Trainer.Expertise...)
		tp.SlotIDs = append([]string(nil), a.Trainer.SlotIDs...)
		tp.BookingIDs = append([]string(nil), a.Trainer.BookingIDs...)
		c.Trainer = &tp
	}
	return &c
}
