package models

import "time"

// Account is an identity record. Role decides which profile pointer is set:
// exactly one of Student/Trainer is non-nil for those roles, both are nil for
// admins. Role is fixed at creation.
type Account struct {
	ID        string          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	Email     string          `json:"email" yaml:"email"`
	Role      string          `json:"role" yaml:"role"`
	Avatar    string          `json:"avatar,omitempty" yaml:"avatar"`
	Student   *StudentProfile `json:"student,omitempty" yaml:"student"`
	Trainer   *TrainerProfile `json:"trainer,omitempty" yaml:"trainer"`
	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" yaml:"updated_at"`
}

// StudentProfile holds student-only fields. BookingIDs keeps creation order.
type StudentProfile struct {
	Membership string   `json:"membership" yaml:"membership"`
	BookingIDs []string `json:"booking_ids" yaml:"booking_ids"`
}

// TrainerProfile holds trainer-only fields. SlotIDs are the published
// availability windows, BookingIDs the sessions booked against them.
type TrainerProfile struct {
	Expertise  []string `json:"expertise" yaml:"expertise"`
	Bio        string   `json:"bio" yaml:"bio"`
	SlotIDs    []string `json:"slot_ids" yaml:"slot_ids"`
	BookingIDs []string `json:"booking_ids" yaml:"booking_ids"`
}

// StudentFields returns the student profile if the account carries the
// student role.
func (a *Account) StudentFields() (*StudentProfile, bool) {
	if a.Role != RoleStudent || a.Student == nil {
		return nil, false
	}
	return a.Student, true
}

// TrainerFields returns the trainer profile if the account carries the
// trainer role.
func (a *Account) TrainerFields() (*TrainerProfile, bool) {
	if a.Role != RoleTrainer || a.Trainer == nil {
		return nil, false
	}
	return a.Trainer, true
}

// BookingIDs returns the denormalized booking list for either role.
func (a *Account) BookingIDs() []string {
	switch a.Role {
	case RoleStudent:
		if a.Student != nil {
			return a.Student.BookingIDs
		}
	case RoleTrainer:
		if a.Trainer != nil {
			return a.Trainer.BookingIDs
		}
	}
	return nil
}
