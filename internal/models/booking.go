package models

import "time"

// Booking links one student, one trainer and one time slot on a calendar
// date. Date is "YYYY-MM-DD".
type Booking struct {
	ID            string    `json:"id"`
	StudentID     string    `json:"student_id"`
	TrainerID     string    `json:"trainer_id"`
	TimeSlotID    string    `json:"time_slot_id"`
	Date          string    `json:"date"`
	Status        string    `json:"status"` // pending, confirmed, cancelled, completed
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Active reports whether the booking still holds its time slot.
func (b *Booking) Active() bool {
	return ActiveStatus(b.Status)
}

// PaymentInfo carries simulated card details to the payment gateway.
type PaymentInfo struct {
	CardNumber     string `json:"card_number"`
	CardholderName string `json:"cardholder_name"`
	ExpiryDate     string `json:"expiry_date"`
	CVV            string `json:"cvv"`
}
