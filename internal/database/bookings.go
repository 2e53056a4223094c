package database

import (
	"context"
	"fmt"
	"time"

	"gymdesk/internal/models"
)

// CreateBookingTx inserts a booking and flips the slot's booked flag with a
// compare-and-swap inside one transaction. If another writer took the slot
// first, the swap touches zero rows and the whole write is rejected with
// ErrSlotTaken.
func (db *DB) CreateBookingTx(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE time_slots SET is_booked = 1 WHERE id = ? AND is_booked = 0`,
		booking.TimeSlotID)
	if err != nil {
		return fmt.Errorf("failed to claim time slot in tx: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrSlotTaken
	}

	query := `INSERT INTO bookings (id, student_id, trainer_id, time_slot_id, date, status, payment_status, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		booking.ID,
		booking.StudentID,
		booking.TrainerID,
		booking.TimeSlotID,
		booking.Date,
		booking.Status,
		booking.PaymentStatus,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	return tx.Commit()
}

// SaveBooking upserts a booking row, used for status and payment updates.
func (db *DB) SaveBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (id, student_id, trainer_id, time_slot_id, date, status, payment_status, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  status = excluded.status,
                  payment_status = excluded.payment_status,
                  updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query,
		booking.ID,
		booking.StudentID,
		booking.TrainerID,
		booking.TimeSlotID,
		booking.Date,
		booking.Status,
		booking.PaymentStatus,
		booking.CreatedAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save booking: %w", err)
	}
	return nil
}

func (db *DB) GetBookings(ctx context.Context) ([]models.Booking, error) {
	query := `SELECT id, student_id, trainer_id, time_slot_id, date, status, payment_status, created_at, updated_at
              FROM bookings ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		err := rows.Scan(&b.ID, &b.StudentID, &b.TrainerID, &b.TimeSlotID, &b.Date, &b.Status, &b.PaymentStatus, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// GetBookingsByDateRange returns bookings for the export report, ordered by
// session date.
func (db *DB) GetBookingsByDateRange(ctx context.Context, startDate, endDate time.Time) ([]models.Booking, error) {
	query := `SELECT id, student_id, trainer_id, time_slot_id, date, status, payment_status, created_at, updated_at
              FROM bookings WHERE date >= ? AND date <= ? ORDER BY date ASC, created_at ASC`
	rows, err := db.QueryContext(ctx, query,
		startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		err := rows.Scan(&b.ID, &b.StudentID, &b.TrainerID, &b.TimeSlotID, &b.Date, &b.Status, &b.PaymentStatus, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
