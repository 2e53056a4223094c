package database

import (
	"context"
	"fmt"

	"gymdesk/internal/models"
)

func (db *DB) SaveTimeSlot(ctx context.Context, slot *models.TimeSlot) error {
	query := `INSERT INTO time_slots (id, trainer_id, day, start_time, end_time, is_booked, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET is_booked = excluded.is_booked`
	_, err := db.ExecContext(ctx, query,
		slot.ID, slot.TrainerID, slot.Day, slot.StartTime, slot.EndTime, slot.IsBooked, slot.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save time slot: %w", err)
	}
	return nil
}

// CreateTimeSlotTx inserts a slot after re-running the overlap check inside
// a transaction. The in-memory check is not enough when another process
// shares the store.
func (db *DB) CreateTimeSlotTx(ctx context.Context, slot *models.TimeSlot) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// start_time/end_time are zero-padded HH:MM, so string comparison is
	// chronological. An exactly identical window is not a conflict.
	var conflicts int
	queryCount := `SELECT COUNT(*) FROM time_slots
                   WHERE trainer_id = ? AND day = ? AND start_time < ? AND ? < end_time
                     AND NOT (start_time = ? AND end_time = ?)`
	err = tx.QueryRowContext(ctx, queryCount,
		slot.TrainerID, slot.Day, slot.EndTime, slot.StartTime, slot.StartTime, slot.EndTime).Scan(&conflicts)
	if err != nil {
		return fmt.Errorf("failed to check overlap in tx: %w", err)
	}
	if conflicts > 0 {
		return ErrOverlap
	}

	queryInsert := `INSERT INTO time_slots (id, trainer_id, day, start_time, end_time, is_booked, created_at)
                    VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, queryInsert,
		slot.ID, slot.TrainerID, slot.Day, slot.StartTime, slot.EndTime, slot.IsBooked, slot.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert time slot in tx: %w", err)
	}

	return tx.Commit()
}

func (db *DB) DeleteTimeSlot(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM time_slots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete time slot: %w", err)
	}
	return nil
}

func (db *DB) GetTimeSlots(ctx context.Context) ([]models.TimeSlot, error) {
	query := `SELECT id, trainer_id, day, start_time, end_time, is_booked, created_at
              FROM time_slots ORDER BY day, start_time`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get time slots: %w", err)
	}
	defer rows.Close()

	var slots []models.TimeSlot
	for rows.Next() {
		var s models.TimeSlot
		if err := rows.Scan(&s.ID, &s.TrainerID, &s.Day, &s.StartTime, &s.EndTime, &s.IsBooked, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan time slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}
