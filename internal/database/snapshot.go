package database

import (
	"context"

	"gymdesk/internal/store"
)

// LoadSnapshot reads all three entity tables for store hydration and
// change-feed refreshes.
func (db *DB) LoadSnapshot(ctx context.Context) (store.Snapshot, error) {
	var snap store.Snapshot

	accounts, err := db.GetAccounts(ctx)
	if err != nil {
		return snap, err
	}
	slots, err := db.GetTimeSlots(ctx)
	if err != nil {
		return snap, err
	}
	bookings, err := db.GetBookings(ctx)
	if err != nil {
		return snap, err
	}

	snap.Accounts = accounts
	snap.TimeSlots = slots
	snap.Bookings = bookings
	return snap, nil
}

// SaveSnapshot writes every entity of a snapshot, used to seed an empty
// store on first run.
func (db *DB) SaveSnapshot(ctx context.Context, snap store.Snapshot) error {
	for i := range snap.Accounts {
		if err := db.SaveAccount(ctx, &snap.Accounts[i]); err != nil {
			return err
		}
	}
	for i := range snap.TimeSlots {
		if err := db.SaveTimeSlot(ctx, &snap.TimeSlots[i]); err != nil {
			return err
		}
	}
	for i := range snap.Bookings {
		if err := db.SaveBooking(ctx, &snap.Bookings[i]); err != nil {
			return err
		}
	}
	return nil
}
