package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"gymdesk/internal/models"
)

// SaveAccount upserts an account row. Role-specific fields flatten into
// nullable columns; expertise is stored as a JSON array.
func (db *DB) SaveAccount(ctx context.Context, account *models.Account) error {
	var membership, expertise, bio sql.NullString
	if sp, ok := account.StudentFields(); ok {
		membership = sql.NullString{String: sp.Membership, Valid: true}
	}
	if tp, ok := account.TrainerFields(); ok {
		raw, err := json.Marshal(tp.Expertise)
		if err != nil {
			return fmt.Errorf("failed to encode expertise: %w", err)
		}
		expertise = sql.NullString{String: string(raw), Valid: true}
		bio = sql.NullString{String: tp.Bio, Valid: true}
	}

	query := `INSERT INTO accounts (id, name, email, role, avatar, membership, expertise, bio, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                  name = excluded.name,
                  email = excluded.email,
                  avatar = excluded.avatar,
                  membership = excluded.membership,
                  expertise = excluded.expertise,
                  bio = excluded.bio,
                  updated_at = excluded.updated_at`

	_, err := db.ExecContext(ctx, query,
		account.ID,
		account.Name,
		account.Email,
		account.Role,
		account.Avatar,
		membership,
		expertise,
		bio,
		account.CreatedAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func (db *DB) DeleteAccount(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

func (db *DB) GetAccounts(ctx context.Context) ([]models.Account, error) {
	query := `SELECT id, name, email, role, avatar, membership, expertise, bio, created_at, updated_at
              FROM accounts ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		var avatar, membership, expertise, bio sql.NullString
		err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.Role, &avatar, &membership, &expertise, &bio, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		a.Avatar = avatar.String

		switch a.Role {
		case models.RoleStudent:
			a.Student = &models.StudentProfile{Membership: membership.String}
		case models.RoleTrainer:
			tp := &models.TrainerProfile{Bio: bio.String}
			if expertise.Valid && expertise.String != "" {
				if err := json.Unmarshal([]byte(expertise.String), &tp.Expertise); err != nil {
					return nil, fmt.Errorf("failed to decode expertise for %s: %w", a.ID, err)
				}
			}
			a.Trainer = tp
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}
