package config

import (
	"os"
	"path/filepath"
	"testing"

	"gymdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "data/gym.db")

	path := writeFile(t, "config.yaml", `
app:
  name: gymdesk
  environment: test
database:
  path: ${TEST_DB_PATH}
api:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "data/gym.db", cfg.Database.Path)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.True(t, cfg.API.Auth.Enabled)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, models.DefaultPaymentSuccessRate, cfg.Gym.PaymentSuccessRate)
	assert.Equal(t, "Members", cfg.Google.MembersSheetName)
	assert.Equal(t, "Bookings", cfg.Google.BookingsSheetName)
	assert.Equal(t, "configs/seed.yaml", cfg.SeedPath)
}

func TestLoadValidation(t *testing.T) {
	missing := writeFile(t, "config.yaml", `
app:
  name: gymdesk
`)
	_, err := Load(missing)
	assert.ErrorContains(t, err, "database path is required")

	badRate := writeFile(t, "config.yaml", `
database:
  path: gym.db
gym:
  payment_success_rate: 1.5
`)
	_, err = Load(badRate)
	assert.ErrorContains(t, err, "payment_success_rate")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadSeed(t *testing.T) {
	path := writeFile(t, "seed.yaml", `
accounts:
  - id: trainer-1
    name: Elena
    email: elena@example.com
    role: trainer
  - id: student-1
    name: Dana
    email: dana@example.com
    role: student
time_slots:
  - id: slot-1
    trainer_id: trainer-1
    day: Monday
    start_time: "09:00"
    end_time: "10:00"
`)

	seed, err := LoadSeed(path)
	require.NoError(t, err)
	assert.Len(t, seed.Accounts, 2)
	assert.Len(t, seed.TimeSlots, 1)
}

func TestValidateSeed(t *testing.T) {
	valid := func() *Seed {
		return &Seed{
			Accounts: []models.Account{
				{ID: "t1", Name: "Elena", Email: "elena@example.com", Role: models.RoleTrainer},
				{ID: "s1", Name: "Dana", Email: "dana@example.com", Role: models.RoleStudent},
			},
			TimeSlots: []models.TimeSlot{
				{ID: "slot1", TrainerID: "t1", Day: "Monday", StartTime: "09:00", EndTime: "10:00"},
			},
		}
	}

	require.NoError(t, ValidateSeed(valid()))

	dupID := valid()
	dupID.Accounts[1].ID = "t1"
	assert.ErrorContains(t, ValidateSeed(dupID), "duplicate account id")

	dupEmail := valid()
	dupEmail.Accounts[1].Email = "ELENA@example.com"
	assert.ErrorContains(t, ValidateSeed(dupEmail), "duplicate account email")

	badRole := valid()
	badRole.Accounts[1].Role = "coach"
	assert.ErrorContains(t, ValidateSeed(badRole), "unknown role")

	orphanSlot := valid()
	orphanSlot.TimeSlots[0].TrainerID = "s1"
	assert.ErrorContains(t, ValidateSeed(orphanSlot), "unknown trainer")

	badDay := valid()
	badDay.TimeSlots[0].Day = "Sunday"
	assert.ErrorContains(t, ValidateSeed(badDay), "unknown day")
}
