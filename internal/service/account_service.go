package service

import (
	"context"
	"fmt"

	"gymdesk/internal/domain"
	"gymdesk/internal/events"
	"gymdesk/internal/models"
	"gymdesk/internal/repository"
	"gymdesk/internal/store"
	"gymdesk/internal/sync"

	"github.com/rs/zerolog"
)

// AccountService manages the member and trainer roster.
type AccountService struct {
	store    *store.Store
	db       domain.Persister
	feed     domain.ChangeFeed
	eventBus domain.EventPublisher
	worker   domain.SyncWorker
	logger   *zerolog.Logger
}

func NewAccountService(st *store.Store, db domain.Persister, feed domain.ChangeFeed, eventBus domain.EventPublisher, worker domain.SyncWorker, logger *zerolog.Logger) *AccountService {
	return &AccountService{
		store:    st,
		db:       db,
		feed:     feed,
		eventBus: eventBus,
		worker:   worker,
		logger:   logger,
	}
}

// Register adds an account with a unique email.
func (s *AccountService) Register(ctx context.Context, account models.Account) (*models.Account, error) {
	created, err := s.store.RegisterAccount(account)
	if err != nil {
		return nil, err
	}

	if s.db != nil {
		if err := s.db.SaveAccount(ctx, created); err != nil {
			return created, s.persistenceFailed("register account", created.ID, err)
		}
		s.notify(ctx, repository.TableAccounts)
	}

	s.publishAccountEvent(events.EventAccountRegistered, created)
	s.enqueueMembersRefresh(ctx)
	return created, nil
}

// Remove deletes an account with no active bookings. A trainer's published
// slots go with it.
func (s *AccountService) Remove(ctx context.Context, id string) error {
	account, ok := s.store.Account(id)
	if !ok {
		return store.ErrAccountNotFound
	}

	removedSlots, err := s.store.RemoveAccount(id)
	if err != nil {
		return err
	}

	if s.db != nil {
		for i := range removedSlots {
			if err := s.db.DeleteTimeSlot(ctx, removedSlots[i].ID); err != nil {
				return s.persistenceFailed("remove account slots", id, err)
			}
		}
		if err := s.db.DeleteAccount(ctx, id); err != nil {
			return s.persistenceFailed("remove account", id, err)
		}
		s.notify(ctx, repository.TableAccounts)
		if len(removedSlots) > 0 {
			s.notify(ctx, repository.TableTimeSlots)
		}
	}

	s.publishAccountEvent(events.EventAccountRemoved, account)
	s.enqueueMembersRefresh(ctx)
	return nil
}

func (s *AccountService) Account(id string) (*models.Account, error) {
	account, ok := s.store.Account(id)
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return account, nil
}

func (s *AccountService) AccountByEmail(email string) (*models.Account, error) {
	account, ok := s.store.AccountByEmail(email)
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	return account, nil
}

func (s *AccountService) AccountsByRole(role string) []models.Account {
	return s.store.AccountsByRole(role)
}

func (s *AccountService) persistenceFailed(op, accountID string, cause error) error {
	s.logger.Error().Err(cause).Str("account_id", accountID).Str("op", op).Msg("persistence failed, memory state kept")
	return fmt.Errorf("%w: %s: %v", store.ErrPersistenceFailed, op, cause)
}

func (s *AccountService) notify(ctx context.Context, table string) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Notify(ctx, table); err != nil {
		s.logger.Warn().Err(err).Str("table", table).Msg("change notify failed")
	}
}

func (s *AccountService) publishAccountEvent(eventType string, account *models.Account) {
	if s.eventBus == nil {
		return
	}

	payload := events.AccountEventPayload{
		AccountID: account.ID,
		Role:      account.Role,
		Email:     account.Email,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("account_id", account.ID).Msg("publish event error")
	}
}

// enqueueMembersRefresh schedules a members sheet rebuild. Roster changes are
// rare, so the mirror replaces the whole sheet instead of patching rows.
func (s *AccountService) enqueueMembersRefresh(ctx context.Context) {
	if s.worker == nil {
		return
	}
	if err := s.worker.EnqueueTask(ctx, sync.TaskReplaceMembers, "", nil, ""); err != nil {
		s.logger.Error().Err(err).Msg("members refresh enqueue error")
	}
}
