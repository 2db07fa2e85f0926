package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"currency-conversion-service/internal/core/domain"
	"currency-conversion-service/internal/core/ports"
	"currency-conversion-service/pkg/apperror"
	"currency-conversion-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AccountServiceImpl implements ports.AccountService.
type AccountServiceImpl struct {
	accounts ports.AccountRepository
	log      zerolog.Logger
	now      func() time.Time
}

// NewAccountService creates a new AccountServiceImpl.
func NewAccountService(accounts ports.AccountRepository, log zerolog.Logger) *AccountServiceImpl {
	return &AccountServiceImpl{
		accounts: accounts,
		log:      logger.Component(log, "account"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OpenAccount creates a Balance Store record seeded with req.Balances. An
// account is created once; opening it again returns ErrAccountExists.
func (s *AccountServiceImpl) OpenAccount(ctx context.Context, req ports.OpenAccountRequest) (*domain.Account, error) {
	userID := req.UserID
	if userID == uuid.Nil {
		userID = uuid.New()
	}

	account, err := domain.NewAccount(userID, req.Balances, s.now())
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}

	existing, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check account: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrAccountExists()
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, apperror.ErrAccountExists()
		}
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Int("currencies", len(account.Balances)).
		Msg("account opened")

	return account, nil
}

// GetAccount returns the current balances of one user.
func (s *AccountServiceImpl) GetAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound()
	}
	return account, nil
}
