package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"currency-conversion-service/internal/core/domain"
	"currency-conversion-service/internal/core/ports"
	"currency-conversion-service/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupAccountService(t *testing.T) (*AccountServiceImpl, *mocks.MockAccountRepository) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockAccountRepository(ctrl)
	return NewAccountService(repo, newTestLogger()), repo
}

func TestAccountService_OpenAccount_Success(t *testing.T) {
	svc, repo := setupAccountService(t)
	ctx := context.Background()
	userID := uuid.New()

	repo.EXPECT().GetByUserID(ctx, userID).Return(nil, nil)
	repo.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, a *domain.Account) error {
		assert.Equal(t, userID, a.UserID)
		assert.Equal(t, int64(0), a.LockVersion)
		return nil
	})

	acc, err := svc.OpenAccount(ctx, ports.OpenAccountRequest{
		UserID:   userID,
		Balances: domain.Balances{domain.CurrencyUSD: dec("100.00"), domain.CurrencyNGN: dec("0")},
	})
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(acc.Balance(domain.CurrencyUSD)))
	assert.Len(t, acc.Balances, 2)
}

func TestAccountService_OpenAccount_GeneratesUserID(t *testing.T) {
	svc, repo := setupAccountService(t)
	ctx := context.Background()

	repo.EXPECT().GetByUserID(ctx, gomock.Any()).Return(nil, nil)
	repo.EXPECT().Create(ctx, gomock.Any()).Return(nil)

	acc, err := svc.OpenAccount(ctx, ports.OpenAccountRequest{})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, acc.UserID)
}

func TestAccountService_OpenAccount_Exists(t *testing.T) {
	svc, repo := setupAccountService(t)
	ctx := context.Background()
	userID := uuid.New()

	repo.EXPECT().GetByUserID(ctx, userID).Return(&domain.Account{UserID: userID}, nil)

	_, err := svc.OpenAccount(ctx, ports.OpenAccountRequest{UserID: userID})
	assertAppError(t, err, "ACC_002")
}

func TestAccountService_OpenAccount_CreateRace(t *testing.T) {
	svc, repo := setupAccountService(t)
	ctx := context.Background()
	userID := uuid.New()

	repo.EXPECT().GetByUserID(ctx, userID).Return(nil, nil)
	repo.EXPECT().Create(ctx, gomock.Any()).Return(fmt.Errorf("insert account: %w", domain.ErrConflict))

	_, err := svc.OpenAccount(ctx, ports.OpenAccountRequest{UserID: userID})
	assertAppError(t, err, "ACC_002")
}

func TestAccountService_OpenAccount_InvalidSeed(t *testing.T) {
	svc, _ := setupAccountService(t)

	tests := []struct {
		name     string
		balances domain.Balances
	}{
		{"unsupported currency", domain.Balances{"XYZ": dec("1")}},
		{"negative", domain.Balances{domain.CurrencyUSD: dec("-1")}},
		{"three decimals", domain.Balances{domain.CurrencyUSD: dec("0.001")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.OpenAccount(context.Background(), ports.OpenAccountRequest{Balances: tt.balances})
			assertAppError(t, err, "VAL_001")
		})
	}
}

func TestAccountService_GetAccount(t *testing.T) {
	svc, repo := setupAccountService(t)
	ctx := context.Background()
	userID := uuid.New()

	repo.EXPECT().GetByUserID(ctx, userID).Return(&domain.Account{UserID: userID, LockVersion: 4}, nil)
	acc, err := svc.GetAccount(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), acc.LockVersion)

	missing := uuid.New()
	repo.EXPECT().GetByUserID(ctx, missing).Return(nil, nil)
	_, err = svc.GetAccount(ctx, missing)
	assertAppError(t, err, "ACC_001")

	broken := uuid.New()
	repo.EXPECT().GetByUserID(ctx, broken).Return(nil, errors.New("db down"))
	_, err = svc.GetAccount(ctx, broken)
	assertAppError(t, err, "SYS_001")
}
