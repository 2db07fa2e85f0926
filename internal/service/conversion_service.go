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

// ConversionServiceImpl implements ports.ConversionService.
//
// A conversion runs inside one database transaction that holds the user's
// account row lock from the balance check until commit, so the venue is
// called at most once per lock holder and concurrent conversions for the
// same user are serialised.
type ConversionServiceImpl struct {
	accounts     ports.AccountRepository
	outbox       ports.OutboxRepository
	venue        ports.Venue
	transactor   ports.DBTransactor
	venueTimeout time.Duration
	log          zerolog.Logger
	now          func() time.Time
}

// NewConversionService creates a new ConversionServiceImpl. venueTimeout
// bounds each venue call separately.
func NewConversionService(
	accounts ports.AccountRepository,
	outbox ports.OutboxRepository,
	venue ports.Venue,
	transactor ports.DBTransactor,
	venueTimeout time.Duration,
	log zerolog.Logger,
) *ConversionServiceImpl {
	return &ConversionServiceImpl{
		accounts:     accounts,
		outbox:       outbox,
		venue:        venue,
		transactor:   transactor,
		venueTimeout: venueTimeout,
		log:          logger.Component(log, "conversion"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func validateConversion(req ports.ConversionRequest) error {
	if !req.From.IsSupported() {
		return apperror.ErrUnsupportedCurrency(string(req.From))
	}
	if !req.To.IsSupported() {
		return apperror.ErrUnsupportedCurrency(string(req.To))
	}
	if req.From == req.To {
		return apperror.Validation("source and target currency must differ")
	}
	if !req.Amount.IsPositive() {
		return apperror.Validation("amount must be positive")
	}
	if !domain.HasMoneyScale(req.Amount) {
		return apperror.Validation("amount must have at most 2 decimal places")
	}
	return nil
}

// Convert exchanges req.Amount of req.From for req.To at a venue-quoted rate.
func (s *ConversionServiceImpl) Convert(ctx context.Context, req ports.ConversionRequest) (*ports.ConversionResult, error) {
	if err := validateConversion(req); err != nil {
		return nil, err
	}

	log := s.log.With().
		Str("user_id", req.UserID.String()).
		Str("from", string(req.From)).
		Str("to", string(req.To)).
		Str("amount", req.Amount.String()).
		Logger()

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	// Lock & get account
	account, err := s.accounts.GetByUserIDForUpdate(ctx, dbTx, req.UserID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, apperror.ErrLockTimeout(err)
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrAccountNotFound()
	}

	// Business rule: sufficient funds, checked before any venue call
	if !account.HasFunds(req.From, req.Amount) {
		log.Info().Str("balance", account.Balance(req.From).String()).Msg("conversion declined: insufficient funds")
		return nil, apperror.ErrInsufficientFunds()
	}

	quote, err := s.getQuote(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("conversion declined: quote unavailable")
		return nil, err
	}
	log = log.With().Str("quote_id", quote.QuoteID).Logger()

	converted := domain.ConvertedAmount(req.Amount, quote.Rate, quote.Fee)
	if !converted.IsPositive() {
		return nil, apperror.Validation("amount is too small to cover the conversion fee")
	}

	trade, err := s.executeTrade(ctx, quote.QuoteID, log)
	if err != nil {
		return nil, err
	}
	log = log.With().Str("venue_transaction_id", trade.TransactionID).Logger()

	// From here on the venue has settled; any local failure needs reconciliation.
	if err := account.Debit(req.From, req.Amount); err != nil {
		log.Error().Err(err).Msg("venue trade settled but local debit failed")
		return nil, apperror.InternalError(fmt.Errorf("debit %s: %w", req.From, err))
	}
	if err := account.Credit(req.To, converted); err != nil {
		log.Error().Err(err).Msg("venue trade settled but local credit failed")
		return nil, apperror.InternalError(fmt.Errorf("credit %s: %w", req.To, err))
	}

	if err := s.accounts.UpdateBalances(ctx, dbTx, account); err != nil {
		log.Error().Err(err).Msg("venue trade settled but balance update failed")
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update balances: %w", err))
	}

	now := s.now()
	conv := domain.Conversion{
		ID:              uuid.New(),
		UserID:          req.UserID,
		From:            req.From,
		To:              req.To,
		Amount:          req.Amount,
		ConvertedAmount: converted,
		Rate:            quote.Rate,
		Fee:             quote.Fee,
		QuoteID:         quote.QuoteID,
		TransactionID:   trade.TransactionID,
		CompletedAt:     now,
	}

	event, err := domain.NewOutboxEvent(domain.AggregateAccount, req.UserID.String(),
		domain.EventConversionCompleted, conv, now)
	if err != nil {
		log.Error().Err(err).Msg("venue trade settled but event encoding failed")
		return nil, apperror.ErrSerializationFailure(err)
	}
	if err := s.outbox.Create(ctx, dbTx, event); err != nil {
		log.Error().Err(err).Msg("venue trade settled but outbox insert failed")
		return nil, apperror.ErrDatabaseError(fmt.Errorf("insert outbox event: %w", err))
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		log.Error().Err(err).Msg("venue trade settled but commit failed")
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	log.Info().
		Str("conversion_id", conv.ID.String()).
		Str("converted_amount", converted.StringFixed(domain.MoneyScale)).
		Str("rate", quote.Rate.String()).
		Str("fee", quote.Fee.String()).
		Int64("outbox_id", event.ID).
		Msg("conversion completed")

	return &ports.ConversionResult{
		ConversionID:    conv.ID,
		UserID:          req.UserID,
		From:            req.From,
		To:              req.To,
		Amount:          req.Amount,
		ConvertedAmount: converted,
		Rate:            quote.Rate,
		Fee:             quote.Fee,
		QuoteID:         quote.QuoteID,
		TransactionID:   trade.TransactionID,
		Balances:        account.Balances.Clone(),
	}, nil
}

func (s *ConversionServiceImpl) getQuote(ctx context.Context, req ports.ConversionRequest) (*domain.Quote, error) {
	qctx, cancel := context.WithTimeout(ctx, s.venueTimeout)
	defer cancel()

	quote, err := s.venue.GetQuote(qctx, req.From, req.To, req.Amount)
	if err != nil {
		return nil, apperror.ErrQuoteUnavailable(err)
	}
	if quote == nil || !quote.Available {
		msg := "venue returned no quote"
		if quote != nil {
			msg = quote.Message
		}
		return nil, apperror.ErrQuoteUnavailable(errors.New(msg))
	}
	return quote, nil
}

// executeTrade treats a transport error or timeout as a failure. The venue
// may still have settled, so such cases are logged for reconciliation.
func (s *ConversionServiceImpl) executeTrade(ctx context.Context, quoteID string, log zerolog.Logger) (*domain.TradeResult, error) {
	ectx, cancel := context.WithTimeout(ctx, s.venueTimeout)
	defer cancel()

	trade, err := s.venue.ExecuteTrade(ectx, quoteID)
	if err != nil {
		log.Warn().Err(err).
			Str("venue_outcome", "unknown").
			Msg("trade execution did not return; venue state must be reconciled")
		return nil, apperror.ErrTradeExecutionFailed(err)
	}
	if trade == nil || !trade.Success {
		msg := "venue returned no result"
		if trade != nil {
			msg = trade.Message
		}
		log.Warn().Str("venue_message", msg).Msg("conversion declined: trade execution failed")
		return nil, apperror.ErrTradeExecutionFailed(errors.New(msg))
	}
	return trade, nil
}
