package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"currency-conversion-service/internal/core/domain"
	"currency-conversion-service/internal/core/ports"
	"currency-conversion-service/pkg/apperror"
	"currency-conversion-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// PaymentServiceImpl implements ports.PaymentService. Every payment write
// commits together with the outbox row announcing it.
type PaymentServiceImpl struct {
	payments   ports.PaymentRepository
	outbox     ports.OutboxRepository
	idempCache ports.IdempotencyCache // nil when Redis is disabled
	transactor ports.DBTransactor
	log        zerolog.Logger
	now        func() time.Time
	newEvent   func(aggregateType, aggregateID, eventType string, payload any, now time.Time) (*domain.OutboxEvent, error)
}

// NewPaymentService creates a new PaymentServiceImpl.
func NewPaymentService(
	payments ports.PaymentRepository,
	outbox ports.OutboxRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		payments:   payments,
		outbox:     outbox,
		idempCache: idempCache,
		transactor: transactor,
		log:        logger.Component(log, "payment"),
		now:        func() time.Time { return time.Now().UTC() },
		newEvent:   domain.NewOutboxEvent,
	}
}

// CreatePayment records a PENDING payment and its PAYMENT_INITIATED event.
// A repeated IdempotencyKey for the same user returns the original payment.
func (s *PaymentServiceImpl) CreatePayment(ctx context.Context, req ports.CreatePaymentRequest) (*domain.Payment, error) {
	if !req.Amount.IsPositive() || !domain.HasMoneyScale(req.Amount) {
		return nil, apperror.ErrInvalidAmount()
	}
	if !req.Currency.IsSupported() {
		return nil, apperror.ErrUnsupportedCurrency(string(req.Currency))
	}
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(req.UserID, req.IdempotencyKey)

		// Layer 1: Redis idempotency check
		if p := s.cachedPayment(ctx, idempKey); p != nil {
			return p, nil
		}

		// Layer 2: DB idempotency check
		existing, err := s.payments.GetByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
		}
		if existing != nil {
			return existing, nil
		}
	}

	// Begin database transaction
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	now := s.now()
	payment := &domain.Payment{
		ID:          uuid.New(),
		UserID:      req.UserID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Status:      domain.PaymentStatusPending,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		payment.IdempotencyKey = &key
	}

	if err := s.payments.Create(ctx, dbTx, payment); err != nil {
		if errors.Is(err, domain.ErrConflict) && req.IdempotencyKey != "" {
			// Lost a race with a concurrent request carrying the same key.
			existing, getErr := s.payments.GetByIdempotencyKey(ctx, req.UserID, req.IdempotencyKey)
			if getErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, apperror.InternalError(fmt.Errorf("create payment: %w", err))
	}

	if err := s.appendEvent(ctx, dbTx, payment, domain.EventPaymentInitiated, "Payment initiated", now); err != nil {
		return nil, err
	}

	// Commit
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	// Post-process: cache in Redis (best-effort)
	if idempKey != "" && s.idempCache != nil {
		if respJSON, err := json.Marshal(payment); err == nil {
			if err := s.idempCache.Set(ctx, idempKey, respJSON, idempotencyTTL); err != nil {
				s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
			}
		}
	}

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("amount", req.Amount.String()).
		Str("currency", string(req.Currency)).
		Msg("payment created")

	return payment, nil
}

// UpdateStatus moves a payment along its lifecycle under a row lock.
func (s *PaymentServiceImpl) UpdateStatus(ctx context.Context, req ports.UpdatePaymentStatusRequest) (*domain.Payment, error) {
	if _, ok := domain.ParsePaymentStatus(string(req.Status)); !ok {
		return nil, apperror.Validation(fmt.Sprintf("unknown payment status %q", req.Status))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	payment, err := s.payments.GetByIDForUpdate(ctx, dbTx, req.PaymentID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, apperror.ErrLockTimeout(err)
		}
		return nil, apperror.InternalError(fmt.Errorf("lock payment: %w", err))
	}
	if payment == nil {
		return nil, apperror.ErrNotFound("Payment")
	}

	if payment.IsTerminal() {
		return nil, apperror.ErrPaymentFinal(string(payment.Status))
	}
	if !payment.Status.CanTransitionTo(req.Status) {
		return nil, apperror.ErrInvalidStatusTransition(string(payment.Status), string(req.Status))
	}

	if err := s.payments.UpdateStatus(ctx, dbTx, payment.ID, req.Status); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update payment status: %w", err))
	}

	now := s.now()
	from := payment.Status
	payment.Status = req.Status
	payment.UpdatedAt = now

	msg := req.Message
	if msg == "" {
		msg = fmt.Sprintf("Payment %s", strings.ToLower(string(req.Status)))
	}
	if err := s.appendEvent(ctx, dbTx, payment, req.Status.EventType(), msg, now); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("payment_id", payment.ID.String()).
		Str("from", string(from)).
		Str("to", string(req.Status)).
		Msg("payment status updated")

	return payment, nil
}

// GetPayment returns one payment.
func (s *PaymentServiceImpl) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get payment: %w", err))
	}
	if p == nil {
		return nil, apperror.ErrNotFound("Payment")
	}
	return p, nil
}

// appendEvent writes the outbox row for a payment fact inside dbTx. An
// encoding failure aborts the whole write.
func (s *PaymentServiceImpl) appendEvent(ctx context.Context, dbTx pgx.Tx, p *domain.Payment, eventType, message string, now time.Time) error {
	event, err := s.newEvent(domain.AggregatePayment, p.ID.String(), eventType,
		domain.NewPaymentEvent(p, eventType, message, now), now)
	if err != nil {
		s.log.Error().Err(err).Str("payment_id", p.ID.String()).Str("event_type", eventType).
			Msg("payment event encoding failed")
		return apperror.ErrSerializationFailure(err)
	}
	if err := s.outbox.Create(ctx, dbTx, event); err != nil {
		return apperror.InternalError(fmt.Errorf("insert outbox event: %w", err))
	}
	return nil
}

func (s *PaymentServiceImpl) cachedPayment(ctx context.Context, key string) *domain.Payment {
	if s.idempCache == nil {
		return nil
	}
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		return nil
	}
	if cached == nil {
		return nil
	}
	var p domain.Payment
	if err := json.Unmarshal(cached, &p); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable idempotency cache entry")
		return nil
	}
	return &p
}
