// Package venue simulates the external rate and execution venue that
// conversions are priced and settled against.
package venue

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"currency-conversion-service/config"
	"currency-conversion-service/internal/core/domain"
	"currency-conversion-service/internal/core/ports"
	"currency-conversion-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Messages returned to callers.
const (
	MsgQuoteValid       = "Quote valid for %d seconds"
	MsgQuoteUnavailable = "Rate temporarily unavailable, please retry"
	MsgQuoteNotFound    = "Quote not found"
	MsgQuoteExpired     = "Quote expired"
	MsgTradeExecuted    = "Trade executed successfully"
	MsgTradeFailed      = "Trade execution failed: insufficient liquidity"
)

// Simulated implements ports.Venue with a fixed rate table, random
// unavailability on quote and random liquidity failures on execute.
type Simulated struct {
	quotes          ports.QuoteStore
	quoteTTL        time.Duration
	unavailableRate float64
	failureRate     float64
	latency         time.Duration
	log             zerolog.Logger

	mu  sync.Mutex // guards rnd; *rand.Rand is not safe for concurrent use
	rnd *rand.Rand
	now func() time.Time
}

// Option customises a Simulated venue.
type Option func(*Simulated)

// WithRand replaces the random source, for deterministic tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulated) { s.rnd = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Simulated) { s.now = now }
}

// WithLatency delays every call by d, or until ctx ends.
func WithLatency(d time.Duration) Option {
	return func(s *Simulated) { s.latency = d }
}

// WithRates overrides the unavailable and failure probabilities.
func WithRates(unavailable, failure float64) Option {
	return func(s *Simulated) {
		s.unavailableRate = unavailable
		s.failureRate = failure
	}
}

// NewSimulated creates a venue backed by quotes.
func NewSimulated(cfg config.VenueConfig, quotes ports.QuoteStore, log zerolog.Logger, opts ...Option) *Simulated {
	seed := uint64(cfg.Seed)
	var rnd *rand.Rand
	if seed != 0 {
		rnd = rand.New(rand.NewPCG(seed, seed))
	} else {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	ttl := cfg.QuoteTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	s := &Simulated{
		quotes:          quotes,
		quoteTTL:        ttl,
		unavailableRate: cfg.UnavailableRate,
		failureRate:     cfg.FailureRate,
		latency:         cfg.Latency,
		log:             logger.Component(log, "venue"),
		rnd:             rnd,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulated) roll() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

func (s *Simulated) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetQuote prices amount of from in to. An unavailable quote is returned
// with Available=false and is not stored.
func (s *Simulated) GetQuote(ctx context.Context, from, to domain.Currency, amount decimal.Decimal) (*domain.Quote, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("quote amount must be positive, got %s", amount)
	}
	rate, ok := Rate(from, to)
	if !ok {
		return nil, fmt.Errorf("unsupported currency pair %s->%s", from, to)
	}
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	now := s.now()
	q := &domain.Quote{
		From:   from,
		To:     to,
		Amount: amount,
		Rate:   rate,
		Fee:    Fee(from, to, amount),
	}

	if s.roll() < s.unavailableRate {
		q.Message = MsgQuoteUnavailable
		s.log.Debug().Str("from", string(from)).Str("to", string(to)).Msg("quote unavailable")
		return q, nil
	}

	q.QuoteID = "Q-" + uuid.NewString()
	q.ExpiresAt = now.Add(s.quoteTTL)
	q.Available = true
	q.Message = fmt.Sprintf(MsgQuoteValid, int(s.quoteTTL/time.Second))

	if err := s.quotes.Save(ctx, q); err != nil {
		return nil, fmt.Errorf("saving quote: %w", err)
	}

	s.log.Debug().
		Str("quote_id", q.QuoteID).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("rate", rate.String()).
		Msg("quote issued")

	return q, nil
}

// ExecuteTrade settles a quote. Any found quote is consumed whether the
// trade succeeds or not; an unknown id consumes nothing.
func (s *Simulated) ExecuteTrade(ctx context.Context, quoteID string) (*domain.TradeResult, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	q, err := s.quotes.Take(ctx, quoteID)
	if err != nil {
		return nil, fmt.Errorf("loading quote: %w", err)
	}
	if q == nil {
		return &domain.TradeResult{Message: MsgQuoteNotFound}, nil
	}
	if q.IsExpired(s.now()) {
		return &domain.TradeResult{Message: MsgQuoteExpired}, nil
	}
	if s.roll() < s.failureRate {
		s.log.Info().Str("quote_id", quoteID).Msg("trade rejected: insufficient liquidity")
		return &domain.TradeResult{Message: MsgTradeFailed}, nil
	}

	res := &domain.TradeResult{
		Success:       true,
		TransactionID: "TX-" + uuid.NewString(),
		Message:       MsgTradeExecuted,
	}
	s.log.Info().
		Str("quote_id", quoteID).
		Str("transaction_id", res.TransactionID).
		Msg("trade executed")
	return res, nil
}
