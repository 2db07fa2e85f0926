package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"currency-conversion-service/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// QuoteStore implements ports.QuoteStore using Redis. Quotes are written
// with SET NX so an id is never reused, and taken with GETDEL so only one
// caller ever receives a given quote.
type QuoteStore struct {
	client    *goredis.Client
	prefix    string
	retention time.Duration
}

// NewQuoteStore creates a Redis-backed quote store. Keys live for the quote
// TTL plus retention, so a recently expired quote is still found (and
// reported as expired) rather than missing.
func NewQuoteStore(client *goredis.Client, retention time.Duration) *QuoteStore {
	return &QuoteStore{
		client:    client,
		prefix:    "quote:",
		retention: retention,
	}
}

// Save stores q until shortly after it expires.
func (s *QuoteStore) Save(ctx context.Context, q *domain.Quote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote: %w", err)
	}

	ttl := time.Until(q.ExpiresAt) + s.retention
	if ttl <= 0 {
		ttl = s.retention
	}

	ok, err := s.client.SetArgs(ctx, s.prefix+q.QuoteID, data, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return fmt.Errorf("quote %s already exists", q.QuoteID)
		}
		return fmt.Errorf("redis quote save: %w", err)
	}
	if ok != "OK" {
		return fmt.Errorf("quote %s already exists", q.QuoteID)
	}
	return nil
}

// Take atomically reads and deletes a quote.
// Returns nil, nil if the quote does not exist.
func (s *QuoteStore) Take(ctx context.Context, id string) (*domain.Quote, error) {
	data, err := s.client.GetDel(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis quote take: %w", err)
	}

	var q domain.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("decode quote %s: %w", id, err)
	}
	return &q, nil
}
