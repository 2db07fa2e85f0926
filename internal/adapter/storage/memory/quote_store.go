package memory

import (
	"context"
	"sync"
	"time"

	"currency-conversion-service/internal/core/domain"
)

// QuoteStore implements ports.QuoteStore in memory. Take removes the quote
// under the same lock that reads it, so a quote is handed out at most once.
type QuoteStore struct {
	mu        sync.Mutex
	quotes    map[string]domain.Quote
	retention time.Duration
	now       func() time.Time
}

// NewQuoteStore creates a QuoteStore. Quotes that expired more than
// retention ago are swept on Save; until then Take still returns them so
// the venue can answer "expired" rather than "not found".
func NewQuoteStore(retention time.Duration) *QuoteStore {
	return &QuoteStore{
		quotes:    make(map[string]domain.Quote),
		retention: retention,
		now:       time.Now,
	}
}

func (s *QuoteStore) Save(ctx context.Context, q *domain.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.retention)
	for id, old := range s.quotes {
		if old.ExpiresAt.Before(cutoff) {
			delete(s.quotes, id)
		}
	}
	s.quotes[q.QuoteID] = *q
	return nil
}

func (s *QuoteStore) Take(ctx context.Context, id string) (*domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotes[id]
	if !ok {
		return nil, nil
	}
	delete(s.quotes, id)
	return &q, nil
}

// Len reports how many quotes are held.
func (s *QuoteStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.quotes)
}
