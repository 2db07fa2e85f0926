package memory

import (
	"context"
	"sync"

	"currency-conversion-service/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository in memory.
type AuditRepo struct {
	mu   sync.RWMutex
	logs []domain.AuditLog
}

func NewAuditRepo() *AuditRepo {
	return &AuditRepo{}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

// List returns a snapshot of recorded entries.
func (r *AuditRepo) List() []domain.AuditLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.AuditLog(nil), r.logs...)
}
