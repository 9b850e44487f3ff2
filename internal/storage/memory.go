package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/regretgpt/internal/models"
)

// DefaultMemoryCapacity bounds the in-memory history.
const DefaultMemoryCapacity = 1000

type MemoryStorage struct {
	mu       sync.RWMutex
	verdicts []*models.Verdict
	capacity int
}

func NewMemoryStorage(capacity int) *MemoryStorage {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStorage{
		verdicts: make([]*models.Verdict, 0, capacity),
		capacity: capacity,
	}
}

func (s *MemoryStorage) SaveVerdict(ctx context.Context, verdict *models.Verdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if verdict.ID == uuid.Nil {
		verdict.ID = uuid.New()
	}
	if verdict.CreatedAt.IsZero() {
		verdict.CreatedAt = time.Now()
	}

	stored := *verdict
	if len(s.verdicts) == s.capacity {
		copy(s.verdicts, s.verdicts[1:])
		s.verdicts = s.verdicts[:len(s.verdicts)-1]
	}
	s.verdicts = append(s.verdicts, &stored)
	return nil
}

func (s *MemoryStorage) RecentVerdicts(ctx context.Context, limit int) ([]*models.Verdict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.verdicts) {
		limit = len(s.verdicts)
	}

	result := make([]*models.Verdict, 0, limit)
	for i := len(s.verdicts) - 1; i >= 0 && len(result) < limit; i-- {
		v := *s.verdicts[i]
		result = append(result, &v)
	}
	return result, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
