package storage

import (
	"context"

	"github.com/xaenox/regretgpt/internal/models"
)

// Storage keeps the verdict history.
type Storage interface {
	SaveVerdict(ctx context.Context, verdict *models.Verdict) error
	// RecentVerdicts returns at most limit records, newest first.
	RecentVerdicts(ctx context.Context, limit int) ([]*models.Verdict, error)
	Close() error
}
