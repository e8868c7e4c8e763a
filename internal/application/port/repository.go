package port

import (
	"context"
	"time"

	"pricefetcher/internal/domain"
)

// RunRepository persists completed resolution runs for history and
// observability.
type RunRepository interface {
	// InsertRun stores one run's summary plus its full result set.
	InsertRun(ctx context.Context, at time.Time, sum domain.RunSummary, results []domain.PriceResult) error

	// Connection management
	Close() error
}
