package ports

import (
	"context"

	"github.com/alejandrodnm/backsim/internal/domain"
)

// Reporter presents the outcome of a finished run to the user.
type Reporter interface {
	// Report renders the performance summary, the per-symbol breakdown and
	// (depending on the implementation's verbosity) the trade list.
	Report(ctx context.Context, metrics domain.PerformanceMetrics, symbols []domain.SymbolPerformance, trades []domain.Trade) error
}
