package bars

import (
	"context"
	"time"

	"github.com/wonny/stockpool/internal/contracts"
)

// Source is the raw-bar vendor collaborator.
// ⭐ SSOT: 외부 봉 데이터 수집 인터페이스는 여기서만 정의
//
// Implementations classify failures with the contracts sentinels:
// ErrNotFound (no data, instrument is skipped), ErrRateLimited and
// ErrTransient (retryable).
type Source interface {
	// FetchBars returns bars for [from, to], oldest first.
	FetchBars(ctx context.Context, instrument, timeframe string, from, to time.Time) (*contracts.BarSeries, error)
}

// FundamentalsSource supplies the per-instrument valuation snapshot
// consumed by the scoring funnel.
type FundamentalsSource interface {
	FetchFundamentals(ctx context.Context, instrument string, asOf time.Time) (contracts.Fundamentals, error)
}
