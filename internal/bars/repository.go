package bars

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/stockpool/internal/contracts"
)

// Repository is the durable copy of raw bars.
// ⭐ SSOT: 봉 데이터 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new bar repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// EnsureSchema creates the bars table when absent
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS bars (
			instrument  TEXT             NOT NULL,
			timeframe   TEXT             NOT NULL,
			ts          TIMESTAMPTZ      NOT NULL,
			open_price  DOUBLE PRECISION NOT NULL,
			high_price  DOUBLE PRECISION NOT NULL,
			low_price   DOUBLE PRECISION NOT NULL,
			close_price DOUBLE PRECISION NOT NULL,
			volume      DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (instrument, timeframe, ts)
		)
	`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create bars table: %w", err)
	}
	return nil
}

// SaveSeries upserts every bar of the series in one batch
func (r *Repository) SaveSeries(ctx context.Context, series *contracts.BarSeries) error {
	if series.Len() == 0 {
		return nil
	}

	query := `
		INSERT INTO bars (instrument, timeframe, ts, open_price, high_price, low_price, close_price, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (instrument, timeframe, ts) DO UPDATE SET
			open_price  = EXCLUDED.open_price,
			high_price  = EXCLUDED.high_price,
			low_price   = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume      = EXCLUDED.volume
	`

	batch := &pgx.Batch{}
	for _, b := range series.Bars {
		batch.Queue(query, series.Instrument, series.Timeframe, b.Timestamp,
			b.Open, b.High, b.Low, b.Close, b.Volume)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range series.Bars {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save bars %s/%s: %w", series.Instrument, series.Timeframe, err)
		}
	}
	return nil
}

// LoadSeries reads bars for a key within [from, to], oldest first
func (r *Repository) LoadSeries(ctx context.Context, instrument, timeframe string, from, to time.Time) (*contracts.BarSeries, error) {
	query := `
		SELECT ts, open_price, high_price, low_price, close_price, volume
		FROM bars
		WHERE instrument = $1 AND timeframe = $2 AND ts BETWEEN $3 AND $4
		ORDER BY ts ASC
	`

	rows, err := r.pool.Query(ctx, query, instrument, timeframe, from, to)
	if err != nil {
		return nil, fmt.Errorf("load bars %s/%s: %w", instrument, timeframe, err)
	}
	defer rows.Close()

	series := &contracts.BarSeries{Instrument: instrument, Timeframe: timeframe}
	for rows.Next() {
		var b contracts.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		series.Bars = append(series.Bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	series.FetchedAt = time.Now()
	return series, nil
}

// LatestTimestamp returns the newest stored bar timestamp for a key,
// or the zero time when no rows exist.
func (r *Repository) LatestTimestamp(ctx context.Context, instrument, timeframe string) (time.Time, error) {
	query := `
		SELECT ts FROM bars
		WHERE instrument = $1 AND timeframe = $2
		ORDER BY ts DESC
		LIMIT 1
	`

	var ts time.Time
	err := r.pool.QueryRow(ctx, query, instrument, timeframe).Scan(&ts)
	if err == pgx.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("latest bar timestamp %s/%s: %w", instrument, timeframe, err)
	}
	return ts, nil
}
