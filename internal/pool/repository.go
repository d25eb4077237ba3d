package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/stockpool/internal/contracts"
)

// Repository persists pool snapshots.
// ⭐ SSOT: 풀 스냅샷 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a pool snapshot repository
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{pool: db}
}

// EnsureSchema creates the snapshot table when absent
func (r *Repository) EnsureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS pool_members (
			pool_name   TEXT             NOT NULL,
			as_of       TIMESTAMPTZ      NOT NULL,
			rank        INTEGER          NOT NULL,
			instrument  TEXT             NOT NULL,
			basic_score DOUBLE PRECISION NOT NULL,
			watch_score DOUBLE PRECISION NOT NULL,
			core_score  DOUBLE PRECISION NOT NULL,
			scored_at   TIMESTAMPTZ      NOT NULL,
			PRIMARY KEY (pool_name, as_of, instrument)
		)
	`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create pool_members table: %w", err)
	}
	return nil
}

// SavePool replaces the snapshot for (pool.Name, pool.AsOf) atomically
func (r *Repository) SavePool(ctx context.Context, p *contracts.Pool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save pool: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM pool_members WHERE pool_name = $1 AND as_of = $2`,
		p.Name, p.AsOf); err != nil {
		return fmt.Errorf("clear pool snapshot %s: %w", p.Name, err)
	}

	query := `
		INSERT INTO pool_members (pool_name, as_of, rank, instrument, basic_score, watch_score, core_score, scored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	batch := &pgx.Batch{}
	for rank, m := range p.Members {
		batch.Queue(query, p.Name, p.AsOf, rank, m.Instrument,
			m.BasicScore, m.WatchScore, m.CoreScore, m.ScoredAt)
	}

	results := tx.SendBatch(ctx, batch)
	for range p.Members {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("save pool %s member: %w", p.Name, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("save pool %s: %w", p.Name, err)
	}

	return tx.Commit(ctx)
}

// SavePoolSet persists all three pools of a funnel run
func (r *Repository) SavePoolSet(ctx context.Context, set *contracts.PoolSet) error {
	for _, p := range []*contracts.Pool{set.Basic, set.Watch, set.Core} {
		if err := r.SavePool(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// LoadPool reads the newest snapshot of a named pool. A pool with no
// snapshots yet comes back empty, not as an error.
func (r *Repository) LoadPool(ctx context.Context, name string) (*contracts.Pool, error) {
	var asOf *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(as_of) FROM pool_members WHERE pool_name = $1`, name).Scan(&asOf)
	if err != nil && err != pgx.ErrNoRows {
		return nil, fmt.Errorf("find latest %s snapshot: %w", name, err)
	}
	if asOf == nil {
		return &contracts.Pool{Name: name}, nil
	}

	return r.LoadPoolAt(ctx, name, *asOf)
}

// LoadPoolAt reads one specific snapshot
func (r *Repository) LoadPoolAt(ctx context.Context, name string, asOf time.Time) (*contracts.Pool, error) {
	query := `
		SELECT instrument, basic_score, watch_score, core_score, scored_at
		FROM pool_members
		WHERE pool_name = $1 AND as_of = $2
		ORDER BY rank ASC
	`

	rows, err := r.pool.Query(ctx, query, name, asOf)
	if err != nil {
		return nil, fmt.Errorf("load pool %s: %w", name, err)
	}
	defer rows.Close()

	p := &contracts.Pool{Name: name, AsOf: asOf}
	for rows.Next() {
		var m contracts.ScoredCandidate
		if err := rows.Scan(&m.Instrument, &m.BasicScore, &m.WatchScore, &m.CoreScore, &m.ScoredAt); err != nil {
			return nil, fmt.Errorf("scan pool member: %w", err)
		}
		p.Members = append(p.Members, m)
	}
	return p, rows.Err()
}

// Summary is one row of the status view
type Summary struct {
	Name    string
	AsOf    time.Time
	Members int
}

// Summaries returns the newest snapshot size of every pool
func (r *Repository) Summaries(ctx context.Context) ([]Summary, error) {
	query := `
		SELECT pool_name, MAX(as_of) AS latest, COUNT(*) FILTER (WHERE as_of = (
			SELECT MAX(as_of) FROM pool_members p2 WHERE p2.pool_name = pool_members.pool_name
		))
		FROM pool_members
		GROUP BY pool_name
		ORDER BY pool_name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load pool summaries: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.Name, &s.AsOf, &s.Members); err != nil {
			return nil, fmt.Errorf("scan pool summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
