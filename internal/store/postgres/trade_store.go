package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL. Values are stored
// in atomic units as NUMERIC.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, owner, chain_id, market_id, outcome_id, side, value::text, created_at`

func scanTradeRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var trades []domain.TradeRecord
	for rows.Next() {
		var (
			t     domain.TradeRecord
			side  string
			value string
		)
		if err := rows.Scan(&t.ID, &t.Owner, &t.ChainID, &t.MarketID, &t.OutcomeID, &side, &value, &t.CreatedAt); err != nil {
			return nil, err
		}
		amount, err := domain.AmountFromAtomic(value)
		if err != nil {
			return nil, fmt.Errorf("trade %s: %w", t.ID, err)
		}
		t.Side = domain.TradeSide(side)
		t.Value = amount
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// Insert stores one executed trade. Re-inserting an id is a no-op.
func (s *TradeStore) Insert(ctx context.Context, t domain.TradeRecord) error {
	const query = `
		INSERT INTO trades (id, owner, chain_id, market_id, outcome_id, side, value, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.Owner, t.ChainID, t.MarketID, t.OutcomeID, string(t.Side), t.Value.Atomic(), t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", t.ID, err)
	}
	return nil
}

// ListByOwner returns an owner's trades, newest first.
func (s *TradeStore) ListByOwner(ctx context.Context, owner string, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query, args := ownerQuery(`SELECT `+tradeSelectCols+` FROM trades WHERE 1=1`, owner, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades for %s: %w", owner, err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades for %s: %w", owner, err)
	}
	return trades, nil
}

// CountByOwner returns how many trades an owner has made.
func (s *TradeStore) CountByOwner(ctx context.Context, owner string) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades WHERE owner = $1`, owner).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count trades for %s: %w", owner, err)
	}
	return n, nil
}

var _ domain.TradeStore = (*TradeStore)(nil)
