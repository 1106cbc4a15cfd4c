package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/google/uuid"

	"lob-sim/src/engine"
	"lob-sim/src/simulator"
)

// Store exports simulation runs to SQLite. It records what happened; it is
// never read back into a live book.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			config TEXT NOT NULL,
			started_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS market_states (
			run_id TEXT NOT NULL REFERENCES runs(id),
			step INTEGER NOT NULL,
			ts REAL NOT NULL,
			midprice REAL NOT NULL,
			spread REAL NOT NULL,
			best_bid REAL,
			best_ask REAL,
			imbalance REAL NOT NULL,
			volatility REAL NOT NULL,
			total_volume INTEGER NOT NULL,
			num_trades INTEGER NOT NULL,
			PRIMARY KEY (run_id, step)
		);`,
		`CREATE TABLE IF NOT EXISTS fills (
			run_id TEXT NOT NULL REFERENCES runs(id),
			trade_id TEXT NOT NULL,
			step INTEGER NOT NULL,
			aggressor_order_id INTEGER NOT NULL,
			passive_order_id INTEGER NOT NULL,
			side TEXT NOT NULL,
			price REAL NOT NULL,
			size INTEGER NOT NULL,
			ts REAL NOT NULL,
			PRIMARY KEY (run_id, trade_id)
		);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &Store{db: db}, nil
}

// Run is one recording session bound to a store.
type Run struct {
	ID    uuid.UUID
	store *Store
	step  int64
}

// BeginRun registers a new run and stores its configuration as JSON.
func (s *Store) BeginRun(ctx context.Context, cfg simulator.Config) (*Run, error) {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	id := uuid.New()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO runs (id, seed, config, started_at) VALUES (?, ?, ?, ?)",
		id.String(), int64(cfg.Seed), string(payload), time.Now().UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return &Run{ID: id, store: s}, nil
}

// RecordStep writes one MarketState and its fills in a single transaction.
func (r *Run) RecordStep(ctx context.Context, state simulator.MarketState, fills []engine.Fill) error {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	step := r.step + 1
	_, err = tx.ExecContext(ctx,
		`INSERT INTO market_states (run_id, step, ts, midprice, spread, best_bid, best_ask,
			imbalance, volatility, total_volume, num_trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), step, state.Timestamp, state.Midprice, state.Spread,
		nullable(state.BestBid, state.HasBid), nullable(state.BestAsk, state.HasAsk),
		state.Imbalance, state.Volatility, state.TotalVolume, state.NumTrades,
	)
	if err != nil {
		return fmt.Errorf("failed to insert market state: %w", err)
	}

	if len(fills) > 0 {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO fills (run_id, trade_id, step, aggressor_order_id, passive_order_id, side, price, size, ts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare fill insert: %w", err)
		}
		defer stmt.Close()

		for _, f := range fills {
			if _, err := stmt.ExecContext(ctx,
				r.ID.String(), f.TradeID, step, f.AggressorOrderID, f.PassiveOrderID,
				string(f.Side), f.Price, f.Size, f.Timestamp,
			); err != nil {
				return fmt.Errorf("failed to insert fill %s: %w", f.TradeID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit step: %w", err)
	}
	r.step = step
	return nil
}

func (r *Run) Steps() int64 {
	return r.step
}

// LoadStates returns a run's states in step order.
func (s *Store) LoadStates(ctx context.Context, runID uuid.UUID) ([]simulator.MarketState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, midprice, spread, best_bid, best_ask, imbalance, volatility, total_volume, num_trades
		FROM market_states WHERE run_id = ? ORDER BY step ASC`,
		runID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query states: %w", err)
	}
	defer rows.Close()

	var states []simulator.MarketState
	for rows.Next() {
		var st simulator.MarketState
		var bid, ask sql.NullFloat64
		if err := rows.Scan(&st.Timestamp, &st.Midprice, &st.Spread, &bid, &ask,
			&st.Imbalance, &st.Volatility, &st.TotalVolume, &st.NumTrades); err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		st.BestBid, st.HasBid = bid.Float64, bid.Valid
		st.BestAsk, st.HasAsk = ask.Float64, ask.Valid
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return states, nil
}

// FillStats returns the number of fills and their total size for a run.
func (s *Store) FillStats(ctx context.Context, runID uuid.UUID) (int64, int64, error) {
	var count int64
	var volume sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), SUM(size) FROM fills WHERE run_id = ?", runID.String(),
	).Scan(&count, &volume)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count fills: %w", err)
	}
	return count, volume.Int64, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullable(v float64, ok bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: ok}
}
