package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"pricefetcher/internal/application/port"
	"pricefetcher/internal/domain"
)

// Repo persists run history in an embedded sqlite database. Used when no
// Postgres DSN is configured.
type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  at INTEGER NOT NULL,
  total INTEGER NOT NULL,
  with_price INTEGER NOT NULL,
  nulls INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_at ON runs(at);

CREATE TABLE IF NOT EXISTS run_prices (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id INTEGER NOT NULL,
  chain TEXT NOT NULL,
  address TEXT NOT NULL,
  symbol TEXT,
  price_usd REAL,
  source TEXT,
  at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_prices_run ON run_prices(run_id);
CREATE INDEX IF NOT EXISTS idx_run_prices_token ON run_prices(chain, address);
`)
	return err
}

func (r *Repo) InsertRun(ctx context.Context, at time.Time, sum domain.RunSummary, results []domain.PriceResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs(at, total, with_price, nulls) VALUES(?, ?, ?, ?)`,
		at.UnixMilli(), sum.Total, sum.WithPrice, sum.Nulls,
	)
	if err != nil {
		return err
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, pr := range results {
		var source sql.NullString
		if pr.Source != domain.SourceUnknown {
			source = sql.NullString{String: string(pr.Source), Valid: true}
		}
		var price sql.NullFloat64
		if pr.PriceUSD != nil {
			price = sql.NullFloat64{Float64: *pr.PriceUSD, Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_prices(run_id, chain, address, symbol, price_usd, source, at) VALUES(?, ?, ?, ?, ?, ?, ?)`,
			runID, pr.Chain, pr.Address, pr.Symbol, price, source, pr.At.UnixMilli(),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LastRunPrices returns the result rows of the most recent run, newest run
// first. Used by tests and ad-hoc inspection.
func (r *Repo) LastRunPrices(ctx context.Context) ([]domain.PriceResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT chain, address, COALESCE(symbol, ''), price_usd, source, at
FROM run_prices
WHERE run_id = (SELECT id FROM runs ORDER BY at DESC, id DESC LIMIT 1)
ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PriceResult
	for rows.Next() {
		var (
			res    domain.PriceResult
			price  sql.NullFloat64
			source sql.NullString
			atMS   int64
		)
		if err := rows.Scan(&res.Chain, &res.Address, &res.Symbol, &price, &source, &atMS); err != nil {
			return nil, err
		}
		if price.Valid {
			p := price.Float64
			res.PriceUSD = &p
		}
		if source.Valid {
			res.Source = domain.Source(source.String)
		}
		res.At = time.UnixMilli(atMS).UTC()
		out = append(out, res)
	}
	return out, rows.Err()
}

var _ port.RunRepository = (*Repo)(nil)
