package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"pricefetcher/internal/application/port"
	"pricefetcher/internal/domain"
)

// Repo persists run history in Postgres.
type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

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
  id BIGSERIAL PRIMARY KEY,
  at TIMESTAMPTZ NOT NULL,
  total INT NOT NULL,
  with_price INT NOT NULL,
  nulls INT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_at ON runs(at);

CREATE TABLE IF NOT EXISTS run_prices (
  id BIGSERIAL PRIMARY KEY,
  run_id BIGINT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  chain TEXT NOT NULL,
  address TEXT NOT NULL,
  symbol TEXT,
  price_usd DOUBLE PRECISION,
  source TEXT,
  at TIMESTAMPTZ NOT NULL
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

	var runID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO runs(at, total, with_price, nulls) VALUES($1, $2, $3, $4) RETURNING id`,
		at, sum.Total, sum.WithPrice, sum.Nulls,
	).Scan(&runID)
	if err != nil {
		return err
	}

	for _, res := range results {
		var source sql.NullString
		if res.Source != domain.SourceUnknown {
			source = sql.NullString{String: string(res.Source), Valid: true}
		}
		var price sql.NullFloat64
		if res.PriceUSD != nil {
			price = sql.NullFloat64{Float64: *res.PriceUSD, Valid: true}
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_prices(run_id, chain, address, symbol, price_usd, source, at) VALUES($1, $2, $3, $4, $5, $6, $7)`,
			runID, res.Chain, res.Address, res.Symbol, price, source, res.At,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

var _ port.RunRepository = (*Repo)(nil)
