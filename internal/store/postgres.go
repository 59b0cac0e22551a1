package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/fixedincome/marketdata/internal/model"
)

// Querier is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it in tests.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using a pgx connection pool.
type PostgresStore struct {
	pool Querier
}

// NewPostgres connects a pool to the given URL.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromQuerier wraps an existing pool or mock.
func NewPostgresFromQuerier(q Querier) *PostgresStore {
	return &PostgresStore{pool: q}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS market_data (
	id         UUID PRIMARY KEY,
	category   TEXT NOT NULL,
	data_key   TEXT NOT NULL,
	data_value NUMERIC(19,6) NOT NULL,
	data_date  DATE NOT NULL,
	source     TEXT NOT NULL,
	currency   TEXT,
	tenor      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (category, data_key, data_date, source)
);

CREATE INDEX IF NOT EXISTS idx_market_data_category_date ON market_data(category, data_date);
CREATE INDEX IF NOT EXISTS idx_market_data_category_key_date ON market_data(category, data_key, data_date);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const postgresUpsert = `
INSERT INTO market_data (id, category, data_key, data_value, data_date, source, currency, tenor)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (category, data_key, data_date, source) DO UPDATE SET
	data_value = EXCLUDED.data_value,
	currency   = EXCLUDED.currency,
	tenor      = EXCLUDED.tenor,
	updated_at = now()`

func (s *PostgresStore) StorePoints(ctx context.Context, points []model.TimeSeriesPoint) error {
	for _, p := range points {
		_, err := s.pool.Exec(ctx, postgresUpsert,
			uuid.New().String(),
			string(p.Category),
			p.Key,
			p.Value.String(),
			p.ObservedDate.Format(model.DateFormat),
			p.Source,
			nullable(p.Currency),
			nullable(p.Tenor),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert %s/%s", p.Category, p.Key)
		}
	}
	return nil
}

func (s *PostgresStore) StoreSnapshot(ctx context.Context, snap model.YieldCurveSnapshot) error {
	return s.StorePoints(ctx, model.DecomposeSnapshot(snap))
}

func (s *PostgresStore) StoreCategoryMap(ctx context.Context, category model.Category, m model.CategoryMap, source string, date time.Time) error {
	points := make([]model.TimeSeriesPoint, 0, len(m))
	for key, value := range m {
		points = append(points, model.TimeSeriesPoint{
			Category:     category,
			Key:          key,
			Value:        value,
			ObservedDate: model.Midnight(date),
			Source:       source,
		})
	}
	return s.StorePoints(ctx, points)
}

func (s *PostgresStore) LatestAsOf(ctx context.Context, category model.Category, asOf time.Time) ([]model.TimeSeriesPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category, data_key, data_value::text, to_char(data_date, 'YYYY-MM-DD'), source, currency, tenor
		 FROM market_data
		 WHERE category = $1 AND data_date = (
			SELECT MAX(data_date) FROM market_data WHERE category = $1 AND data_date <= $2
		 )`,
		string(category), asOf.Format(model.DateFormat),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: latest as of")
	}
	defer rows.Close()

	return scanPoints(rows)
}

func (s *PostgresStore) TimeSeries(ctx context.Context, category model.Category, key string, start, end time.Time) ([]model.TimeSeriesPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category, data_key, data_value::text, to_char(data_date, 'YYYY-MM-DD'), source, currency, tenor
		 FROM market_data
		 WHERE category = $1 AND data_key = $2 AND data_date >= $3 AND data_date <= $4
		 ORDER BY data_date ASC`,
		string(category), key, start.Format(model.DateFormat), end.Format(model.DateFormat),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: time series")
	}
	defer rows.Close()

	return scanPoints(rows)
}

func (s *PostgresStore) PointLookup(ctx context.Context, category model.Category, key string, asOf time.Time) (decimal.Decimal, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT data_value::text FROM market_data
		 WHERE category = $1 AND data_key = $2 AND data_date <= $3
		 ORDER BY data_date DESC LIMIT 1`,
		string(category), key, asOf.Format(model.DateFormat),
	)

	var raw string
	err := row.Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Decimal{}, false, nil
	}
	if err != nil {
		return decimal.Decimal{}, false, eris.Wrap(err, "postgres: point lookup")
	}

	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false, eris.Wrapf(err, "postgres: parse value %q", raw)
	}
	return v, true, nil
}

func (s *PostgresStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM market_data WHERE data_date < $1`,
		cutoff.Format(model.DateFormat),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge older than")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) PurgeAll(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM market_data`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: purge all")
	}
	return tag.RowsAffected(), nil
}
