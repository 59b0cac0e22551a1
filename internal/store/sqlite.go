package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/fixedincome/marketdata/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS market_data (
	id         TEXT PRIMARY KEY,
	category   TEXT NOT NULL,
	data_key   TEXT NOT NULL,
	data_value TEXT NOT NULL,
	data_date  TEXT NOT NULL,
	source     TEXT NOT NULL,
	currency   TEXT,
	tenor      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (category, data_key, data_date, source)
);

CREATE INDEX IF NOT EXISTS idx_market_data_category_date ON market_data(category, data_date);
CREATE INDEX IF NOT EXISTS idx_market_data_category_key_date ON market_data(category, data_key, data_date);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteUpsert = `
INSERT INTO market_data (id, category, data_key, data_value, data_date, source, currency, tenor)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (category, data_key, data_date, source) DO UPDATE SET
	data_value = excluded.data_value,
	currency   = excluded.currency,
	tenor      = excluded.tenor,
	updated_at = datetime('now')`

func (s *SQLiteStore) StorePoints(ctx context.Context, points []model.TimeSeriesPoint) error {
	if len(points) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteUpsert)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, p := range points {
		_, err := stmt.ExecContext(ctx,
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
			return eris.Wrapf(err, "sqlite: upsert %s/%s", p.Category, p.Key)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) StoreSnapshot(ctx context.Context, snap model.YieldCurveSnapshot) error {
	return s.StorePoints(ctx, model.DecomposeSnapshot(snap))
}

func (s *SQLiteStore) StoreCategoryMap(ctx context.Context, category model.Category, m model.CategoryMap, source string, date time.Time) error {
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

func (s *SQLiteStore) LatestAsOf(ctx context.Context, category model.Category, asOf time.Time) ([]model.TimeSeriesPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, data_key, data_value, data_date, source, currency, tenor
		 FROM market_data
		 WHERE category = ? AND data_date = (
			SELECT MAX(data_date) FROM market_data WHERE category = ? AND data_date <= ?
		 )`,
		string(category), string(category), asOf.Format(model.DateFormat),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: latest as of")
	}
	defer rows.Close() //nolint:errcheck

	return scanPoints(rows)
}

func (s *SQLiteStore) TimeSeries(ctx context.Context, category model.Category, key string, start, end time.Time) ([]model.TimeSeriesPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, data_key, data_value, data_date, source, currency, tenor
		 FROM market_data
		 WHERE category = ? AND data_key = ? AND data_date >= ? AND data_date <= ?
		 ORDER BY data_date ASC`,
		string(category), key, start.Format(model.DateFormat), end.Format(model.DateFormat),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: time series")
	}
	defer rows.Close() //nolint:errcheck

	return scanPoints(rows)
}

func (s *SQLiteStore) PointLookup(ctx context.Context, category model.Category, key string, asOf time.Time) (decimal.Decimal, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data_value FROM market_data
		 WHERE category = ? AND data_key = ? AND data_date <= ?
		 ORDER BY data_date DESC LIMIT 1`,
		string(category), key, asOf.Format(model.DateFormat),
	)

	var raw string
	err := row.Scan(&raw)
	if err == sql.ErrNoRows {
		return decimal.Decimal{}, false, nil
	}
	if err != nil {
		return decimal.Decimal{}, false, eris.Wrap(err, "sqlite: point lookup")
	}

	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false, eris.Wrapf(err, "sqlite: parse value %q", raw)
	}
	return v, true, nil
}

func (s *SQLiteStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM market_data WHERE data_date < ?`,
		cutoff.Format(model.DateFormat),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge older than")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) PurgeAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM market_data`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge all")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

// helpers

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanPoints(rows rowScanner) ([]model.TimeSeriesPoint, error) {
	var points []model.TimeSeriesPoint
	for rows.Next() {
		var (
			p               model.TimeSeriesPoint
			category        string
			rawValue        string
			rawDate         string
			currency, tenor sql.NullString
		)
		if err := rows.Scan(&category, &p.Key, &rawValue, &rawDate, &p.Source, &currency, &tenor); err != nil {
			return nil, eris.Wrap(err, "store: scan point")
		}

		value, err := decimal.NewFromString(rawValue)
		if err != nil {
			return nil, eris.Wrapf(err, "store: parse value %q", rawValue)
		}
		date, err := time.Parse(model.DateFormat, rawDate)
		if err != nil {
			return nil, eris.Wrapf(err, "store: parse date %q", rawDate)
		}

		p.Category = model.Category(category)
		p.Value = value
		p.ObservedDate = date
		p.Currency = currency.String
		p.Tenor = tenor.String
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "store: iterate points")
}
