package recorder

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"CryptoSentinel/internal/model"
)

// SQLiteRecorder persists snapshots and analysis rows to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	// WAL so external readers don't block the bot's writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logrus.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS crypto_data (
			id                 INTEGER NOT NULL,
			symbol             TEXT,
			name               TEXT,
			price              TEXT,
			market_cap         REAL,
			volume_24h         REAL,
			percent_change_1h  REAL,
			percent_change_24h REAL,
			percent_change_7d  REAL,
			timestamp          TEXT NOT NULL,
			PRIMARY KEY (id, timestamp)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_crypto_symbol ON crypto_data(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS analysis_results (
			timestamp     TEXT NOT NULL,
			analysis_type TEXT NOT NULL,
			coin_symbol   TEXT NOT NULL,
			result        TEXT,
			alert_sent    INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (timestamp, analysis_type, coin_symbol)
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// AppendSnapshot inserts one row per quote in a single transaction. A key collision
// rolls back the whole snapshot.
func (r *SQLiteRecorder) AppendSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if snap.Len() == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := formatTimestamp(snap.ObservedAt)
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO crypto_data
			(id, symbol, name, price, market_cap, volume_24h,
			 percent_change_1h, percent_change_24h, percent_change_7d, timestamp)
			VALUES (?,?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, q := range snap.Quotes {
			if _, err := stmt.ExecContext(ctx,
				q.ID, q.Symbol, q.Name, q.Price.String(), q.MarketCap, q.Volume24h,
				q.PercentChange1h, q.PercentChange24h, q.PercentChange7d, ts,
			); err != nil {
				return fmt.Errorf("insert %s: %w", q.Symbol, err)
			}
		}
		return nil
	})
	if err != nil {
		return &StoreError{Op: "append_snapshot", Err: err}
	}
	return nil
}

// AppendAnalysis stores every ranked entry of every view, undelivered.
func (r *SQLiteRecorder) AppendAnalysis(ctx context.Context, analysis model.Analysis, observedAt time.Time) error {
	if len(analysis) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := formatTimestamp(observedAt)
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO analysis_results
			(timestamp, analysis_type, coin_symbol, result, alert_sent)
			VALUES (?,?,?,?,0)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, view := range model.Views {
			res, ok := analysis[view]
			if !ok {
				continue
			}
			for _, e := range res.Entries {
				blob, err := json.Marshal(e)
				if err != nil {
					return fmt.Errorf("encode %s/%s: %w", view, e.Symbol, err)
				}
				if _, err := stmt.ExecContext(ctx, ts, string(view), e.Symbol, string(blob)); err != nil {
					return fmt.Errorf("insert %s/%s: %w", view, e.Symbol, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return &StoreError{Op: "append_analysis", Err: err}
	}
	return nil
}

// MarkDelivered flags every analysis row of the given cycle as reported.
func (r *SQLiteRecorder) MarkDelivered(ctx context.Context, observedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `UPDATE analysis_results SET alert_sent = 1 WHERE timestamp = ?`,
		formatTimestamp(observedAt))
	if err != nil {
		return &StoreError{Op: "mark_delivered", Err: err}
	}
	return nil
}

func (r *SQLiteRecorder) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) Close() error {
	logrus.Info("closing sqlite recorder")
	return r.db.Close()
}
