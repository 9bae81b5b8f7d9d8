package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/papertrader/ledger"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// One connection serializes writers and keeps ":memory:" a single
	// database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// Append records ev, and for a close the trade row, in one transaction.
func (j *SQLite) Append(ctx context.Context, ev ledger.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %d: %w", ev.Seq, err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (instrument, seq, event_id, kind, at, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Instrument, ev.Seq, ev.ID, string(ev.Kind), ev.At.UTC(), string(payload),
	)
	if err != nil {
		return err
	}

	if ev.Kind == ledger.EventClosed && ev.Trade != nil {
		if err := insertTrade(ctx, tx, *ev.Trade); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertTrade(ctx context.Context, tx *sql.Tx, t ledger.ClosedTrade) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO trades
		(trade_id, instrument, direction, size, entry_price, exit_price, initial_stop, final_stop,
		 open_time, close_time, realized_pl, reason, strategy, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Instrument, t.Direction.String(), t.Size, t.EntryPrice, t.ExitPrice,
		t.InitialStop, t.FinalStop, t.OpenedAt.UTC(), t.ClosedAt.UTC(), t.RealizedPnL,
		string(t.ExitReason), t.Strategy, t.Notes,
	)
	return err
}

// Load returns the instrument's events in sequence order.
func (j *SQLite) Load(ctx context.Context, instrument string) ([]ledger.Event, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, payload FROM events
		WHERE instrument = ?
		ORDER BY seq ASC`, instrument)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.Event
	for rows.Next() {
		var (
			seq     int64
			payload string
		)
		if err := rows.Scan(&seq, &payload); err != nil {
			return nil, err
		}
		var ev ledger.Event
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("decode %s event %d: %w", instrument, seq, err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Instruments lists every instrument with at least one event.
func (j *SQLite) Instruments(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT DISTINCT instrument FROM events ORDER BY instrument`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
