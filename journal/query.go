package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/papertrader/ledger"
	"github.com/rustyeddy/papertrader/market"
)

const tradeColumns = `trade_id, instrument, direction, size, entry_price, exit_price, initial_stop,
	final_stop, open_time, close_time, realized_pl, reason, strategy, notes`

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (ledger.ClosedTrade, error) {
	var (
		rec    ledger.ClosedTrade
		dir    string
		reason string
	)
	err := s.Scan(
		&rec.TradeID,
		&rec.Instrument,
		&dir,
		&rec.Size,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.InitialStop,
		&rec.FinalStop,
		&rec.OpenedAt,
		&rec.ClosedAt,
		&rec.RealizedPnL,
		&reason,
		&rec.Strategy,
		&rec.Notes,
	)
	if err != nil {
		return ledger.ClosedTrade{}, err
	}
	if rec.Direction, err = market.ParseDirection(dir); err != nil {
		return ledger.ClosedTrade{}, err
	}
	rec.ExitReason = ledger.ExitReason(reason)
	return rec, nil
}

// GetTrade returns a single closed trade by ID.
func (j *SQLite) GetTrade(ctx context.Context, tradeID string) (ledger.ClosedTrade, error) {
	row := j.db.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.ClosedTrade{}, fmt.Errorf("%w: %q", ErrTradeNotFound, tradeID)
		}
		return ledger.ClosedTrade{}, err
	}
	return rec, nil
}

// ListTradesClosedBetween returns trades whose close time is within
// [start, end), oldest first.
func (j *SQLite) ListTradesClosedBetween(ctx context.Context, start, end time.Time) ([]ledger.ClosedTrade, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC, trade_id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledger.ClosedTrade
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
