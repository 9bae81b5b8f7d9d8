package journal

// Prices and amounts are stored as decimal text so they round-trip exactly.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
	instrument TEXT NOT NULL,
	seq INTEGER NOT NULL,
	event_id TEXT NOT NULL UNIQUE,
	kind TEXT NOT NULL,
	at DATETIME NOT NULL,
	payload TEXT NOT NULL,
	PRIMARY KEY (instrument, seq)
);

CREATE TABLE IF NOT EXISTS trades (
	trade_id TEXT PRIMARY KEY,
	instrument TEXT NOT NULL,
	direction TEXT NOT NULL,
	size TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	exit_price TEXT NOT NULL,
	initial_stop TEXT NOT NULL,
	final_stop TEXT NOT NULL,
	open_time DATETIME NOT NULL,
	close_time DATETIME NOT NULL,
	realized_pl TEXT NOT NULL,
	reason TEXT NOT NULL,
	strategy TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);
`
