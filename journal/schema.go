package journal

const Schema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id TEXT PRIMARY KEY,
	instrument TEXT NOT NULL,
	units INTEGER NOT NULL,
	side TEXT NOT NULL,
	kind TEXT NOT NULL,
	limit_price INTEGER NOT NULL,
	status TEXT NOT NULL,
	submitted_at INTEGER NOT NULL,
	processed_at INTEGER NOT NULL,
	execution_price INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	time INTEGER NOT NULL,
	pips REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_time ON snapshots(time);
`
