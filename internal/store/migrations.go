package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY,
	task          TEXT NOT NULL,
	plan          TEXT NOT NULL DEFAULT '',
	status        TEXT NOT NULL CHECK(status IN ('success', 'failed')),
	step_count    INTEGER NOT NULL DEFAULT 0,
	failure_count INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS run_steps (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	operation   TEXT NOT NULL,
	raw_text    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL CHECK(status IN ('success', 'failed')),
	error       TEXT NOT NULL DEFAULT '',
	result      TEXT NOT NULL DEFAULT '',
	diagnostics TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, position)
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
