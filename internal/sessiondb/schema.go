package sessiondb

// SchemaVersion is the current target schema version. migrate() brings any
// older database up to this version by applying migrations in order.
const SchemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS projects (
	id TEXT PRIMARY KEY,
	provider TEXT NOT NULL,
	project_dir TEXT NOT NULL,
	display_name TEXT,
	created_at TEXT NOT NULL,
	UNIQUE(provider, project_dir)
);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	project_id TEXT REFERENCES projects(id) ON DELETE SET NULL,
	provider TEXT NOT NULL,
	provider_session_id TEXT NOT NULL,
	title TEXT,
	model TEXT,
	cwd TEXT,
	started_at TEXT,
	ended_at TEXT,
	turn_count INTEGER NOT NULL DEFAULT 0,
	total_cost_usd REAL NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	UNIQUE(provider, provider_session_id)
);
CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_id);

CREATE TABLE IF NOT EXISTS turns (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	turn_number INTEGER NOT NULL,
	role TEXT NOT NULL,
	user_text TEXT,
	assistant_text TEXT,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cache_read_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd REAL NOT NULL DEFAULT 0,
	tools_used TEXT,
	created_at TEXT NOT NULL,
	UNIQUE(session_id, turn_number)
);
CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id);

CREATE VIRTUAL TABLE IF NOT EXISTS turns_fts USING fts5(
	user_text, assistant_text, content='turns', content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS turns_ai AFTER INSERT ON turns BEGIN
	INSERT INTO turns_fts(rowid, user_text, assistant_text)
	VALUES (new.rowid, new.user_text, new.assistant_text);
END;
CREATE TRIGGER IF NOT EXISTS turns_ad AFTER DELETE ON turns BEGIN
	INSERT INTO turns_fts(turns_fts, rowid, user_text, assistant_text)
	VALUES ('delete', old.rowid, old.user_text, old.assistant_text);
END;
CREATE TRIGGER IF NOT EXISTS turns_au AFTER UPDATE ON turns BEGIN
	INSERT INTO turns_fts(turns_fts, rowid, user_text, assistant_text)
	VALUES ('delete', old.rowid, old.user_text, old.assistant_text);
	INSERT INTO turns_fts(rowid, user_text, assistant_text)
	VALUES (new.rowid, new.user_text, new.assistant_text);
END;

CREATE TABLE IF NOT EXISTS tags (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS session_tags (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (session_id, tag_id)
);

CREATE TABLE IF NOT EXISTS model_pricing (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	provider TEXT NOT NULL,
	model_pattern TEXT NOT NULL,
	input_per_mtok REAL NOT NULL,
	output_per_mtok REAL NOT NULL,
	cache_read_per_mtok REAL NOT NULL DEFAULT 0,
	effective_from TEXT NOT NULL,
	effective_until TEXT
);
CREATE INDEX IF NOT EXISTS idx_model_pricing_lookup ON model_pricing(provider, model_pattern);

CREATE TABLE IF NOT EXISTS packages (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	version TEXT NOT NULL,
	source TEXT NOT NULL,
	installed_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS package_deps (
	package_id TEXT NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
	depends_on_id TEXT NOT NULL,
	PRIMARY KEY (package_id, depends_on_id)
);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	package_id TEXT REFERENCES packages(id) ON DELETE SET NULL,
	started_at TEXT NOT NULL,
	ended_at TEXT,
	status TEXT NOT NULL,
	error TEXT
);

CREATE TABLE IF NOT EXISTS artifacts (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	path TEXT NOT NULL,
	kind TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS lockfiles (
	package_id TEXT PRIMARY KEY REFERENCES packages(id) ON DELETE CASCADE,
	checksum TEXT NOT NULL,
	written_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS secrets_meta (
	name TEXT PRIMARY KEY,
	stack_id TEXT,
	provider TEXT NOT NULL,
	configured INTEGER NOT NULL DEFAULT 0,
	last_updated TEXT
);

CREATE TABLE IF NOT EXISTS logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	source TEXT NOT NULL,
	level TEXT NOT NULL,
	type TEXT NOT NULL,
	provider TEXT,
	session_id TEXT,
	terminal_id TEXT,
	duration_ms INTEGER,
	payload TEXT
);
CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs(timestamp);
CREATE INDEX IF NOT EXISTS idx_logs_session ON logs(session_id);
`
