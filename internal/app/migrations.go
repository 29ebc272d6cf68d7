// Package app — migrations.go: встроенные SQL-миграции.
// Миграции применяются последовательно по номеру и отмечаются
// в таблице schema_migrations.
package app

var migration001Users = `
CREATE TABLE IF NOT EXISTS app_users (
	id TEXT PRIMARY KEY,
	external_id TEXT NOT NULL DEFAULT '',
	nickname TEXT NOT NULL DEFAULT '',
	is_admin BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	last_seen_at TIMESTAMP NOT NULL DEFAULT NOW()
);
`

var migration002Tickets = `
CREATE TABLE IF NOT EXISTS user_tickets (
	app_user_id TEXT NOT NULL REFERENCES app_users(id),
	ticket_type TEXT NOT NULL,
	quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
	updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
	PRIMARY KEY (app_user_id, ticket_type)
);
`

var migration003Catalog = `
CREATE TABLE IF NOT EXISTS characters (
	id TEXT PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	weight INTEGER NOT NULL DEFAULT 0,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS cards (
	id TEXT PRIMARY KEY,
	character_id TEXT NOT NULL REFERENCES characters(id),
	slug TEXT NOT NULL UNIQUE,
	card_name TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	rarity TEXT NOT NULL,
	star_level INTEGER NOT NULL DEFAULT 1,
	card_image_url TEXT NOT NULL DEFAULT '',
	is_loss_card BOOLEAN NOT NULL DEFAULT FALSE,
	max_supply INTEGER,
	current_supply INTEGER NOT NULL DEFAULT 0,
	main_scene_steps INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS donden_routes (
	id TEXT PRIMARY KEY,
	character_id TEXT NOT NULL REFERENCES characters(id),
	from_card_id TEXT NOT NULL REFERENCES cards(id),
	to_card_id TEXT NOT NULL REFERENCES cards(id),
	steps INTEGER NOT NULL DEFAULT 1,
	UNIQUE (from_card_id, to_card_id)
);
`

var migration004Scenarios = `
CREATE TABLE IF NOT EXISTS pre_stories (
	id TEXT PRIMARY KEY,
	character_id TEXT NOT NULL REFERENCES characters(id),
	pattern TEXT NOT NULL,
	scene_order INTEGER NOT NULL,
	video_url TEXT NOT NULL,
	duration_seconds INTEGER NOT NULL DEFAULT 6
);

CREATE TABLE IF NOT EXISTS chance_scenes (
	id TEXT PRIMARY KEY,
	character_id TEXT NOT NULL REFERENCES characters(id),
	pattern TEXT NOT NULL,
	video_url TEXT NOT NULL,
	duration_seconds INTEGER NOT NULL DEFAULT 6
);

CREATE TABLE IF NOT EXISTS scenarios (
	id TEXT PRIMARY KEY,
	card_id TEXT NOT NULL REFERENCES cards(id),
	phase TEXT NOT NULL,
	scene_order INTEGER NOT NULL,
	video_url TEXT NOT NULL,
	duration_seconds INTEGER NOT NULL DEFAULT 6,
	telop_text TEXT,
	telop_type TEXT
);

CREATE INDEX IF NOT EXISTS idx_scenarios_card ON scenarios(card_id, phase, scene_order);
`

var migration005GachaConfig = `
CREATE TABLE IF NOT EXISTS gacha_config (
	slug TEXT PRIMARY KEY,
	loss_rate DOUBLE PRECISION NOT NULL DEFAULT 0.6,
	title_hint_rate INTEGER NOT NULL DEFAULT 60
);

CREATE TABLE IF NOT EXISTS character_rtp_config (
	character_id TEXT PRIMARY KEY REFERENCES characters(id),
	star_distribution JSONB NOT NULL,
	donden_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	reversal_rates JSONB NOT NULL DEFAULT '{}'
);

INSERT INTO gacha_config (slug) VALUES ('default') ON CONFLICT (slug) DO NOTHING;
`

var migration006GachaResults = `
CREATE TABLE IF NOT EXISTS multi_gacha_sessions (
	id TEXT PRIMARY KEY,
	app_user_id TEXT NOT NULL REFERENCES app_users(id),
	total_pulls INTEGER NOT NULL,
	pulls_completed INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'running',
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS gacha_history (
	id TEXT PRIMARY KEY,
	app_user_id TEXT NOT NULL REFERENCES app_users(id),
	session_id TEXT NOT NULL,
	star_level INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'pending',
	detail TEXT,
	gacha_type TEXT NOT NULL DEFAULT 'single',
	created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS gacha_results (
	id TEXT PRIMARY KEY,
	app_user_id TEXT NOT NULL REFERENCES app_users(id),
	session_id TEXT NOT NULL,
	multi_session_id TEXT REFERENCES multi_gacha_sessions(id),
	character_id TEXT NOT NULL REFERENCES characters(id),
	card_id TEXT NOT NULL REFERENCES cards(id),
	star_level INTEGER NOT NULL DEFAULT 0,
	had_reversal BOOLEAN NOT NULL DEFAULT FALSE,
	card_awarded BOOLEAN NOT NULL DEFAULT FALSE,
	result_snapshot JSONB NOT NULL,
	scenario_snapshot JSONB NOT NULL,
	history_id TEXT NOT NULL REFERENCES gacha_history(id),
	obtained_via TEXT NOT NULL DEFAULT 'single',
	created_at TIMESTAMP NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_gacha_results_pending
	ON gacha_results(created_at) WHERE card_awarded = FALSE;
CREATE INDEX IF NOT EXISTS idx_gacha_results_user_pending
	ON gacha_results(app_user_id) WHERE card_awarded = FALSE;
`

var migration007Inventory = `
CREATE TABLE IF NOT EXISTS card_serials (
	card_id TEXT PRIMARY KEY REFERENCES cards(id),
	last_serial INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS card_inventory (
	id TEXT PRIMARY KEY,
	app_user_id TEXT NOT NULL REFERENCES app_users(id),
	card_id TEXT NOT NULL REFERENCES cards(id),
	serial_number INTEGER NOT NULL,
	gacha_result_id TEXT NOT NULL REFERENCES gacha_results(id),
	obtained_at TIMESTAMP NOT NULL DEFAULT NOW(),
	UNIQUE (card_id, serial_number),
	UNIQUE (gacha_result_id)
);

CREATE INDEX IF NOT EXISTS idx_card_inventory_user ON card_inventory(app_user_id, card_id);
`

var migration008Admin = `
CREATE TABLE IF NOT EXISTS admin_sessions (
	id BIGSERIAL PRIMARY KEY,
	operator TEXT NOT NULL,
	session_token TEXT NOT NULL UNIQUE,
	authenticated_at TIMESTAMP NOT NULL DEFAULT NOW(),
	expires_at TIMESTAMP NOT NULL,
	last_activity TIMESTAMP NOT NULL DEFAULT NOW(),
	is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS admin_login_attempts (
	id BIGSERIAL PRIMARY KEY,
	operator TEXT NOT NULL,
	attempt_time TIMESTAMP NOT NULL DEFAULT NOW(),
	success BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_admin_attempts_operator
	ON admin_login_attempts(operator, attempt_time);
`
