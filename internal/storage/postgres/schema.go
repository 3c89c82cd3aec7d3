package postgres

// Same layout as the SQLite schema; timestamps are epoch milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS sources (
    id BIGSERIAL PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',
    last_scanned BIGINT
);

CREATE TABLE IF NOT EXISTS flashcards (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    front TEXT NOT NULL,
    back TEXT NOT NULL DEFAULT '',
    context TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    review_count INTEGER NOT NULL DEFAULT 0,
    ease_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
    interval_days INTEGER NOT NULL DEFAULT 0,
    next_review_date BIGINT NOT NULL,
    last_review_date BIGINT,
    quality INTEGER,
    source_id BIGINT REFERENCES sources(id)
);

CREATE INDEX IF NOT EXISTS flashcards_next_review_idx ON flashcards(next_review_date);
CREATE INDEX IF NOT EXISTS flashcards_source_idx ON flashcards(source_id);

CREATE TABLE IF NOT EXISTS review_logs (
    id TEXT PRIMARY KEY,
    card_id TEXT NOT NULL REFERENCES flashcards(id),
    seq BIGSERIAL,
    quality INTEGER NOT NULL,
    reviewed_at BIGINT NOT NULL,
    prev_interval INTEGER NOT NULL,
    prev_ease DOUBLE PRECISION NOT NULL,
    interval_days INTEGER NOT NULL,
    ease_factor DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS review_logs_card_idx ON review_logs(card_id, reviewed_at);
`
