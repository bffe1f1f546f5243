package db

// SchemaSQL creates every table. Safe to run on each start.
const SchemaSQL = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    username      TEXT NOT NULL UNIQUE,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    display_name  TEXT NOT NULL,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS lesson_progress (
    user_id       INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    lesson_id     TEXT NOT NULL,
    status        TEXT NOT NULL DEFAULT 'available',
    best_mistakes INTEGER,
    attempts      INTEGER DEFAULT 0,
    last_accessed DATETIME,
    completed_at  DATETIME,
    PRIMARY KEY (user_id, lesson_id)
);

CREATE TABLE IF NOT EXISTS practice_attempts (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id     INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    lesson_id   TEXT NOT NULL,
    practice_id TEXT NOT NULL,
    session_id  TEXT NOT NULL,
    total_steps INTEGER NOT NULL,
    mistakes    INTEGER NOT NULL,
    first_try   INTEGER NOT NULL,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_practice_attempts_user_lesson
    ON practice_attempts (user_id, lesson_id);
`
