package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// IMPORTANT: users and grocers must be created BEFORE allocations due to
// foreign key constraints.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role TEXT NOT NULL DEFAULT 'user',
    available_points INTEGER NOT NULL DEFAULT 0 CHECK (available_points >= 0),
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS grocers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    location TEXT NOT NULL,
    received_points INTEGER NOT NULL DEFAULT 0 CHECK (received_points >= 0),
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS allocations (
    user_id TEXT NOT NULL,
    grocer_id TEXT NOT NULL,
    points INTEGER NOT NULL CHECK (points > 0),
    grocer_name TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (user_id, grocer_id),
    FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
    FOREIGN KEY (grocer_id) REFERENCES grocers(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_allocations_grocer_id ON allocations(grocer_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
