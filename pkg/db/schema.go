package db

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    user_name TEXT NOT NULL DEFAULT '',
    full_name TEXT NOT NULL DEFAULT '',
    phone_number TEXT NOT NULL DEFAULT '',
    country TEXT NOT NULL DEFAULT '',
    role TEXT NOT NULL DEFAULT 'user',
    is_verified INTEGER NOT NULL DEFAULT 0,
    verification_code TEXT NOT NULL DEFAULT '',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS balances (
    user_id TEXT NOT NULL,
    currency TEXT NOT NULL,
    amount TEXT NOT NULL DEFAULT '0',
    version INTEGER NOT NULL DEFAULT 0,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (user_id, currency)
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    type TEXT NOT NULL,
    amount TEXT NOT NULL,
    mode TEXT NOT NULL,
    status TEXT NOT NULL,
    proof TEXT NOT NULL DEFAULT '[]',
    plan TEXT NOT NULL DEFAULT '',
    version INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);

CREATE TABLE IF NOT EXISTS bots (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    price TEXT NOT NULL,
    mode TEXT NOT NULL DEFAULT '',
    daily_return_percent TEXT NOT NULL DEFAULT '0',
    duration_days INTEGER NOT NULL DEFAULT 1,
    max_return_percent TEXT NOT NULL DEFAULT '0',
    status TEXT NOT NULL DEFAULT 'active',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS notifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    template TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    message TEXT NOT NULL DEFAULT '',
    meta TEXT NOT NULL DEFAULT '{}',
    is_read INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
`

// columnMigration is an additive column change for older DB files.
type columnMigration struct {
	table, column, definition string
}

var columnMigrations = []columnMigration{
	// Profile fields added after the first release.
	{"users", "country_flag", "TEXT NOT NULL DEFAULT ''"},
	{"users", "profile_picture", "TEXT NOT NULL DEFAULT '[]'"},
	{"users", "verification_code_old", "TEXT NOT NULL DEFAULT ''"},
	// Withdrawal destination and bot purchase metadata.
	{"transactions", "address", "TEXT NOT NULL DEFAULT ''"},
	{"transactions", "bot_id", "TEXT NOT NULL DEFAULT ''"},
	{"transactions", "daily_return_percent", "TEXT NOT NULL DEFAULT '0'"},
	{"transactions", "duration_days", "INTEGER NOT NULL DEFAULT 0"},
	{"transactions", "max_return_percent", "TEXT NOT NULL DEFAULT '0'"},
}

// ApplyMigrations bootstraps the schema; keep lightweight for fast startup.
func ApplyMigrations(d *Database) error {
	if d == nil || d.DB == nil {
		return fmt.Errorf("database is not initialized")
	}
	if _, err := d.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	for _, m := range columnMigrations {
		if err := ensureColumn(d.DB, m.table, m.column, m.definition); err != nil {
			return err
		}
	}
	return nil
}

// ensureColumn adds a column if it does not already exist.
func ensureColumn(db *sqlx.DB, table, column, definition string) error {
	exists, err := columnExists(db, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition)
	if _, err := db.Exec(alter); err != nil {
		return fmt.Errorf("alter table %s add column %s: %w", table, column, err)
	}
	return nil
}

func columnExists(db *sqlx.DB, table, column string) (bool, error) {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return false, fmt.Errorf("pragma table_info(%s): %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

var expectedTables = []string{"users", "balances", "transactions", "bots", "notifications"}

// VerifySchema reports every expected table or migrated column that is
// missing. An empty result means the file is current.
func VerifySchema(d *Database) ([]string, error) {
	var missing []string
	for _, table := range expectedTables {
		var n int
		if err := d.DB.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table); err != nil {
			return nil, fmt.Errorf("lookup table %s: %w", table, err)
		}
		if n == 0 {
			missing = append(missing, table)
		}
	}
	for _, m := range columnMigrations {
		ok, err := columnExists(d.DB, m.table, m.column)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, m.table+"."+m.column)
		}
	}
	return missing, nil
}
