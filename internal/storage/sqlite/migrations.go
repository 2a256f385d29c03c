package sqlite

import "database/sql"

// migrations contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
//
// Amount columns are TEXT holding canonical decimal strings; the store
// never does arithmetic in SQL, so settlement math stays exact to the
// smallest currency unit.
//
// operation_log.expense_id carries no foreign key on purpose: it is a
// weak reference and an audit row must remain resolvable even if the
// expense it points at is long cancelled.
const schema = `
CREATE TABLE IF NOT EXISTS expenses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    description TEXT NOT NULL,
    total_amount TEXT NOT NULL,
    creator_username TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    is_cancelled INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS obligations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    expense_id INTEGER NOT NULL,
    debtor_username TEXT NOT NULL,
    creditor_username TEXT NOT NULL,
    amount TEXT NOT NULL,
    settled_amount TEXT NOT NULL DEFAULT '0',
    created_at INTEGER NOT NULL,
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS operation_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    expense_id INTEGER,
    operation_type TEXT NOT NULL,
    username TEXT NOT NULL,
    description TEXT NOT NULL,
    amount TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_obligations_pair ON obligations(creditor_username, debtor_username);
CREATE INDEX IF NOT EXISTS idx_obligations_expense_id ON obligations(expense_id);
CREATE INDEX IF NOT EXISTS idx_expenses_description ON expenses(description);
CREATE INDEX IF NOT EXISTS idx_operation_log_expense_id ON operation_log(expense_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
