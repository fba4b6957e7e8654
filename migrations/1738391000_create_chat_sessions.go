package migrations

import (
	"database/sql"
)

func init() {
	Register(1738391000, "create_chat_sessions", func(tx *sql.Tx) error {
		_, err := tx.Exec(`CREATE TABLE IF NOT EXISTS chat_sessions (
			chat_id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			access_token TEXT NOT NULL DEFAULT '',
			token_type TEXT NOT NULL DEFAULT 'Bearer',
			device_id TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		)`)
		return err
	}, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DROP TABLE IF EXISTS chat_sessions`)
		return err
	})
}
