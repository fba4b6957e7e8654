package migrations

import (
	"database/sql"
)

func init() {
	Register(1738392000, "add_sessions_updated_index", func(tx *sql.Tx) error {
		_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_chat_sessions_updated_at ON chat_sessions(updated_at)`)
		return err
	}, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DROP INDEX IF EXISTS idx_chat_sessions_updated_at`)
		return err
	})
}
