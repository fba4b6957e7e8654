// Package migrations holds the versioned schema of the local session database
package migrations

import (
	"database/sql"
	"fmt"
	"log"
	"sort"
)

// Migration is one schema step. Up and Down run inside a transaction.
type Migration struct {
	Version int
	Name    string
	Up      func(tx *sql.Tx) error
	Down    func(tx *sql.Tx) error
}

var registry []Migration

// Register adds a migration; called from init in each migration file
func Register(version int, name string, up, down func(tx *sql.Tx) error) {
	registry = append(registry, Migration{Version: version, Name: name, Up: up, Down: down})
	sort.Slice(registry, func(i, j int) bool { return registry[i].Version < registry[j].Version })
}

// All returns the registered migrations in version order
func All() []Migration {
	out := make([]Migration, len(registry))
	copy(out, registry)
	return out
}

// Version reads the schema version stored in PRAGMA user_version
func Version(db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// Apply runs every migration newer than the stored version. Running it again
// is a no-op.
func Apply(db *sql.DB) error {
	current, err := Version(db)
	if err != nil {
		return err
	}

	for _, m := range registry {
		if m.Version <= current {
			continue
		}
		log.Printf("🔄 Applying migration %d_%s", m.Version, m.Name)
		if err := run(db, m.Version, m.Up); err != nil {
			return fmt.Errorf("migration %d_%s failed: %w", m.Version, m.Name, err)
		}
		current = m.Version
	}
	return nil
}

// Rollback reverts the most recently applied migration
func Rollback(db *sql.DB) error {
	current, err := Version(db)
	if err != nil {
		return err
	}

	for i := len(registry) - 1; i >= 0; i-- {
		m := registry[i]
		if m.Version != current {
			continue
		}
		previous := 0
		if i > 0 {
			previous = registry[i-1].Version
		}
		log.Printf("🔄 Reverting migration %d_%s", m.Version, m.Name)
		if err := run(db, previous, m.Down); err != nil {
			return fmt.Errorf("rollback %d_%s failed: %w", m.Version, m.Name, err)
		}
		return nil
	}
	return nil
}

func run(db *sql.DB, version int, step func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := step(tx); err != nil {
		tx.Rollback()
		return err
	}
	// PRAGMA does not accept bind parameters
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
