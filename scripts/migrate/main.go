package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"hr-attendance-bot/migrations"
)

const defaultSessionDBPath = "hrbot.db"

type Migrator struct {
	path string
	db   *sql.DB
}

func loadEnv() {
	// Try project root first, then the scripts directory layout
	for _, path := range []string{".env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			log.Printf("📝 Loaded %s", path)
			return
		}
	}
	log.Println("⚠️  Warning: no .env file found, using environment only")
}

func NewMigrator() *Migrator {
	loadEnv()

	path := os.Getenv("SESSION_DB_PATH")
	if path == "" {
		path = defaultSessionDBPath
	}
	return &Migrator{path: path}
}

func (m *Migrator) open() error {
	log.Printf("🔍 Opening session database %s...", m.path)

	db, err := sql.Open("sqlite", m.path)
	if err != nil {
		return fmt.Errorf("cannot open session database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("cannot connect to session database: %w", err)
	}

	m.db = db
	log.Println("✅ Database is reachable")
	return nil
}

func (m *Migrator) status() error {
	version, err := migrations.Version(m.db)
	if err != nil {
		return err
	}

	log.Printf("📖 Schema version: %d", version)
	for _, mig := range migrations.All() {
		mark := "⬜"
		if mig.Version <= version {
			mark = "✅"
		}
		log.Printf("   %s %d_%s", mark, mig.Version, mig.Name)
	}
	return nil
}

func (m *Migrator) Run(rollback bool) error {
	log.Println("🔧 Session Database Migration")
	log.Println("==================================================")

	if err := m.open(); err != nil {
		return err
	}
	defer m.db.Close()

	if err := m.status(); err != nil {
		return err
	}

	if rollback {
		if err := migrations.Rollback(m.db); err != nil {
			return err
		}
	} else {
		if err := migrations.Apply(m.db); err != nil {
			return err
		}
	}

	log.Println("\n🧪 Verifying migration...")
	if err := m.status(); err != nil {
		return err
	}

	log.Println("\n🎉 Migration finished successfully!")
	return nil
}

func main() {
	rollback := flag.Bool("rollback", false, "revert the most recent migration")
	flag.Parse()

	migrator := NewMigrator()

	if err := migrator.Run(*rollback); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
}
