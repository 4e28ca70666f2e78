package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// One-shot maintenance command: removes verified rows and rows whose
// code expired more than the retention window ago. Active cycles are
// never touched. Intended to run from cron.
func main() {
	host := envOr("DATABASE_HOST", "localhost")
	port := envOr("DATABASE_PORT", "5432")
	user := envOr("DATABASE_USER", "postgres")
	password := os.Getenv("DATABASE_PASSWORD")
	dbname := envOr("DATABASE_DBNAME", "dripster_db")
	sslmode := envOr("DATABASE_SSLMODE", "disable")

	retention := 24 * time.Hour
	if v := os.Getenv("PURGE_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("Invalid PURGE_RETENTION %q: %v", v, err)
		}
		retention = d
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal(err)
	}

	cutoff := time.Now().Add(-retention)
	fmt.Printf("Purging verified rows and rows expired before %s...\n", cutoff.Format(time.RFC3339))

	res, err := db.Exec(
		`DELETE FROM email_verifications WHERE verified = true OR expires_at < $1`,
		cutoff,
	)
	if err != nil {
		log.Fatalf("Failed to purge verifications: %v", err)
	}

	affected, _ := res.RowsAffected()
	fmt.Printf("Success! Removed %d stale verification rows.\n", affected)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
