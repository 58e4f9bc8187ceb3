package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/claimsight/claimsight/internal/config"
	"github.com/claimsight/claimsight/internal/db"
)

// OpenTestDB connects to the integration test database. Tests that
// call it are skipped unless TEST_DB_HOST is set (the database needs
// the pgvector extension available).
func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "claimsight",
		Password: "claimsight_pass",
		DBName:   "claimsight_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn, 768); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return conn, func() {
		_ = conn.Close()
	}
}

// TestEmbedding returns a deterministic 768-dim vector seeded by n.
func TestEmbedding(n int) []float32 {
	embedding := make([]float32, 768)
	for i := range embedding {
		embedding[i] = float32((i+n)%13) / 13.0
	}
	return embedding
}
