package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestParsePoolConfig(t *testing.T) {
	cfg := Config{URL: "postgres://ledger:secret@db:5433/fidalex?sslmode=disable"}.WithDefaults()
	pc, err := ParsePoolConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if pc.ConnConfig.Host != "db" || pc.ConnConfig.Port != 5433 || pc.ConnConfig.Database != "fidalex" {
		t.Fatalf("unexpected conn config: host=%s port=%d db=%s", pc.ConnConfig.Host, pc.ConnConfig.Port, pc.ConnConfig.Database)
	}
	if pc.MaxConns != 20 || pc.MinConns != 2 || pc.MaxConnIdleTime != 5*time.Minute {
		t.Fatalf("defaults not applied: max=%d min=%d idle=%s", pc.MaxConns, pc.MinConns, pc.MaxConnIdleTime)
	}

	if _, err := ParsePoolConfig(Config{URL: "postgres://%zz"}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("insert: %w", &pgconn.PgError{Code: UniqueViolation, ConstraintName: "accounts_external_account_id_key"})

	if !IsUniqueViolation(dup, "") {
		t.Fatalf("wrapped unique violation not detected")
	}
	if !IsUniqueViolation(dup, "accounts_external_account_id_key") {
		t.Fatalf("constraint name not matched")
	}
	if IsUniqueViolation(dup, "transactions_reference_key") {
		t.Fatalf("wrong constraint matched")
	}
	if IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "") {
		t.Fatalf("fk violation treated as unique violation")
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Fatalf("plain error treated as unique violation")
	}
}
