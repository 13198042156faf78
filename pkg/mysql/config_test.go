package mysql

import (
	"testing"
	"time"
)

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 3307, User: "ledger", Password: "secret", DBName: "fidalex"}
	want := "ledger:secret@tcp(db:3307)/fidalex?charset=utf8mb4&loc=UTC&parseTime=True"
	if got := cfg.DSN(); got != want {
		t.Fatalf("DSN()=%q want %q", got, want)
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{Host: "db", MaxOpenConns: 5}.WithDefaults()
	if cfg.Port != 3306 || cfg.MaxOpenConns != 5 || cfg.MaxIdleConns != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.ConnMaxLifetime != time.Hour || cfg.RetryInterval != 2*time.Second || cfg.LogLevel != "error" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
