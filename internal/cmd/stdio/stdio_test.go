package stdio

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("stdio", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "gridlock.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.ReconcileInterval != 250*time.Millisecond {
		t.Fatalf("expected default reconcile interval 250ms, got %v", cfg.ReconcileInterval)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	fs := flag.NewFlagSet("stdio", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-db", "/tmp/other.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "/tmp/other.db" {
		t.Fatalf("expected db override, got %q", cfg.DBPath)
	}
}
