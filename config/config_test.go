package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"claimflow/outbox"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CLAIMFLOW_CONFIG", "")
	t.Setenv("DATABASE_URL", "")

	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":8080" || c.Store.Driver != "memory" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.Verification.SLA != 72*time.Hour || c.Outbox.MaxAttempts != 8 {
		t.Fatalf("unexpected durations or limits: %+v", c)
	}
	state, federal, err := c.Tax.DefaultRates()
	if err != nil || state.String() != "0.02" || federal.String() != "0.006" {
		t.Fatalf("default rates = %s %s %v", state, federal, err)
	}
	if len(c.Notify.Routes()) != 0 {
		t.Fatalf("no endpoints configured, routes must be empty")
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "claimflow.yaml")
	raw := `
server:
  addr: ":9090"
store:
  driver: postgres
database:
  url: postgres://file/claims
verification:
  sla: 48h
outbox:
  workers: 4
notify:
  claims_url: http://claims.local/events
  employer_url: http://employers.local/verify
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CLAIMFLOW_OUTBOX_WORKERS", "6")
	t.Setenv("CLAIMFLOW_LOG_LEVEL", "debug")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Server.Addr != ":9090" || c.Database.URL != "postgres://file/claims" {
		t.Fatalf("file values not applied: %+v", c)
	}
	if c.Verification.SLA != 48*time.Hour {
		t.Fatalf("sla = %s", c.Verification.SLA)
	}
	if c.Outbox.Workers != 6 || c.Log.Level != "debug" {
		t.Fatalf("env overrides not applied: workers=%d level=%s", c.Outbox.Workers, c.Log.Level)
	}

	routes := c.Notify.Routes()
	if routes[outbox.TopicVerificationRequested] != "http://employers.local/verify" ||
		routes[outbox.TopicTaxCalculated] != "http://claims.local/events" ||
		routes[outbox.TopicClaimStatusChanged] != "http://claims.local/events" {
		t.Fatalf("unexpected routes: %v", routes)
	}
}

func TestLoad_DatabaseURLFallback(t *testing.T) {
	t.Setenv("CLAIMFLOW_CONFIG", "")
	t.Setenv("CLAIMFLOW_STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://env/claims")

	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Database.URL != "postgres://env/claims" {
		t.Fatalf("database url = %q", c.Database.URL)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("CLAIMFLOW_CONFIG", "")
	t.Setenv("DATABASE_URL", "")
	base, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cases := map[string]func(*Config){
		"unknown driver":       func(c *Config) { c.Store.Driver = "sqlite" },
		"postgres without url": func(c *Config) { c.Store.Driver = "postgres"; c.Database.URL = "" },
		"bad rate":             func(c *Config) { c.Tax.DefaultStateRate = "two percent" },
		"no workers":           func(c *Config) { c.Outbox.Workers = 0 },
		"zero sla":             func(c *Config) { c.Verification.SLA = 0 },
	}
	for name, mutate := range cases {
		c := base
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
