package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"claimflow/outbox"
)

// Config holds application configuration.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Store        StoreConfig        `mapstructure:"store"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Log          LogConfig          `mapstructure:"log"`
	Workflow     WorkflowConfig     `mapstructure:"workflow"`
	Verification VerificationConfig `mapstructure:"verification"`
	Tax          TaxConfig          `mapstructure:"tax"`
	Outbox       OutboxConfig       `mapstructure:"outbox"`
	Notify       NotifyConfig       `mapstructure:"notify"`
	Employers    EmployersConfig    `mapstructure:"employers"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// StoreConfig selects the persistence backend: "memory" or "postgres".
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type DatabaseConfig struct {
	URL          string        `mapstructure:"url"`
	MaxConns     int32         `mapstructure:"max_conns"`
	ConnectTries uint64        `mapstructure:"connect_tries"`
	ApplySchema  bool          `mapstructure:"apply_schema"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type WorkflowConfig struct {
	AutoRequestVerification bool `mapstructure:"auto_request_verification"`
	AutoCalculateTax        bool `mapstructure:"auto_calculate_tax"`
}

type VerificationConfig struct {
	SLA           time.Duration `mapstructure:"sla"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type TaxConfig struct {
	DefaultStateRate   string `mapstructure:"default_state_rate"`
	DefaultFederalRate string `mapstructure:"default_federal_rate"`
	CalculatedBy       string `mapstructure:"calculated_by"`
}

type OutboxConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	Workers        int           `mapstructure:"workers"`
	Lease          time.Duration `mapstructure:"lease"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// NotifyConfig holds the downstream endpoints. An empty URL disables delivery
// for the topics routed to it.
type NotifyConfig struct {
	ClaimsURL    string        `mapstructure:"claims_url"`
	EmployerURL  string        `mapstructure:"employer_url"`
	TaxURL       string        `mapstructure:"tax_url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SourceSystem string        `mapstructure:"source_system"`
}

type EmployersConfig struct {
	File string `mapstructure:"file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.connect_tries", 5)
	v.SetDefault("database.apply_schema", true)
	v.SetDefault("database.timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("workflow.auto_request_verification", true)
	v.SetDefault("workflow.auto_calculate_tax", true)
	v.SetDefault("verification.sla", 72*time.Hour)
	v.SetDefault("verification.sweep_interval", time.Hour)
	v.SetDefault("tax.default_state_rate", "0.02")
	v.SetDefault("tax.default_federal_rate", "0.006")
	v.SetDefault("tax.calculated_by", "tax-services")
	v.SetDefault("outbox.poll_interval", time.Second)
	v.SetDefault("outbox.batch_size", 20)
	v.SetDefault("outbox.max_attempts", 8)
	v.SetDefault("outbox.workers", 2)
	v.SetDefault("outbox.lease", 30*time.Second)
	v.SetDefault("outbox.initial_backoff", time.Second)
	v.SetDefault("outbox.max_backoff", 5*time.Minute)
	v.SetDefault("notify.claims_url", "")
	v.SetDefault("notify.employer_url", "")
	v.SetDefault("notify.tax_url", "")
	v.SetDefault("notify.timeout", 5*time.Second)
	v.SetDefault("notify.source_system", "claimflow")
	v.SetDefault("employers.file", "")
}

// Load reads configuration from defaults, an optional YAML file and the
// environment. Env var overrides use prefix CLAIMFLOW_; DATABASE_URL is honored
// when CLAIMFLOW_DATABASE_URL is unset. An empty path falls back to CLAIMFLOW_CONFIG.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path == "" {
		path = os.Getenv("CLAIMFLOW_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("CLAIMFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if c.Database.URL == "" {
		c.Database.URL = os.Getenv("DATABASE_URL")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the application cannot start with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("config: database.url is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}

	if _, _, err := c.Tax.DefaultRates(); err != nil {
		return err
	}
	if c.Outbox.Workers < 1 || c.Outbox.BatchSize < 1 || c.Outbox.MaxAttempts < 1 {
		return fmt.Errorf("config: outbox workers, batch_size and max_attempts must be positive")
	}
	if c.Verification.SLA <= 0 {
		return fmt.Errorf("config: verification.sla must be positive")
	}
	return nil
}

// DefaultRates parses the seeded tax rates.
func (t TaxConfig) DefaultRates() (state, federal decimal.Decimal, err error) {
	if state, err = decimal.NewFromString(t.DefaultStateRate); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("config: tax.default_state_rate: %w", err)
	}
	if federal, err = decimal.NewFromString(t.DefaultFederalRate); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("config: tax.default_federal_rate: %w", err)
	}
	return state, federal, nil
}

// Routes maps outbox topics to the configured endpoints. Topics whose endpoint
// is empty are left out.
func (n NotifyConfig) Routes() map[string]string {
	routes := map[string]string{
		outbox.TopicClaimStatusChanged:    n.ClaimsURL,
		outbox.TopicVerificationCompleted: n.ClaimsURL,
		outbox.TopicVerificationRequested: n.EmployerURL,
		outbox.TopicTaxCalculated:         n.ClaimsURL,
	}
	if n.TaxURL != "" {
		routes[outbox.TopicTaxCalculated] = n.TaxURL
	}
	for topic, url := range routes {
		if url == "" {
			delete(routes, topic)
		}
	}
	return routes
}
