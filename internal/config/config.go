package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
	// Postgres connection string; usually supplied through DATABASE_URL.
	URL string `yaml:"url,omitempty" env:"DATABASE_URL"`
}

type MembershipConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"-" env:"MEMBERSHIP_API_KEY"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

type EmailConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Region          string `yaml:"region"`
	Sender          string `yaml:"sender"`
	AccessKeyID     string `yaml:"-" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"-" env:"AWS_SECRET_ACCESS_KEY"`
}

type ParticipationTier struct {
	MinPercent int `yaml:"min_percent"`
	Points     int `yaml:"points"`
}

type DeductionConfig struct {
	Amounts      map[string]int `yaml:"amounts"`
	MaxDeduction int            `yaml:"max_deduction"`
	MaxAward     int            `yaml:"max_award"`
}

// DeductionReasons are the reasons that carry a configured deduction amount.
var DeductionReasons = []string{"no_show", "late_withdrawal", "misconduct", "forfeit"}

var defaultDeductionAmounts = map[string]int{
	"no_show":         5,
	"late_withdrawal": 3,
	"misconduct":      10,
	"forfeit":         4,
}

type ScoringConfig struct {
	PlacementPoints    map[int]int         `yaml:"placement_points"`
	PlacementFallback  *int                `yaml:"placement_fallback"`
	ParticipationTiers []ParticipationTier `yaml:"participation_tiers"`
	Deductions         DeductionConfig     `yaml:"deductions"`
}

type JobsConfig struct {
	ParticipationSweep string `yaml:"participation_sweep"`
	RosterSync         string `yaml:"roster_sync"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
		StaticDir   string `yaml:"static_dir"`
		// Region used to parse club phone numbers without a country code.
		PhoneRegion string `yaml:"phone_region"`
		SecretKey   string `yaml:"-" env:"APP_SECRET_KEY"`
	} `yaml:"app"`

	Database   DatabaseConfig   `yaml:"database"`
	Membership MembershipConfig `yaml:"membership"`
	Email      EmailConfig      `yaml:"email"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Jobs       JobsConfig       `yaml:"jobs"`

	Security struct {
		TrustProxy bool `yaml:"trust_proxy"`
	} `yaml:"security"`
}

// Load loads the .env file next to configPath, the YAML config, and then
// overlays secrets from the environment.
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("error parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and fills defaults. It does not read the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.App.StaticDir == "" {
		c.App.StaticDir = "build/bin/static"
	}
	if c.App.PhoneRegion == "" {
		c.App.PhoneRegion = "US"
	}
	if c.Membership.Timeout == 0 {
		c.Membership.Timeout = 10 * time.Second
	}
	if c.Membership.RequestsPerSecond == 0 {
		c.Membership.RequestsPerSecond = 5
	}
	if c.Membership.Burst == 0 {
		c.Membership.Burst = 5
	}
	if len(c.Scoring.PlacementPoints) == 0 {
		c.Scoring.PlacementPoints = map[int]int{1: 10, 2: 7, 3: 5, 5: 3}
	}
	if c.Scoring.PlacementFallback == nil {
		fallback := 1
		c.Scoring.PlacementFallback = &fallback
	}
	if len(c.Scoring.ParticipationTiers) == 0 {
		c.Scoring.ParticipationTiers = []ParticipationTier{
			{MinPercent: 75, Points: 5},
			{MinPercent: 50, Points: 3},
			{MinPercent: 25, Points: 1},
		}
	}
	if c.Scoring.Deductions.Amounts == nil {
		c.Scoring.Deductions.Amounts = make(map[string]int, len(defaultDeductionAmounts))
	}
	for reason, amount := range defaultDeductionAmounts {
		if _, ok := c.Scoring.Deductions.Amounts[reason]; !ok {
			c.Scoring.Deductions.Amounts[reason] = amount
		}
	}
	if c.Scoring.Deductions.MaxDeduction == 0 {
		c.Scoring.Deductions.MaxDeduction = 25
	}
	if c.Scoring.Deductions.MaxAward == 0 {
		c.Scoring.Deductions.MaxAward = 25
	}
	if c.Jobs.ParticipationSweep == "" {
		c.Jobs.ParticipationSweep = "0 3 * * *"
	}
	if c.Jobs.RosterSync == "" {
		c.Jobs.RosterSync = "30 2 * * *"
	}
}

// MembershipEnabled reports whether the legacy membership API is configured.
func (c *Config) MembershipEnabled() bool {
	return strings.TrimSpace(c.Membership.BaseURL) != ""
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.App.SecretKey == "" {
		return fmt.Errorf("APP_SECRET_KEY is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.MembershipEnabled() {
		if _, err := url.ParseRequestURI(c.Membership.BaseURL); err != nil {
			return fmt.Errorf("membership base_url is invalid: %w", err)
		}
		if c.Membership.APIKey == "" {
			return fmt.Errorf("MEMBERSHIP_API_KEY is required when membership base_url is set")
		}
	}

	if c.Email.Enabled {
		if c.Email.Region == "" || c.Email.Sender == "" {
			return fmt.Errorf("email region and sender are required when email is enabled")
		}
		if c.Email.AccessKeyID == "" || c.Email.SecretAccessKey == "" {
			return fmt.Errorf("AWS credentials are required when email is enabled")
		}
	}

	for place, points := range c.Scoring.PlacementPoints {
		if place <= 0 {
			return fmt.Errorf("placement_points place must be positive, got %d", place)
		}
		if points < 0 {
			return fmt.Errorf("placement_points for place %d must not be negative", place)
		}
	}
	seen := make(map[int]struct{}, len(c.Scoring.ParticipationTiers))
	for _, tier := range c.Scoring.ParticipationTiers {
		if tier.MinPercent < 0 || tier.MinPercent > 100 {
			return fmt.Errorf("participation tier min_percent must be between 0 and 100")
		}
		if tier.Points < 0 {
			return fmt.Errorf("participation tier points must not be negative")
		}
		if _, ok := seen[tier.MinPercent]; ok {
			return fmt.Errorf("duplicate participation tier at %d%%", tier.MinPercent)
		}
		seen[tier.MinPercent] = struct{}{}
	}
	if c.Scoring.PlacementFallback != nil && *c.Scoring.PlacementFallback < 0 {
		return fmt.Errorf("placement_fallback must not be negative")
	}
	deductions := c.Scoring.Deductions
	if deductions.MaxDeduction <= 0 || deductions.MaxAward <= 0 {
		return fmt.Errorf("deductions max_deduction and max_award must be positive")
	}
	for _, reason := range DeductionReasons {
		if _, ok := deductions.Amounts[reason]; !ok {
			return fmt.Errorf("deduction amount for %s is required", reason)
		}
	}
	for reason, amount := range deductions.Amounts {
		if !knownDeductionReason(reason) {
			return fmt.Errorf("unknown deduction reason %q", reason)
		}
		if amount <= 0 {
			return fmt.Errorf("deduction amount for %s must be positive", reason)
		}
		if amount > deductions.MaxDeduction {
			return fmt.Errorf("deduction amount for %s exceeds max_deduction %d", reason, deductions.MaxDeduction)
		}
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	for name, expr := range map[string]string{
		"participation_sweep": c.Jobs.ParticipationSweep,
		"roster_sync":         c.Jobs.RosterSync,
	} {
		if _, err := parser.Parse(expr); err != nil {
			return fmt.Errorf("jobs.%s is not a valid cron expression: %w", name, err)
		}
	}

	return nil
}

func knownDeductionReason(reason string) bool {
	for _, known := range DeductionReasons {
		if reason == known {
			return true
		}
	}
	return false
}
