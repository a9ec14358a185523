// Package config provides configuration loading and validation for the CLI.
// Values come from a JSON file, environment variables, and flags, in rising
// precedence. Credentials are never baked in.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds everything a pipeline run needs. Secrets (database URL, API
// keys) are expected from the environment in normal operation; the file form
// exists for local development.
type Config struct {
	// Backing services
	DatabaseURL   string `json:"database_url,omitempty" validate:"required"`
	GeminiAPIKey  string `json:"gemini_api_key,omitempty" validate:"required"`
	WebshareToken string `json:"webshare_token,omitempty"`

	// Campaign platform
	MailchimpAPIKey     string `json:"mailchimp_api_key,omitempty" validate:"required"`
	MailchimpListID     string `json:"mailchimp_list_id,omitempty" validate:"required"`
	MailchimpTemplateID int    `json:"mailchimp_template_id,omitempty" validate:"required"`
	CampaignSubject     string `json:"campaign_subject,omitempty"`
	CampaignFromName    string `json:"campaign_from_name,omitempty"`
	CampaignReplyTo     string `json:"campaign_reply_to,omitempty" validate:"omitempty,email"`

	// Discovery
	IndexURL string `json:"index_url,omitempty" validate:"required,contains=%d"`
	Pages    int    `json:"pages,omitempty" validate:"min=0"`

	// Acquisition
	Workers     int `json:"workers,omitempty" validate:"min=0,max=16"`
	MaxAttempts int `json:"max_attempts,omitempty" validate:"min=0,max=10"`
	// Headful runs visible browser windows, for local debugging. The zero
	// value keeps sessions headless.
	Headful bool `json:"headful,omitempty"`

	// Behavior
	IntervalHours int  `json:"interval_hours,omitempty" validate:"min=0"`
	Verbose       bool `json:"verbose,omitempty"`
}

// Defaults returns the built-in defaults applied before file, environment,
// and flag values.
func Defaults() Config {
	return Config{
		CampaignSubject:  "New business listings matching your preferences",
		CampaignFromName: "Listing Alerts",
		Pages:            3,
		Workers:          1,
		MaxAttempts:      2,
		IntervalHours:    12,
	}
}

// Load reads configuration from a JSON file. Returns an error if the file
// cannot be read or parsed.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv fills empty fields from environment variables.
func (c *Config) ApplyEnv() {
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.WebshareToken, "WEBSHARE_TOKEN")
	setString(&c.MailchimpAPIKey, "MAILCHIMP_API_KEY")
	setString(&c.MailchimpListID, "MAILCHIMP_LIST_ID")
	setInt(&c.MailchimpTemplateID, "MAILCHIMP_TEMPLATE_ID")
	setString(&c.CampaignSubject, "CAMPAIGN_SUBJECT")
	setString(&c.CampaignFromName, "CAMPAIGN_FROM_NAME")
	setString(&c.CampaignReplyTo, "CAMPAIGN_REPLY_TO")
	setString(&c.IndexURL, "INDEX_URL")
}

// MergeWithDefaults returns a copy of c with zero-valued fields filled from
// defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c
	if result.CampaignSubject == "" {
		result.CampaignSubject = defaults.CampaignSubject
	}
	if result.CampaignFromName == "" {
		result.CampaignFromName = defaults.CampaignFromName
	}
	if result.CampaignReplyTo == "" {
		result.CampaignReplyTo = defaults.CampaignReplyTo
	}
	if result.IndexURL == "" {
		result.IndexURL = defaults.IndexURL
	}
	if result.Pages == 0 {
		result.Pages = defaults.Pages
	}
	if result.Workers == 0 {
		result.Workers = defaults.Workers
	}
	if result.MaxAttempts == 0 {
		result.MaxAttempts = defaults.MaxAttempts
	}
	if result.IntervalHours == 0 {
		result.IntervalHours = defaults.IntervalHours
	}
	return result
}

// Validate checks field values and required settings.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			first := errs[0]
			return fmt.Errorf("config error: field %q fails %q", first.Field(), first.Tag())
		}
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// Interval returns the watch-mode cycle interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

func setString(dst *string, key string) {
	if *dst == "" {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

func setInt(dst *int, key string) {
	if *dst == 0 {
		if v := os.Getenv(key); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				*dst = parsed
			}
		}
	}
}
