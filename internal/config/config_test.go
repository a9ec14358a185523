package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Config{
		DatabaseURL:         "postgres://localhost/alerts",
		GeminiAPIKey:        "test-key",
		MailchimpAPIKey:     "abc-us21",
		MailchimpListID:     "list-1",
		MailchimpTemplateID: 42,
		IndexURL:            "https://example.com/businesses-for-sale/%d",
	}
	return cfg.MergeWithDefaults(Defaults())
}

func TestLoad_ValidJSON(t *testing.T) {
	content := `{
		"database_url": "postgres://localhost/alerts",
		"index_url": "https://example.com/page/%d",
		"pages": 5,
		"verbose": true
	}`
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := Load(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/alerts", cfg.DatabaseURL)
	assert.Equal(t, 5, cfg.Pages)
	assert.True(t, cfg.Verbose)
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(`{not json`), 0644))

	_, err := Load(tmpFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{Pages: 7}
	merged := cfg.MergeWithDefaults(Defaults())

	assert.Equal(t, 7, merged.Pages)
	assert.Equal(t, 1, merged.Workers)
	assert.Equal(t, 2, merged.MaxAttempts)
	assert.Equal(t, 12, merged.IntervalHours)
	assert.NotEmpty(t, merged.CampaignSubject)
}

func TestValidate_RequiredFields(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	missing := cfg
	missing.DatabaseURL = ""
	err := missing.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DatabaseURL")
}

func TestValidate_IndexURLNeedsPagePlaceholder(t *testing.T) {
	cfg := validConfig()
	cfg.IndexURL = "https://example.com/businesses-for-sale/"
	require.Error(t, cfg.Validate())
}

func TestValidate_WorkerBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Workers = 99
	require.Error(t, cfg.Validate())
}

func TestLoad_HeadfulFlag(t *testing.T) {
	content := `{"headful": true}`
	tmpFile := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))

	cfg, err := Load(tmpFile)
	require.NoError(t, err)
	assert.True(t, cfg.Headful)

	// Sessions stay headless unless explicitly switched.
	assert.False(t, (&Config{}).MergeWithDefaults(Defaults()).Headful)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/alerts")
	t.Setenv("MAILCHIMP_TEMPLATE_ID", "17")

	cfg := Config{}
	cfg.ApplyEnv()
	assert.Equal(t, "postgres://env/alerts", cfg.DatabaseURL)
	assert.Equal(t, 17, cfg.MailchimpTemplateID)

	// Explicit values win over the environment.
	cfg = Config{DatabaseURL: "postgres://file/alerts"}
	cfg.ApplyEnv()
	assert.Equal(t, "postgres://file/alerts", cfg.DatabaseURL)
}

func TestInterval(t *testing.T) {
	cfg := Config{IntervalHours: 12}
	assert.Equal(t, 12*time.Hour, cfg.Interval())
}
