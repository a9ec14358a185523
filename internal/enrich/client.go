// Package enrich normalizes free-text listing fields through an external
// text-classification service. Every operation degrades to raw passthrough
// on failure; enrichment never fails a record.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/trent/listing-alerts/internal/llm"
	"github.com/trent/listing-alerts/internal/prompts"
)

// The service contract admits exactly two response shapes. Anything else is
// treated as a failed classification.
const (
	categorySchema = `{
		"type": "object",
		"required": ["category"],
		"properties": {
			"category": {"type": "array", "items": {"type": "string"}}
		}
	}`
	locationSchema = `{
		"type": "object",
		"required": ["city", "state"],
		"properties": {
			"city": {"type": "string"},
			"state": {"type": "string"}
		}
	}`
)

// Client classifies listing categories and splits location text. Implements
// the acquisition pool's Enricher contract.
type Client struct {
	llm     llm.Client
	verbose bool
}

// NewClient creates an enrichment client on top of the given LLM client.
func NewClient(llmClient llm.Client, verbose bool) *Client {
	return &Client{llm: llmClient, verbose: verbose}
}

// Categorize maps a raw category string onto the controlled vocabulary.
// Labels outside the vocabulary are discarded; when nothing usable remains,
// the single raw category is returned instead. Service errors fall back the
// same way.
func (c *Client) Categorize(ctx context.Context, rawCategory string) []string {
	fallback := func() []string {
		if rawCategory == "" {
			return nil
		}
		return []string{rawCategory}
	}

	prompt := prompts.Format(prompts.MustGet("enrich.json", "categorize-listing"), map[string]string{
		"Categories": strings.Join(Vocabulary, ", "),
		"Input":      rawCategory,
	})

	body, err := c.llm.GenerateJSON(ctx, prompt)
	if err != nil {
		c.logf("categorization failed: %v", err)
		return fallback()
	}
	if err := validateShape(categorySchema, body); err != nil {
		c.logf("categorization response rejected: %v", err)
		return fallback()
	}

	var parsed struct {
		Category []string `json:"category"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		c.logf("categorization response unparseable: %v", err)
		return fallback()
	}

	var valid []string
	for _, label := range parsed.Category {
		if InVocabulary(label) {
			valid = append(valid, label)
		}
	}
	if len(valid) == 0 {
		c.logf("no vocabulary labels in response %v", parsed.Category)
		return fallback()
	}
	return valid
}

// SplitLocation extracts a structured city/state pair from free location
// text. On any failure the raw text is passed through as the city and the
// state is left empty.
func (c *Client) SplitLocation(ctx context.Context, rawLocation string) (string, string) {
	if strings.TrimSpace(rawLocation) == "" {
		return "", ""
	}

	prompt := prompts.Format(prompts.MustGet("enrich.json", "extract-location"), map[string]string{
		"Input": rawLocation,
	})

	body, err := c.llm.GenerateJSON(ctx, prompt)
	if err != nil {
		c.logf("location extraction failed: %v", err)
		return rawLocation, ""
	}
	if err := validateShape(locationSchema, body); err != nil {
		c.logf("location response rejected: %v", err)
		return rawLocation, ""
	}

	var parsed struct {
		City  string `json:"city"`
		State string `json:"state"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		c.logf("location response unparseable: %v", err)
		return rawLocation, ""
	}

	return strings.ToLower(strings.TrimSpace(parsed.City)), strings.ToLower(strings.TrimSpace(parsed.State))
}

// validateShape checks a response document against one of the fixed contract
// schemas.
func validateShape(schema, document string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewStringLoader(document),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		return fmt.Errorf("response does not match contract: %v", result.Errors())
	}
	return nil
}

func (c *Client) logf(format string, args ...any) {
	if c.verbose {
		fmt.Printf("[enrich] "+format+"\n", args...)
	}
}
