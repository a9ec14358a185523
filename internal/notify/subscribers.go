// Package notify matches stored listings against subscriber preferences and
// delivers grouped email campaigns through the mailing platform.
package notify

import (
	"fmt"
	"strings"

	"github.com/trent/listing-alerts/internal/mailchimp"
	"github.com/trent/listing-alerts/internal/types"
)

// Merge field tags carrying subscriber preferences in the audience.
const (
	fieldMinPrice   = "DPR_MIN"
	fieldMaxPrice   = "DPR_MAX"
	fieldIndustries = "INDUSTRIES"
	fieldStates     = "STATES"
	fieldCities     = "CITIES"
)

// ParseSubscriber converts an audience member's merge fields into a profile.
// Absent or blank fields become nil, meaning the subscriber has no
// constraint on that dimension.
func ParseSubscriber(m mailchimp.Member) types.SubscriberProfile {
	return types.SubscriberProfile{
		Email:      m.Email,
		MinPrice:   parseBound(m.MergeFields[fieldMinPrice]),
		MaxPrice:   parseBound(m.MergeFields[fieldMaxPrice]),
		Industries: splitList(mergeString(m.MergeFields[fieldIndustries])),
		States:     splitList(mergeString(m.MergeFields[fieldStates])),
		Cities:     splitList(mergeString(m.MergeFields[fieldCities])),
	}
}

// parseBound reads a price bound that the platform may deliver as a number
// or as formatted text.
func parseBound(v any) *float64 {
	switch val := v.(type) {
	case float64:
		return &val
	case string:
		if parsed, ok := types.ParsePrice(val); ok {
			return &parsed
		}
	}
	return nil
}

func mergeString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// splitList parses a comma-separated preference list into lowercased terms.
// Non-breaking spaces appear in fields edited through the platform UI and
// are treated as ordinary whitespace.
func splitList(raw string) []string {
	raw = strings.ReplaceAll(raw, "\u00a0", " ")
	var terms []string
	for _, part := range strings.Split(raw, ",") {
		term := strings.ToLower(strings.TrimSpace(part))
		if term != "" {
			terms = append(terms, term)
		}
	}
	return terms
}
