package notify

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/trent/listing-alerts/internal/types"
)

// TemplatePlaceholder is the marker in the campaign template that gets
// replaced with the rendered listings block.
const TemplatePlaceholder = "*|TEMP_HTML|*"

const descriptionLimit = 300

// RenderListingsHTML builds the listings block injected into the campaign
// template. Descriptions are truncated so cards stay uniform.
func RenderListingsHTML(listings []*types.ListingRecord) string {
	if len(listings) == 0 {
		return `<p>No new listings matched your preferences this week. We'll keep looking.</p>`
	}

	var b strings.Builder
	for _, l := range listings {
		b.WriteString(`<div style="margin-bottom:24px;padding:16px;border:1px solid #e0e0e0;border-radius:8px;">`)
		fmt.Fprintf(&b, `<h3 style="margin:0 0 8px;"><a href="%s">%s</a></h3>`,
			html.EscapeString(l.URL), html.EscapeString(l.Title))
		if loc := formatLocation(l.City, l.State); loc != "" {
			fmt.Fprintf(&b, `<p style="margin:0 0 4px;color:#666;">%s</p>`, html.EscapeString(loc))
		}
		if l.AskingPrice != "" {
			fmt.Fprintf(&b, `<p style="margin:0 0 4px;"><strong>Asking Price:</strong> %s</p>`, html.EscapeString(l.AskingPrice))
		}
		if l.Cashflow != "" {
			fmt.Fprintf(&b, `<p style="margin:0 0 4px;"><strong>Cash Flow:</strong> %s</p>`, html.EscapeString(l.Cashflow))
		}
		if l.Description != "" {
			fmt.Fprintf(&b, `<p style="margin:8px 0 0;">%s</p>`, html.EscapeString(truncate(l.Description, descriptionLimit)))
		}
		b.WriteString(`</div>`)
	}
	return b.String()
}

// formatLocation joins city and state as "City, State" in title case,
// skipping whichever part is empty.
func formatLocation(city, state string) string {
	parts := make([]string, 0, 2)
	if city != "" {
		parts = append(parts, titleCase(city))
	}
	if state != "" {
		parts = append(parts, titleCase(state))
	}
	return strings.Join(parts, ", ")
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = strings.ToUpper(string(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// truncate cuts s at limit runes, appending an ellipsis when cut.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + "..."
}
