package notify

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/trent/listing-alerts/internal/types"
)

// MatchGroup is a set of subscribers who matched exactly the same listings.
// One campaign is sent per group.
type MatchGroup struct {
	Key      string
	Emails   []string
	Listings []*types.ListingRecord
}

// GroupByMatches partitions matched subscribers by their exact listing set.
// Output is deterministic: groups sorted by key, emails sorted within each
// group, listings sorted by key within each group.
func GroupByMatches(matched map[string][]*types.ListingRecord) []MatchGroup {
	byKey := make(map[string]*MatchGroup)
	for email, listings := range matched {
		if len(listings) == 0 {
			continue
		}
		key := groupKey(listings)
		group, ok := byKey[key]
		if !ok {
			sorted := make([]*types.ListingRecord, len(listings))
			copy(sorted, listings)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key() < sorted[j].Key() })
			group = &MatchGroup{Key: key, Listings: sorted}
			byKey[key] = group
		}
		group.Emails = append(group.Emails, email)
	}

	groups := make([]MatchGroup, 0, len(byKey))
	for _, g := range byKey {
		sort.Strings(g.Emails)
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

// groupKey derives a stable identifier from the set of listing keys,
// independent of order.
func groupKey(listings []*types.ListingRecord) string {
	keys := make([]string, 0, len(listings))
	for _, l := range listings {
		keys = append(keys, l.Key())
	}
	sort.Strings(keys)
	sum := sha256.Sum256([]byte(strings.Join(keys, "|")))
	return hex.EncodeToString(sum[:])[:12]
}
