package notify

import (
	"strings"

	"github.com/trent/listing-alerts/internal/types"
)

// Matches reports whether a listing satisfies every constraint a subscriber
// set. A dimension left empty imposes no constraint. Price bounds only apply
// when the listing carries a parseable price.
func Matches(sub types.SubscriberProfile, rec *types.ListingRecord) bool {
	if price, ok := types.ParsePrice(rec.AskingPrice); ok {
		if sub.MinPrice != nil && price < *sub.MinPrice {
			return false
		}
		if sub.MaxPrice != nil && price > *sub.MaxPrice {
			return false
		}
	}

	if len(sub.Industries) > 0 && !anyCategoryMatch(sub.Industries, rec.Categories) {
		return false
	}
	if len(sub.States) > 0 && !containsFold(sub.States, rec.State) {
		return false
	}
	if len(sub.Cities) > 0 && !containsFold(sub.Cities, rec.City) {
		return false
	}
	return true
}

// MatchSubscribers returns, per subscriber, the listings that satisfy their
// preferences. Subscribers with no matches are omitted.
func MatchSubscribers(subs []types.SubscriberProfile, recs []*types.ListingRecord) map[string][]*types.ListingRecord {
	matched := make(map[string][]*types.ListingRecord)
	for _, sub := range subs {
		for _, rec := range recs {
			if Matches(sub, rec) {
				matched[sub.Email] = append(matched[sub.Email], rec)
			}
		}
	}
	return matched
}

// anyCategoryMatch reports whether any subscriber industry term appears in
// the listing's categories, case-insensitively.
func anyCategoryMatch(terms []string, categories []string) bool {
	for _, cat := range categories {
		if containsFold(terms, cat) {
			return true
		}
	}
	return false
}

// containsFold reports whether terms (already lowercased) contains value,
// ignoring case and surrounding whitespace on value.
func containsFold(terms []string, value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return false
	}
	for _, t := range terms {
		if t == value {
			return true
		}
	}
	return false
}
