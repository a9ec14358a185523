package types

// SubscriberProfile holds one subscriber's notification preferences as
// supplied by the campaign platform's audience merge fields. Nil price
// bounds and empty slices mean "no constraint". List values are stored
// lower-cased so matching is case-insensitive.
type SubscriberProfile struct {
	Email      string
	MinPrice   *float64
	MaxPrice   *float64
	Industries []string
	States     []string
	Cities     []string
}
