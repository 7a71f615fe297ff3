// Package pricing turns a detected reference price into the customer-facing
// premium and normal-tier quotes.
package pricing

import "math"

// Status is the routing decision attached to a quote.
type Status string

const (
	StatusFastTrack Status = "FAST_TRACK"
	StatusVIPReview Status = "VIP_REVIEW"
)

// Rules holds the pricing constants.
type Rules struct {
	Multiplier float64
	FloorUSD   float64
	CeilingUSD float64

	NormalMultiplier float64
	NormalFloorUSD   float64
}

// DefaultRules are the production constants.
var DefaultRules = Rules{
	Multiplier:       0.25,
	FloorUSD:         135,
	CeilingUSD:       379,
	NormalMultiplier: 0.65,
	NormalFloorUSD:   90,
}

// Quote is the premium-tier result.
type Quote struct {
	QuoteUSD int    `json:"quote_usd"`
	Status   Status `json:"status"`
	// Capped is true when the clamp changed the rounded raw value.
	Capped bool `json:"capped"`
}

// ComputeQuote applies round(clamp(msrp * multiplier, floor, ceiling)).
// Every computed quote is routed FAST_TRACK. Non-finite or negative input is
// treated as zero and lands on the floor.
func (r Rules) ComputeQuote(msrpUSD float64) Quote {
	msrp := sanitize(msrpUSD)
	raw := msrp * r.Multiplier
	clamped := math.Min(r.CeilingUSD, math.Max(r.FloorUSD, raw))
	quote := int(math.Round(clamped))

	return Quote{
		QuoteUSD: quote,
		Status:   StatusFastTrack,
		Capped:   quote != int(math.Round(raw)),
	}
}

// ComputeNormalQuote derives the discounted tier from a premium quote:
// round(max(normalFloor, premium * normalMultiplier)).
func (r Rules) ComputeNormalQuote(premiumUSD float64) int {
	premium := sanitize(premiumUSD)
	return int(math.Round(math.Max(r.NormalFloorUSD, premium*r.NormalMultiplier)))
}

// ComputeQuote uses DefaultRules.
func ComputeQuote(msrpUSD float64) Quote {
	return DefaultRules.ComputeQuote(msrpUSD)
}

// ComputeNormalQuote uses DefaultRules.
func ComputeNormalQuote(premiumUSD float64) int {
	return DefaultRules.ComputeNormalQuote(premiumUSD)
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
