package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CanonicalItem is the deduplicated identity for a purchasable item.
type CanonicalItem struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Tags        []string  `json:"tags"`
	DefaultUnit string    `json:"default_unit,omitempty"`
	Synonyms    []string  `json:"synonyms"`
	CreatedAt   time.Time `json:"created_at"`
}

// ItemAlias binds a normalized raw item name to a canonical item.
// Once written, a binding is never revised automatically.
type ItemAlias struct {
	RawNormalized   string    `json:"raw_normalized"`
	CanonicalItemID uuid.UUID `json:"canonical_item_id"`
	Confidence      float64   `json:"confidence"`
	CreatedAt       time.Time `json:"created_at"`
}

// NormalizeRawName is the alias lookup key for a raw item name.
func NormalizeRawName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Purchase is a normalized purchase record from an ingestion collaborator.
type Purchase struct {
	ID          uuid.UUID  `json:"id"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	ItemName    string     `json:"item_name"`
	Quantity    *float64   `json:"quantity,omitempty"`
	Amount      float64    `json:"amount"`
	Unit        string     `json:"unit,omitempty"`
	Currency    string     `json:"currency"`
	VendorID    *uuid.UUID `json:"vendor_id,omitempty"`
	PurchasedAt time.Time  `json:"purchased_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// UnitPrice returns amount / max(quantity, 1). An absent quantity counts as 1,
// so the result is never Inf or NaN.
func (p *Purchase) UnitPrice() float64 {
	q := 1.0
	if p.Quantity != nil && *p.Quantity > 1 {
		q = *p.Quantity
	}
	return p.Amount / q
}

// PriceSourcePurchase tags observations derived from purchases.
const PriceSourcePurchase = "purchase"

// PriceObservation is an immutable, append-only price data point.
type PriceObservation struct {
	ID              uuid.UUID  `json:"id"`
	CanonicalItemID uuid.UUID  `json:"canonical_item_id"`
	RawItemName     string     `json:"raw_item_name"`
	VendorID        *uuid.UUID `json:"vendor_id,omitempty"`
	Unit            string     `json:"unit"`
	UnitPrice       float64    `json:"unit_price"`
	Currency        string     `json:"currency"`
	Source          string     `json:"source"`
	ObservedAt      time.Time  `json:"observed_at"`
	SourceRef       string     `json:"source_ref"`
}

// PriceConfidence is the coarse confidence attached to an estimate.
type PriceConfidence string

const (
	ConfidenceHigh PriceConfidence = "high"
	ConfidenceLow  PriceConfidence = "low"
)

// PriceRange is the min/max of the sampled unit prices.
type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PriceEstimate summarizes recent observations for one canonical item.
// Unit is taken from the most recent observation and is not checked for
// consistency across the sample.
type PriceEstimate struct {
	CanonicalItemID uuid.UUID       `json:"canonical_item_id"`
	Range           PriceRange      `json:"range"`
	Median          float64         `json:"median"`
	Confidence      PriceConfidence `json:"confidence"`
	LastSeenAt      time.Time       `json:"last_seen_at"`
	SampleSize      int             `json:"sample_size"`
	Unit            string          `json:"unit"`
}
