package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QuoteVisibility controls whether a line item appears in client quotes.
type QuoteVisibility string

const (
	VisibilityInclude  QuoteVisibility = "include"
	VisibilityExclude  QuoteVisibility = "exclude"
	VisibilityOptional QuoteVisibility = "optional"
)

// Normalize maps the zero value to VisibilityInclude so an omitted field never
// silently changes inclusion behavior.
func (v QuoteVisibility) Normalize() QuoteVisibility {
	if v == "" {
		return VisibilityInclude
	}
	return v
}

// IsValid returns true if v is one of the known visibilities (after normalization).
func (v QuoteVisibility) IsValid() bool {
	switch v.Normalize() {
	case VisibilityInclude, VisibilityExclude, VisibilityOptional:
		return true
	default:
		return false
	}
}

// UnmarshalJSON decodes missing/empty values as include and rejects unknown ones.
func (v *QuoteVisibility) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed := QuoteVisibility(s).Normalize()
	if !parsed.IsValid() {
		return fmt.Errorf("invalid quote visibility %q", s)
	}
	*v = parsed
	return nil
}

// RateType determines how a work line's cost is derived.
type RateType string

const (
	RateFlat    RateType = "flat"
	RatePerUnit RateType = "perUnit"
)

// Section is a cost-accounting grouping of material and work lines.
type Section struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sort_order"`

	OverheadPercentOverride *float64 `json:"overhead_percent_override,omitempty"`
	RiskPercentOverride     *float64 `json:"risk_percent_override,omitempty"`
	ProfitPercentOverride   *float64 `json:"profit_percent_override,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MaterialLine is a purchasable input under a section.
type MaterialLine struct {
	ID              uuid.UUID       `json:"id"`
	SectionID       uuid.UUID       `json:"section_id"`
	Label           string          `json:"label"`
	PlannedQuantity float64         `json:"planned_quantity"`
	PlannedUnitCost float64         `json:"planned_unit_cost"`
	ActualQuantity  *float64        `json:"actual_quantity,omitempty"`
	ActualUnitCost  *float64        `json:"actual_unit_cost,omitempty"`
	IsManagement    bool            `json:"is_management"`
	QuoteVisibility QuoteVisibility `json:"quote_visibility"`
}

// WorkLine is a labor line under a section.
type WorkLine struct {
	ID              uuid.UUID       `json:"id"`
	SectionID       uuid.UUID       `json:"section_id"`
	Label           string          `json:"label"`
	RateType        RateType        `json:"rate_type"`
	PlannedQuantity float64         `json:"planned_quantity"`
	PlannedUnitCost float64         `json:"planned_unit_cost"`
	ActualQuantity  *float64        `json:"actual_quantity,omitempty"`
	ActualUnitCost  *float64        `json:"actual_unit_cost,omitempty"`
	IsManagement    bool            `json:"is_management"`
	QuoteVisibility QuoteVisibility `json:"quote_visibility"`
}

// SectionWithLines bundles a section with the lines it owns.
type SectionWithLines struct {
	Section   *Section
	Materials []*MaterialLine
	Work      []*WorkLine
}

// CostOptions selects which lines participate in a rollup.
type CostOptions struct {
	IncludeManagement bool `json:"include_management"`
	IncludeOptional   bool `json:"include_optional"`
	RespectVisibility bool `json:"respect_visibility"`
}

// SectionTotals is the planned/actual rollup for one section.
type SectionTotals struct {
	PlannedMaterialsCostE float64 `json:"planned_materials_cost_e"`
	PlannedWorkCostS      float64 `json:"planned_work_cost_s"`
	PlannedDirectCost     float64 `json:"planned_direct_cost"`
	PlannedOverhead       float64 `json:"planned_overhead"`
	PlannedRisk           float64 `json:"planned_risk"`
	PlannedProfit         float64 `json:"planned_profit"`
	PlannedClientPrice    float64 `json:"planned_client_price"`

	ActualMaterialsCostE float64 `json:"actual_materials_cost_e"`
	ActualWorkCostS      float64 `json:"actual_work_cost_s"`
	ActualDirectCost     float64 `json:"actual_direct_cost"`
	ActualOverhead       float64 `json:"actual_overhead"`
	ActualRisk           float64 `json:"actual_risk"`
	ActualProfit         float64 `json:"actual_profit"`
	ActualClientPrice    float64 `json:"actual_client_price"`

	VarianceDirect float64 `json:"variance_direct"`
}

// ProjectTotals aggregates section rollups to project level.
type ProjectTotals struct {
	PlannedDirect      float64 `json:"planned_direct"`
	PlannedClientPrice float64 `json:"planned_client_price"`
	ActualDirect       float64 `json:"actual_direct"`
}

// SectionStats pairs a section with its computed totals.
type SectionStats struct {
	SectionID uuid.UUID     `json:"section_id"`
	Name      string        `json:"name"`
	Totals    SectionTotals `json:"totals"`
}

// CostingSummary is the project-level costing view.
type CostingSummary struct {
	ProjectID uuid.UUID       `json:"project_id"`
	Defaults  ProjectDefaults `json:"defaults"`
	Options   CostOptions     `json:"options"`
	Sections  []SectionStats  `json:"sections"`
	Totals    ProjectTotals   `json:"totals"`
}
