// Package costing computes planned and actual cost rollups for project
// sections. Everything here is a pure function of its inputs.
package costing

import "github.com/magnetic-studio/studio-console/pkg/models"

// lineIncluded applies the inclusion policy to a single line.
func lineIncluded(isManagement bool, visibility models.QuoteVisibility, opts models.CostOptions) bool {
	if isManagement && !opts.IncludeManagement {
		return false
	}
	if !opts.RespectVisibility {
		return true
	}
	switch visibility.Normalize() {
	case models.VisibilityExclude:
		return false
	case models.VisibilityOptional:
		return opts.IncludeOptional
	default:
		return true
	}
}

func orPlanned(actual *float64, planned float64) float64 {
	if actual == nil {
		return planned
	}
	return *actual
}

func orDefault(override *float64, def float64) float64 {
	if override == nil {
		return def
	}
	return *override
}

// MaterialCost returns the planned and actual cost of one material line.
func MaterialCost(m *models.MaterialLine) (planned, actual float64) {
	planned = m.PlannedQuantity * m.PlannedUnitCost
	actual = orPlanned(m.ActualQuantity, m.PlannedQuantity) * orPlanned(m.ActualUnitCost, m.PlannedUnitCost)
	return planned, actual
}

// WorkCost returns the planned and actual cost of one work line. Flat-rate
// lines cost their unit cost regardless of quantity.
func WorkCost(w *models.WorkLine) (planned, actual float64) {
	actualUnit := orPlanned(w.ActualUnitCost, w.PlannedUnitCost)
	if w.RateType == models.RateFlat {
		return w.PlannedUnitCost, actualUnit
	}
	planned = w.PlannedQuantity * w.PlannedUnitCost
	actual = orPlanned(w.ActualQuantity, w.PlannedQuantity) * actualUnit
	return planned, actual
}

// CalculateSectionStats rolls up the lines of one section. Section overrides
// take precedence over the project defaults for each percentage independently.
func CalculateSectionStats(
	section *models.Section,
	materials []*models.MaterialLine,
	work []*models.WorkLine,
	defaults models.ProjectDefaults,
	opts models.CostOptions,
) models.SectionTotals {
	var t models.SectionTotals

	for _, m := range materials {
		if !lineIncluded(m.IsManagement, m.QuoteVisibility, opts) {
			continue
		}
		p, a := MaterialCost(m)
		t.PlannedMaterialsCostE += p
		t.ActualMaterialsCostE += a
	}
	for _, w := range work {
		if !lineIncluded(w.IsManagement, w.QuoteVisibility, opts) {
			continue
		}
		p, a := WorkCost(w)
		t.PlannedWorkCostS += p
		t.ActualWorkCostS += a
	}

	overhead, risk, profit := defaults.Overhead, defaults.Risk, defaults.Profit
	if section != nil {
		overhead = orDefault(section.OverheadPercentOverride, defaults.Overhead)
		risk = orDefault(section.RiskPercentOverride, defaults.Risk)
		profit = orDefault(section.ProfitPercentOverride, defaults.Profit)
	}

	t.PlannedDirectCost = t.PlannedMaterialsCostE + t.PlannedWorkCostS
	t.PlannedOverhead = t.PlannedDirectCost * overhead
	t.PlannedRisk = t.PlannedDirectCost * risk
	t.PlannedProfit = t.PlannedDirectCost * profit
	t.PlannedClientPrice = t.PlannedDirectCost + t.PlannedOverhead + t.PlannedRisk + t.PlannedProfit

	t.ActualDirectCost = t.ActualMaterialsCostE + t.ActualWorkCostS
	t.ActualOverhead = t.ActualDirectCost * overhead
	t.ActualRisk = t.ActualDirectCost * risk
	t.ActualProfit = t.ActualDirectCost * profit
	t.ActualClientPrice = t.ActualDirectCost + t.ActualOverhead + t.ActualRisk + t.ActualProfit

	t.VarianceDirect = t.ActualDirectCost - t.PlannedDirectCost
	return t
}

// AggregateProject sums section rollups into project totals.
func AggregateProject(sections []models.SectionTotals) models.ProjectTotals {
	var totals models.ProjectTotals
	for _, s := range sections {
		totals.PlannedDirect += s.PlannedDirectCost
		totals.PlannedClientPrice += s.PlannedClientPrice
		totals.ActualDirect += s.ActualDirectCost
	}
	return totals
}
