// Package damage classifies consensus items into paint work versus component
// replacements and aggregates the paint-relevant area in physical units.
package damage

import (
	"github.com/Icestreamm/baseer-backend/internal/domain/assessment"
)

// Paint cost in base currency is a linear empirical fit over damage area.
// The coefficients are fixed and must not be re-derived.
const (
	paintCostSlope     = 0.019157
	paintCostIntercept = 2.093
)

// tireOverlapThreshold: a damage region more than half inside a tire box is
// billed as a tire replacement, not a paint job. Strictly greater-than.
const tireOverlapThreshold = 0.5

const areaEpsilon = 1e-6

// Summary is one photo's classification result.
type Summary struct {
	PaintAreaCm2 float64
	PaintCost    float64
	Flags        assessment.ComponentFlags
}

// Aggregate walks one photo's consensus items in order, sets component flags,
// and sums the paint-relevant area converted to cm².
func Aggregate(items []assessment.ConsensusItem, tireBoxes []assessment.Detection, cmPerPx float64) Summary {
	var s Summary

	for _, item := range items {
		switch item.Category {
		case assessment.CategoryWindshield:
			s.Flags.Windshield = true
			continue
		case assessment.CategoryLight:
			s.Flags.Light = true
			continue
		}

		areaPx := item.Box.Area()
		if overlapsTire(item.Box, tireBoxes, areaPx) {
			s.Flags.Tire = true
			continue
		}
		s.PaintAreaCm2 += areaPx * cmPerPx * cmPerPx
	}

	s.PaintCost = PaintCost(s.PaintAreaCm2)
	return s
}

// PaintCost applies the fixed linear formula; zero area costs nothing.
func PaintCost(areaCm2 float64) float64 {
	if areaCm2 <= 0 {
		return 0
	}
	return paintCostSlope*areaCm2 + paintCostIntercept
}

func overlapsTire(b assessment.Box, tireBoxes []assessment.Detection, areaPx float64) bool {
	for _, tire := range tireBoxes {
		inter := b.Intersection(tire.Box)
		if inter/(areaPx+areaEpsilon) > tireOverlapThreshold {
			return true
		}
	}
	return false
}

// ModelArea sums one detector's raw box areas in cm². Used only for the
// side-by-side model comparison in the report.
func ModelArea(detections []assessment.Detection, cmPerPx float64) float64 {
	var total float64
	for _, d := range detections {
		total += d.Box.Width() * cmPerPx * d.Box.Height() * cmPerPx
	}
	return total
}

// ConsensusArea sums consensus item areas in cm².
func ConsensusArea(items []assessment.ConsensusItem, cmPerPx float64) float64 {
	var total float64
	for _, item := range items {
		total += item.Box.Width() * cmPerPx * item.Box.Height() * cmPerPx
	}
	return total
}
