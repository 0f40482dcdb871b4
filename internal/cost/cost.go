// Package cost converts per-photo paint costs and assessment-level component
// flags into a tax- and luxury-adjusted monetary total.
package cost

import (
	"github.com/Icestreamm/baseer-backend/internal/domain/assessment"
)

// Flat per-incident replacement fees in base currency, each charged at most
// once per assessment.
const (
	lightFlatFee      = 30.0
	windshieldFlatFee = 50.0
	tireFlatFee       = 20.0
)

// Compute runs the cost pipeline. The step order is fixed: luxury and tax
// multipliers must apply to the correct base, so no step may be skipped or
// reordered. Pure function: identical input yields identical output.
func Compute(
	paintCosts []assessment.PhotoPaintCost,
	flags assessment.ComponentFlags,
	eco assessment.EconomicParams,
) assessment.CostBreakdown {
	var paintTotal float64
	for _, p := range paintCosts {
		paintTotal += p.Cost
	}

	var lightCost, windshieldCost, tireCost float64
	if flags.Light {
		lightCost = lightFlatFee
	}
	if flags.Windshield {
		windshieldCost = windshieldFlatFee
	}
	if flags.Tire {
		tireCost = tireFlatFee
	}

	subtotal := paintTotal + lightCost + windshieldCost + tireCost
	subtotalLocal := subtotal * eco.ExchangeRate
	taxAmount := subtotalLocal * eco.TaxRate
	postTax := subtotalLocal + taxAmount
	final := postTax * eco.LuxuryIndex * eco.CountryLuxFactor

	return assessment.CostBreakdown{
		PaintCosts:      paintCosts,
		PaintTotal:      paintTotal,
		LightCost:       lightCost,
		WindshieldCost:  windshieldCost,
		TireCost:        tireCost,
		PaintTotalLocal: paintTotal * eco.ExchangeRate,
		LightCostLocal:  lightCost * eco.ExchangeRate,
		WindshieldLocal: windshieldCost * eco.ExchangeRate,
		TireCostLocal:   tireCost * eco.ExchangeRate,
		Subtotal:        subtotal,
		SubtotalLocal:   subtotalLocal,
		TaxRate:         eco.TaxRate,
		TaxAmount:       taxAmount,
		PostTaxSubtotal: postTax,
		LuxuryIndex:     eco.LuxuryIndex,
		CountryFactor:   eco.CountryLuxFactor,
		FinalCost:       final,
		Currency:        eco.Currency,
	}
}
