// Package scale turns raw detector boxes into a cm-per-pixel conversion
// factor using known-size reference objects found in the photo.
package scale

import (
	"strings"

	"github.com/Icestreamm/baseer-backend/internal/domain/assessment"
)

// Confidence floors per reference class. A detection has to clear the floor
// before its pixel size is considered.
const (
	handleConfThreshold    = 0.5
	tireConfThreshold      = 0.5
	headlightConfThreshold = 0.3
	licenseConfThreshold   = 0.65

	// Headlights have no caller-supplied measurement; 33 cm is a fixed
	// physical assumption.
	headlightWidthCm = 33.0

	// Last resort: assume the full image width represents one meter.
	fallbackImageWidthCm = 100.0
)

// Calculate picks the best reference object and derives the scale.
//
// Priority, first non-empty wins: tire > handle > license plate > headlight >
// fallback. It never fails: with no reference objects at all the fallback
// assumption applies. Tire and windshield boxes are retained for the damage
// classification step.
func Calculate(
	handleDetections, componentDetections []assessment.Detection,
	m assessment.ReferenceMeasurements,
	imageWidthPx int,
) assessment.ScaleResult {
	var bestHandlePx, bestTirePx, bestHeadlightPx, bestLicensePx float64
	var tireBoxes, windshieldBoxes []assessment.Detection

	for _, d := range handleDetections {
		name := strings.ToLower(d.Class)
		if strings.Contains(name, "handle") && d.Confidence > handleConfThreshold {
			bestHandlePx = max(bestHandlePx, d.Box.Width())
		}
	}

	for _, d := range componentDetections {
		name := strings.ToLower(d.Class)

		if (strings.Contains(name, "wheel") || strings.Contains(name, "tire")) && d.Confidence > tireConfThreshold {
			// min(w,h) tolerates a rotated wheel: the shorter side still
			// spans the physical diameter.
			bestTirePx = max(bestTirePx, min(d.Box.Width(), d.Box.Height()))
			tireBoxes = append(tireBoxes, d)
		}
		if strings.Contains(name, "headlight") && d.Confidence > headlightConfThreshold {
			bestHeadlightPx = max(bestHeadlightPx, d.Box.Width())
		}
		if (strings.Contains(name, "license") || strings.Contains(name, "plate")) && d.Confidence > licenseConfThreshold {
			bestLicensePx = max(bestLicensePx, d.Box.Width())
		}
		if strings.Contains(name, "windshield") && d.Confidence > handleConfThreshold {
			windshieldBoxes = append(windshieldBoxes, d)
		}
	}

	result := assessment.ScaleResult{
		TireBoxes:       tireBoxes,
		WindshieldBoxes: windshieldBoxes,
	}

	switch {
	case bestTirePx > 0:
		result.CmPerPx = m.TireDiameter / bestTirePx
		result.Source = assessment.ScaleSourceTire
	case bestHandlePx > 0:
		result.CmPerPx = m.HandleWidth / bestHandlePx
		result.Source = assessment.ScaleSourceHandle
	case bestLicensePx > 0:
		result.CmPerPx = m.LicenseWidth / bestLicensePx
		result.Source = assessment.ScaleSourceLicense
	case bestHeadlightPx > 0:
		result.CmPerPx = headlightWidthCm / bestHeadlightPx
		result.Source = assessment.ScaleSourceHeadlight
	default:
		result.CmPerPx = fallbackImageWidthCm / float64(imageWidthPx)
		result.Source = assessment.ScaleSourceFallback
	}

	return result
}
