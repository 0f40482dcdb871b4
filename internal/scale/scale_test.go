package scale

import (
	"math"
	"testing"

	"github.com/Icestreamm/baseer-backend/internal/domain/assessment"
)

func det(class string, conf, x1, y1, x2, y2 float64) assessment.Detection {
	return assessment.Detection{
		Box:        assessment.Box{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Confidence: conf,
		Class:      class,
	}
}

var measurements = assessment.ReferenceMeasurements{
	TireDiameter: 60,
	HandleWidth:  15,
	LicenseWidth: 52,
}

func TestCalculatePriority(t *testing.T) {
	tire := det("Wheel", 0.9, 0, 0, 100, 100)
	handle := det("door handle", 0.8, 0, 0, 30, 10)
	license := det("license plate", 0.9, 0, 0, 130, 30)
	headlight := det("headlight", 0.6, 0, 0, 66, 30)

	tests := []struct {
		name       string
		handleDets []assessment.Detection
		compDets   []assessment.Detection
		wantSource assessment.ScaleSource
		wantScale  float64
	}{
		{
			name:       "tire wins over handle",
			handleDets: []assessment.Detection{handle},
			compDets:   []assessment.Detection{tire},
			wantSource: assessment.ScaleSourceTire,
			wantScale:  0.6,
		},
		{
			name:       "handle wins without tire",
			handleDets: []assessment.Detection{handle},
			compDets:   nil,
			wantSource: assessment.ScaleSourceHandle,
			wantScale:  0.5,
		},
		{
			name:       "license wins without tire and handle",
			handleDets: nil,
			compDets:   []assessment.Detection{license},
			wantSource: assessment.ScaleSourceLicense,
			wantScale:  0.4,
		},
		{
			name:       "headlight uses fixed 33cm",
			handleDets: nil,
			compDets:   []assessment.Detection{headlight},
			wantSource: assessment.ScaleSourceHeadlight,
			wantScale:  0.5,
		},
		{
			name:       "fallback assumes image width is one meter",
			handleDets: nil,
			compDets:   nil,
			wantSource: assessment.ScaleSourceFallback,
			wantScale:  0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Calculate(tt.handleDets, tt.compDets, measurements, 500)
			if result.Source != tt.wantSource {
				t.Errorf("source = %s, want %s", result.Source, tt.wantSource)
			}
			if math.Abs(result.CmPerPx-tt.wantScale) > 1e-9 {
				t.Errorf("cm_per_px = %v, want %v", result.CmPerPx, tt.wantScale)
			}
			if result.CmPerPx <= 0 {
				t.Errorf("cm_per_px must be positive, got %v", result.CmPerPx)
			}
		})
	}
}

func TestCalculateTireUsesMinDimension(t *testing.T) {
	// A rotated wheel yields a non-square box; the shorter side spans the
	// physical diameter.
	tire := det("tire", 0.9, 0, 0, 150, 100)
	result := Calculate(nil, []assessment.Detection{tire}, measurements, 500)

	if result.Source != assessment.ScaleSourceTire {
		t.Fatalf("source = %s, want TIRE", result.Source)
	}
	if math.Abs(result.CmPerPx-0.6) > 1e-9 {
		t.Errorf("cm_per_px = %v, want 0.6", result.CmPerPx)
	}
}

func TestCalculateConfidenceFloors(t *testing.T) {
	tests := []struct {
		name     string
		compDets []assessment.Detection
		want     assessment.ScaleSource
	}{
		{
			name:     "tire at floor is rejected",
			compDets: []assessment.Detection{det("wheel", 0.5, 0, 0, 100, 100)},
			want:     assessment.ScaleSourceFallback,
		},
		{
			name:     "license below 0.65 is rejected",
			compDets: []assessment.Detection{det("plate", 0.6, 0, 0, 130, 30)},
			want:     assessment.ScaleSourceFallback,
		},
		{
			name:     "headlight above 0.3 is accepted",
			compDets: []assessment.Detection{det("headlight", 0.35, 0, 0, 66, 30)},
			want:     assessment.ScaleSourceHeadlight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Calculate(nil, tt.compDets, measurements, 500)
			if result.Source != tt.want {
				t.Errorf("source = %s, want %s", result.Source, tt.want)
			}
		})
	}
}

func TestCalculateRetainsReferenceBoxes(t *testing.T) {
	comp := []assessment.Detection{
		det("wheel", 0.9, 0, 0, 100, 100),
		det("tire", 0.7, 200, 200, 320, 310),
		det("windshield", 0.8, 50, 0, 400, 150),
		det("windshield", 0.4, 60, 0, 410, 160), // below floor, dropped
	}
	result := Calculate(nil, comp, measurements, 500)

	if len(result.TireBoxes) != 2 {
		t.Errorf("tire boxes = %d, want 2", len(result.TireBoxes))
	}
	if len(result.WindshieldBoxes) != 1 {
		t.Errorf("windshield boxes = %d, want 1", len(result.WindshieldBoxes))
	}
	// Best tire pixel size is the largest min-dimension across tire boxes:
	// max(min(100,100), min(120,110)) = 110.
	if math.Abs(result.CmPerPx-60.0/110.0) > 1e-9 {
		t.Errorf("cm_per_px = %v, want %v", result.CmPerPx, 60.0/110.0)
	}
}
