package assessment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Box is an axis-aligned bounding box in pixel space, (X1,Y1) top-left.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (b Box) Width() float64 {
	return b.X2 - b.X1
}

func (b Box) Height() float64 {
	return b.Y2 - b.Y1
}

func (b Box) Area() float64 {
	return b.Width() * b.Height()
}

// Intersection returns the overlapping area of two boxes, 0 if disjoint.
func (b Box) Intersection(o Box) float64 {
	w := min(b.X2, o.X2) - max(b.X1, o.X1)
	h := min(b.Y2, o.Y2) - max(b.Y1, o.Y1)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU returns intersection-over-union of two boxes.
func (b Box) IoU(o Box) float64 {
	inter := b.Intersection(o)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detection is a single raw detector output for one photo. Immutable.
type Detection struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
	Class      string  `json:"class"`
	Model      string  `json:"model"`
}

// ScaleSource identifies which reference object won the calibration.
type ScaleSource string

const (
	ScaleSourceTire      ScaleSource = "TIRE"
	ScaleSourceHandle    ScaleSource = "HANDLE"
	ScaleSourceLicense   ScaleSource = "LICENSE"
	ScaleSourceHeadlight ScaleSource = "HEADLIGHT"
	ScaleSourceFallback  ScaleSource = "FALLBACK"
)

// ScaleResult is the cm-per-pixel calibration for one photo. Exactly one
// source wins; tire and windshield boxes are retained for the damage
// classification step.
type ScaleResult struct {
	CmPerPx         float64     `json:"cm_per_px"`
	Source          ScaleSource `json:"source"`
	TireBoxes       []Detection `json:"tire_boxes,omitempty"`
	WindshieldBoxes []Detection `json:"windshield_boxes,omitempty"`
}

type Category string

const (
	CategoryWindshield Category = "WINDSHIELD"
	CategoryLight      Category = "LIGHT"
	CategoryDamage     Category = "DAMAGE"
)

// ConsensusItem is a damage region confirmed by at least two detector votes.
// Never mutated after creation.
type ConsensusItem struct {
	Box          Box      `json:"box"`
	Confidence   float64  `json:"confidence"`
	Category     Category `json:"category"`
	Contributors int      `json:"contributors"`
}

// ComponentFlags mark component classes billed once per assessment at a flat
// fee instead of the area-based paint formula.
type ComponentFlags struct {
	Windshield bool `json:"windshield"`
	Light      bool `json:"light"`
	Tire       bool `json:"tire"`
}

// Or folds another photo's flags into the assessment-level flags.
func (f ComponentFlags) Or(o ComponentFlags) ComponentFlags {
	return ComponentFlags{
		Windshield: f.Windshield || o.Windshield,
		Light:      f.Light || o.Light,
		Tire:       f.Tire || o.Tire,
	}
}

// PhotoResult aggregates one photo's pipeline output. Owned by the job that
// produced it, read-only afterwards.
type PhotoResult struct {
	PhotoNum     int                `json:"photo_num"`
	PhotoURL     string             `json:"photo_url"`
	Scale        ScaleResult        `json:"scale"`
	Items        []ConsensusItem    `json:"items"`
	PaintAreaCm2 float64            `json:"paint_area_cm2"`
	PaintCost    float64            `json:"paint_cost"`
	Flags        ComponentFlags     `json:"flags"`
	ModelAreas   map[string]float64 `json:"model_areas,omitempty"`
}

// PhotoPaintCost is one photo's contribution to the paint total, kept in
// base currency for the invoice.
type PhotoPaintCost struct {
	PhotoNum int     `json:"photo_num"`
	AreaCm2  float64 `json:"area_cm2"`
	Cost     float64 `json:"cost"`
}

// CostBreakdown exposes every intermediate value of the cost pipeline, not
// just the final figure. Immutable once computed.
type CostBreakdown struct {
	PaintCosts      []PhotoPaintCost `json:"paint_costs"`
	PaintTotal      float64          `json:"paint_total"`
	LightCost       float64          `json:"light_cost"`
	WindshieldCost  float64          `json:"windshield_cost"`
	TireCost        float64          `json:"tire_cost"`
	PaintTotalLocal float64          `json:"paint_total_local"`
	LightCostLocal  float64          `json:"light_cost_local"`
	WindshieldLocal float64          `json:"windshield_cost_local"`
	TireCostLocal   float64          `json:"tire_cost_local"`
	Subtotal        float64          `json:"subtotal"`
	SubtotalLocal   float64          `json:"subtotal_local"`
	TaxRate         float64          `json:"tax_rate"`
	TaxAmount       float64          `json:"tax_amount"`
	PostTaxSubtotal float64          `json:"post_tax_subtotal"`
	LuxuryIndex     float64          `json:"luxury_index"`
	CountryFactor   float64          `json:"country_factor"`
	FinalCost       float64          `json:"final_cost"`
	Currency        string           `json:"currency"`
}

// ReferenceMeasurements are the caller-supplied real-world sizes of the
// calibration objects, in centimeters.
type ReferenceMeasurements struct {
	TireDiameter float64 `json:"tire_diameter"`
	HandleWidth  float64 `json:"handle_width"`
	LicenseWidth float64 `json:"license_width"`
}

// EconomicParams convert base-currency costs into the caller's jurisdiction.
type EconomicParams struct {
	ExchangeRate     float64 `json:"exchange_rate"`
	TaxRate          float64 `json:"tax_rate"`
	LuxuryIndex      float64 `json:"luxury_index"`
	CountryLuxFactor float64 `json:"country_lux_factor"`
	Currency         string  `json:"currency"`
}

// Request is an accepted assessment submission.
type Request struct {
	ID           uuid.UUID
	PhotoURLs    []string
	CarMake      string
	CarModel     string
	CarYear      int
	Measurements ReferenceMeasurements
	Economics    EconomicParams
}

// Job is the durable record of one assessment run.
type Job struct {
	ID           uuid.UUID      `json:"id"`
	Status       Status         `json:"status"`
	Progress     int            `json:"progress"`
	Error        string         `json:"error,omitempty"`
	Cost         *CostBreakdown `json:"cost,omitempty"`
	PhotoResults []PhotoResult  `json:"photo_results,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
