package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Icestreamm/baseer-backend/internal/domain/assessment"
)

var ErrNotFound = errors.New("assessment not found")

type AssessmentRepository struct {
	db *gorm.DB
}

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

func (Assessment) TableName() string {
	return "assessments"
}

type Assessment struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey"`
	Status           string    `gorm:"not null"`
	Progress         int       `gorm:"not null"`
	Error            *string
	CarMake          *string
	CarModel         *string
	CarYear          *int
	PhotoURLs        datatypes.JSON `gorm:"not null"`
	TireDiameter     float64        `gorm:"not null"`
	HandleWidth      float64        `gorm:"not null"`
	LicenseWidth     float64        `gorm:"not null"`
	ExchangeRate     float64        `gorm:"not null"`
	TaxRate          float64        `gorm:"not null"`
	LuxuryIndex      float64        `gorm:"not null"`
	CountryLuxFactor float64        `gorm:"not null"`
	Currency         string         `gorm:"not null"`
	EstimatedCost    *float64
	SubtotalBase     *float64
	TaxAmount        *float64
	SubtotalPostTax  *float64
	Cost             datatypes.JSON
	PhotoResults     datatypes.JSON
	Metadata         datatypes.JSON
	InvoiceURL       *string
	AnalysisURL      *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Create persists a newly accepted assessment in PENDING state. This write
// happens before any processing so a crash mid-run is distinguishable from
// "never started".
func (r *AssessmentRepository) Create(ctx context.Context, req assessment.Request) error {
	urls, err := json.Marshal(req.PhotoURLs)
	if err != nil {
		return fmt.Errorf("marshal photo urls: %w", err)
	}

	row := Assessment{
		ID:               req.ID,
		Status:           string(assessment.StatusPending),
		Progress:         0,
		PhotoURLs:        datatypes.JSON(urls),
		TireDiameter:     req.Measurements.TireDiameter,
		HandleWidth:      req.Measurements.HandleWidth,
		LicenseWidth:     req.Measurements.LicenseWidth,
		ExchangeRate:     req.Economics.ExchangeRate,
		TaxRate:          req.Economics.TaxRate,
		LuxuryIndex:      req.Economics.LuxuryIndex,
		CountryLuxFactor: req.Economics.CountryLuxFactor,
		Currency:         req.Economics.Currency,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	if req.CarMake != "" {
		row.CarMake = &req.CarMake
	}
	if req.CarModel != "" {
		row.CarModel = &req.CarModel
	}
	if req.CarYear != 0 {
		row.CarYear = &req.CarYear
	}

	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create assessment: %w", err)
	}
	return nil
}

// MarkProcessing records the PENDING to PROCESSING transition. Terminal rows
// are never touched.
func (r *AssessmentRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return r.updateActive(ctx, id, map[string]any{
		"status":   string(assessment.StatusProcessing),
		"progress": 0,
	})
}

// Checkpoint persists incremental progress and the photo results computed so
// far. Progress is clamped to be non-decreasing so readers never observe it
// going backwards.
func (r *AssessmentRepository) Checkpoint(ctx context.Context, id uuid.UUID, progress int, results []assessment.PhotoResult) error {
	fields := map[string]any{
		"progress": gorm.Expr("GREATEST(progress, ?)", progress),
	}
	if results != nil {
		raw, err := json.Marshal(results)
		if err != nil {
			return fmt.Errorf("marshal photo results: %w", err)
		}
		fields["photo_results"] = datatypes.JSON(raw)
	}
	return r.updateActive(ctx, id, fields)
}

// Complete stores the final breakdown and flips the job to COMPLETED. The
// transition is single and irreversible.
func (r *AssessmentRepository) Complete(ctx context.Context, id uuid.UUID, breakdown assessment.CostBreakdown, metadata map[string]any) error {
	rawCost, err := json.Marshal(breakdown)
	if err != nil {
		return fmt.Errorf("marshal cost breakdown: %w", err)
	}

	fields := map[string]any{
		"status":            string(assessment.StatusCompleted),
		"progress":          100,
		"error":             nil,
		"estimated_cost":    breakdown.FinalCost,
		"subtotal_base":     breakdown.SubtotalLocal,
		"tax_amount":        breakdown.TaxAmount,
		"subtotal_post_tax": breakdown.PostTaxSubtotal,
		"cost":              datatypes.JSON(rawCost),
	}
	if metadata != nil {
		rawMeta, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		fields["metadata"] = datatypes.JSON(rawMeta)
	}
	return r.updateActive(ctx, id, fields)
}

// SetArtifacts records rendered report URLs. Report rendering is non-fatal,
// so missing artifacts are simply never written.
func (r *AssessmentRepository) SetArtifacts(ctx context.Context, id uuid.UUID, invoiceURL, analysisURL string) error {
	fields := map[string]any{}
	if invoiceURL != "" {
		fields["invoice_url"] = invoiceURL
	}
	if analysisURL != "" {
		fields["analysis_url"] = analysisURL
	}
	if len(fields) == 0 {
		return nil
	}
	return r.updateActive(ctx, id, fields)
}

// Fail records the terminal FAILED state. Partial results computed before the
// failure point are discarded: the terminal record holds only the error.
func (r *AssessmentRepository) Fail(ctx context.Context, id uuid.UUID, message string) error {
	return r.updateActive(ctx, id, map[string]any{
		"status":        string(assessment.StatusFailed),
		"progress":      0,
		"error":         message,
		"cost":          nil,
		"photo_results": nil,
	})
}

// updateActive applies a partial update with merge semantics; columns not in
// the map keep their values. The status guard makes terminal states final.
func (r *AssessmentRepository) updateActive(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	fields["updated_at"] = time.Now()
	result := r.db.WithContext(ctx).
		Model(&Assessment{}).
		Where("id = ?", id).
		Where("status NOT IN ?", []string{
			string(assessment.StatusCompleted),
			string(assessment.StatusFailed),
		}).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("update assessment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update assessment %s: %w", id, ErrNotFound)
	}
	return nil
}

// Get reads the job record back, including the cost breakdown when present.
func (r *AssessmentRepository) Get(ctx context.Context, id uuid.UUID) (*assessment.Job, error) {
	var row Assessment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}

	job := &assessment.Job{
		ID:        row.ID,
		Status:    assessment.Status(row.Status),
		Progress:  row.Progress,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if row.Error != nil {
		job.Error = *row.Error
	}
	if len(row.Cost) > 0 {
		var breakdown assessment.CostBreakdown
		if err := json.Unmarshal(row.Cost, &breakdown); err != nil {
			return nil, fmt.Errorf("decode cost breakdown: %w", err)
		}
		job.Cost = &breakdown
	}
	if len(row.PhotoResults) > 0 {
		if err := json.Unmarshal(row.PhotoResults, &job.PhotoResults); err != nil {
			return nil, fmt.Errorf("decode photo results: %w", err)
		}
	}
	return job, nil
}
