package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Icestreamm/baseer-backend/internal/consensus"
	"github.com/Icestreamm/baseer-backend/internal/cost"
	"github.com/Icestreamm/baseer-backend/internal/damage"
	"github.com/Icestreamm/baseer-backend/internal/detect"
	"github.com/Icestreamm/baseer-backend/internal/domain/assessment"
	"github.com/Icestreamm/baseer-backend/internal/imaging"
	"github.com/Icestreamm/baseer-backend/internal/repository"
	"github.com/Icestreamm/baseer-backend/internal/scale"
	"github.com/Icestreamm/baseer-backend/internal/utils"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// Detector invocation confidences per role. Scale calibration applies its
// own stricter per-class floors on top of these.
const (
	handleConf     = 0.4
	componentConf  = 0.4
	sideHunterConf = 0.5
	sideKulasConf  = 0.4
	damageConf     = 0.3
)

// Progress milestones. Photo processing spans 0-80, the tail steps are fixed.
const (
	progressInit      = 5
	progressCapLoaded = 10
	progressPhotoSpan = 80
	progressCosts     = 85
	progressReports   = 88
	progressSaving    = 92
)

// JobStore is the durable job record store. Updates have merge semantics and
// never touch rows in a terminal state.
type JobStore interface {
	Create(ctx context.Context, req assessment.Request) error
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	Checkpoint(ctx context.Context, id uuid.UUID, progress int, results []assessment.PhotoResult) error
	Complete(ctx context.Context, id uuid.UUID, breakdown assessment.CostBreakdown, metadata map[string]any) error
	SetArtifacts(ctx context.Context, id uuid.UUID, invoiceURL, analysisURL string) error
	Fail(ctx context.Context, id uuid.UUID, message string) error
	Get(ctx context.Context, id uuid.UUID) (*assessment.Job, error)
}

// Capability is the shared detector registry. Ensure is safe to call from
// concurrent jobs; a successful check is reused, a failed one is retried by
// the next job.
type Capability interface {
	Ensure(ctx context.Context) error
	Detector(role string) (detect.Detector, error)
}

// ReportRenderer produces exportable artifacts. Failures here are swallowed
// by the service; a completed cost computation stays completed.
type ReportRenderer interface {
	Invoice(req assessment.Request, breakdown assessment.CostBreakdown) ([]byte, error)
	Analysis(req assessment.Request, results []assessment.PhotoResult, modelTotals map[string]float64, consensusAreaCm2 float64) ([]byte, error)
}

// ArtifactStore publishes rendered artifacts. Optional.
type ArtifactStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

type AssessmentService struct {
	store      JobStore
	capability Capability
	photos     imaging.Source
	renderer   ReportRenderer
	artifacts  ArtifactStore
	log        zerolog.Logger

	iouThreshold float64
	maxPhotos    int
}

func NewAssessmentService(
	store JobStore,
	capability Capability,
	photos imaging.Source,
	renderer ReportRenderer,
	artifacts ArtifactStore,
	maxPhotos int,
	log zerolog.Logger,
) *AssessmentService {
	return &AssessmentService{
		store:        store,
		capability:   capability,
		photos:       photos,
		renderer:     renderer,
		artifacts:    artifacts,
		log:          log,
		iouThreshold: consensus.DefaultIoUThreshold,
		maxPhotos:    maxPhotos,
	}
}

// Submit validates and accepts an assessment. The PENDING record is persisted
// before this returns; processing runs in a background goroutine. The job is
// not tied to the submitting request's lifetime.
func (s *AssessmentService) Submit(ctx context.Context, req assessment.Request) (uuid.UUID, error) {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if len(req.PhotoURLs) == 0 {
		return uuid.Nil, fmt.Errorf("%w: at least one photo is required", ErrInvalidInput)
	}
	if s.maxPhotos > 0 && len(req.PhotoURLs) > s.maxPhotos {
		return uuid.Nil, fmt.Errorf("%w: at most %d photos per assessment", ErrInvalidInput, s.maxPhotos)
	}
	if req.Measurements.TireDiameter <= 0 || req.Measurements.HandleWidth <= 0 || req.Measurements.LicenseWidth <= 0 {
		return uuid.Nil, fmt.Errorf("%w: reference measurements must be positive", ErrInvalidInput)
	}
	if req.Economics.ExchangeRate <= 0 {
		return uuid.Nil, fmt.Errorf("%w: exchange_rate must be positive", ErrInvalidInput)
	}
	if req.Economics.TaxRate < 0 || req.Economics.LuxuryIndex <= 0 || req.Economics.CountryLuxFactor <= 0 {
		return uuid.Nil, fmt.Errorf("%w: invalid economic parameters", ErrInvalidInput)
	}
	currency := utils.NormalizeCurrency(req.Economics.Currency)
	if currency == "" {
		return uuid.Nil, fmt.Errorf("%w: currency must be a 3-letter code", ErrInvalidInput)
	}
	req.Economics.Currency = currency

	if err := s.store.Create(ctx, req); err != nil {
		s.log.Error().Err(err).Str("assessment_id", req.ID.String()).Msg("failed to create assessment")
		return uuid.Nil, fmt.Errorf("create assessment: %w", err)
	}

	s.log.Info().
		Str("assessment_id", req.ID.String()).
		Int("photos", len(req.PhotoURLs)).
		Str("currency", currency).
		Msg("assessment accepted")

	go s.Process(context.Background(), req)

	return req.ID, nil
}

// Process drives one job from PROCESSING to a terminal state. Photos run
// strictly sequentially; any failure before completion fails the whole job
// with no partial results. Report rendering is the only recoverable step.
func (s *AssessmentService) Process(ctx context.Context, req assessment.Request) {
	log := s.log.With().Str("assessment_id", req.ID.String()).Logger()

	if err := s.store.MarkProcessing(ctx, req.ID); err != nil {
		log.Error().Err(err).Msg("failed to mark assessment processing")
		return
	}
	if err := s.store.Checkpoint(ctx, req.ID, progressInit, nil); err != nil {
		s.abort(ctx, req.ID, log, fmt.Errorf("persist progress: %w", err))
		return
	}

	// Capability must be up before any photo is touched.
	if err := s.capability.Ensure(ctx); err != nil {
		s.abort(ctx, req.ID, log, err)
		return
	}
	if err := s.store.Checkpoint(ctx, req.ID, progressCapLoaded, nil); err != nil {
		s.abort(ctx, req.ID, log, fmt.Errorf("persist progress: %w", err))
		return
	}

	var (
		photoResults  []assessment.PhotoResult
		paintCosts    []assessment.PhotoPaintCost
		flags         assessment.ComponentFlags
		modelTotals   = make(map[string]float64)
		consensusArea float64
	)

	for i, url := range req.PhotoURLs {
		photoNum := i + 1
		result, err := s.processPhoto(ctx, req, photoNum, url, log)
		if err != nil {
			s.abort(ctx, req.ID, log, fmt.Errorf("photo %d: %w", photoNum, err))
			return
		}

		photoResults = append(photoResults, result)
		paintCosts = append(paintCosts, assessment.PhotoPaintCost{
			PhotoNum: photoNum,
			AreaCm2:  result.PaintAreaCm2,
			Cost:     result.PaintCost,
		})
		flags = flags.Or(result.Flags)
		for model, area := range result.ModelAreas {
			modelTotals[model] += area
		}
		consensusArea += damage.ConsensusArea(result.Items, result.Scale.CmPerPx)

		progress := photoNum * progressPhotoSpan / len(req.PhotoURLs)
		if err := s.store.Checkpoint(ctx, req.ID, progress, photoResults); err != nil {
			s.abort(ctx, req.ID, log, fmt.Errorf("persist checkpoint: %w", err))
			return
		}
		log.Info().
			Int("photo", photoNum).
			Int("photos", len(req.PhotoURLs)).
			Str("scale_source", string(result.Scale.Source)).
			Float64("paint_area_cm2", result.PaintAreaCm2).
			Int("consensus_items", len(result.Items)).
			Msg("photo processed")
	}

	if err := s.store.Checkpoint(ctx, req.ID, progressCosts, nil); err != nil {
		s.abort(ctx, req.ID, log, fmt.Errorf("persist progress: %w", err))
		return
	}

	breakdown := cost.Compute(paintCosts, flags, req.Economics)
	log.Info().
		Float64("subtotal", breakdown.Subtotal).
		Float64("tax_amount", breakdown.TaxAmount).
		Float64("final_cost", breakdown.FinalCost).
		Str("currency", breakdown.Currency).
		Msg("cost breakdown computed")

	// Non-essential artifacts: failure is logged, never fatal.
	if err := s.store.Checkpoint(ctx, req.ID, progressReports, nil); err != nil {
		s.abort(ctx, req.ID, log, fmt.Errorf("persist progress: %w", err))
		return
	}
	s.publishReports(ctx, req, photoResults, breakdown, modelTotals, consensusArea, log)

	if err := s.store.Checkpoint(ctx, req.ID, progressSaving, nil); err != nil {
		s.abort(ctx, req.ID, log, fmt.Errorf("persist progress: %w", err))
		return
	}

	metadata := map[string]any{
		"consensus_damage_cm2": consensusArea,
		"model_damage_cm2":     modelTotals,
		"windshield_found":     flags.Windshield,
		"light_found":          flags.Light,
		"tire_found":           flags.Tire,
	}
	if err := s.store.Complete(ctx, req.ID, breakdown, metadata); err != nil {
		// Persistence failure while saving final results is fatal: the job
		// must not be left stuck in PROCESSING.
		s.abort(ctx, req.ID, log, fmt.Errorf("save results: %w", err))
		return
	}

	log.Info().
		Float64("final_cost", breakdown.FinalCost).
		Str("currency", breakdown.Currency).
		Float64("consensus_damage_cm2", consensusArea).
		Msg("assessment completed")
}

func (s *AssessmentService) processPhoto(
	ctx context.Context,
	req assessment.Request,
	photoNum int,
	url string,
	log zerolog.Logger,
) (assessment.PhotoResult, error) {
	photo, err := s.photos.Fetch(ctx, url)
	if err != nil {
		return assessment.PhotoResult{}, fmt.Errorf("fetch: %w", err)
	}

	handleDet, err := s.detect(ctx, detect.RoleHandle, photo.Data, handleConf)
	if err != nil {
		return assessment.PhotoResult{}, err
	}
	componentDet, err := s.detect(ctx, detect.RoleComponent, photo.Data, componentConf)
	if err != nil {
		return assessment.PhotoResult{}, err
	}

	scaleResult := scale.Calculate(handleDet, componentDet, req.Measurements, photo.WidthPx)
	log.Debug().
		Int("photo", photoNum).
		Str("source", string(scaleResult.Source)).
		Float64("cm_per_px", scaleResult.CmPerPx).
		Float64("est_image_width_cm", scaleResult.CmPerPx*float64(photo.WidthPx)).
		Msg("scale calibrated")

	// Orientation models run for reporting only; they do not affect cost.
	s.logOrientation(ctx, photo.Data, photoNum, log)

	damageLists := make([][]assessment.Detection, 0, len(detect.DamageRoles))
	modelAreas := make(map[string]float64, len(detect.DamageRoles))
	for _, role := range detect.DamageRoles {
		dets, err := s.detect(ctx, role, photo.Data, damageConf)
		if err != nil {
			return assessment.PhotoResult{}, err
		}
		damageLists = append(damageLists, dets)
		modelAreas[role] = damage.ModelArea(dets, scaleResult.CmPerPx)
	}

	items := consensus.Match(damageLists, s.iouThreshold)
	summary := damage.Aggregate(items, scaleResult.TireBoxes, scaleResult.CmPerPx)

	return assessment.PhotoResult{
		PhotoNum:     photoNum,
		PhotoURL:     url,
		Scale:        scaleResult,
		Items:        items,
		PaintAreaCm2: summary.PaintAreaCm2,
		PaintCost:    summary.PaintCost,
		Flags:        summary.Flags,
		ModelAreas:   modelAreas,
	}, nil
}

func (s *AssessmentService) detect(ctx context.Context, role string, imageData []byte, conf float64) ([]assessment.Detection, error) {
	d, err := s.capability.Detector(role)
	if err != nil {
		return nil, err
	}
	dets, err := d.Detect(ctx, imageData, conf)
	if err != nil {
		return nil, fmt.Errorf("detector %s: %w", role, err)
	}
	return dets, nil
}

func (s *AssessmentService) logOrientation(ctx context.Context, imageData []byte, photoNum int, log zerolog.Logger) {
	for _, role := range []struct {
		name string
		conf float64
	}{
		{detect.RoleSideHunter, sideHunterConf},
		{detect.RoleSideKulas, sideKulasConf},
	} {
		dets, err := s.detect(ctx, role.name, imageData, role.conf)
		if err != nil {
			log.Warn().Err(err).Int("photo", photoNum).Str("role", role.name).Msg("orientation detection failed")
			continue
		}
		if best := bestDetection(dets); best != nil {
			log.Debug().
				Int("photo", photoNum).
				Str("role", role.name).
				Str("side", best.Class).
				Float64("confidence", best.Confidence).
				Msg("orientation detected")
		}
	}
}

func bestDetection(dets []assessment.Detection) *assessment.Detection {
	var best *assessment.Detection
	for i := range dets {
		if best == nil || dets[i].Confidence > best.Confidence {
			best = &dets[i]
		}
	}
	return best
}

func (s *AssessmentService) publishReports(
	ctx context.Context,
	req assessment.Request,
	results []assessment.PhotoResult,
	breakdown assessment.CostBreakdown,
	modelTotals map[string]float64,
	consensusArea float64,
	log zerolog.Logger,
) {
	if s.renderer == nil || s.artifacts == nil {
		log.Debug().Msg("report publishing not configured, skipping")
		return
	}

	const contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	var invoiceURL, analysisURL string

	if data, err := s.renderer.Invoice(req, breakdown); err != nil {
		log.Warn().Err(err).Msg("invoice rendering failed")
	} else if url, err := s.artifacts.Upload(ctx, req.ID.String()+"/invoice.xlsx", data, contentType); err != nil {
		log.Warn().Err(err).Msg("invoice upload failed")
	} else {
		invoiceURL = url
	}

	if data, err := s.renderer.Analysis(req, results, modelTotals, consensusArea); err != nil {
		log.Warn().Err(err).Msg("analysis rendering failed")
	} else if url, err := s.artifacts.Upload(ctx, req.ID.String()+"/analysis.xlsx", data, contentType); err != nil {
		log.Warn().Err(err).Msg("analysis upload failed")
	} else {
		analysisURL = url
	}

	if invoiceURL == "" && analysisURL == "" {
		return
	}
	if err := s.store.SetArtifacts(ctx, req.ID, invoiceURL, analysisURL); err != nil {
		log.Warn().Err(err).Msg("failed to record artifact urls")
	}
}

func (s *AssessmentService) abort(ctx context.Context, id uuid.UUID, log zerolog.Logger, cause error) {
	log.Error().Err(cause).Msg("assessment failed")
	if err := s.store.Fail(ctx, id, cause.Error()); err != nil {
		log.Error().Err(err).Msg("failed to persist FAILED status")
	}
}

// Poll returns the job's externally visible state.
func (s *AssessmentService) Poll(ctx context.Context, id uuid.UUID) (*assessment.Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("assessment %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("poll assessment: %w", err)
	}
	return job, nil
}
