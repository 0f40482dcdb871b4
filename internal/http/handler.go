package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Icestreamm/baseer-backend/internal/config"
	"github.com/Icestreamm/baseer-backend/internal/domain/assessment"
	"github.com/Icestreamm/baseer-backend/internal/service"
)

type Handler struct {
	assessments *service.AssessmentService
	config      *config.Config
	log         zerolog.Logger
}

func NewHandler(
	assessments *service.AssessmentService,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		assessments: assessments,
		config:      cfg,
		log:         log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.GET("/assessments/:id", h.pollAssessment)
	}

	// Protected endpoints
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/assessments", h.submitAssessment)
	}
}

type submitRequest struct {
	AssessmentID     string   `json:"assessment_id"`
	PhotoURLs        []string `json:"photo_urls" binding:"required"`
	CarMake          string   `json:"car_make"`
	CarModel         string   `json:"car_model"`
	CarYear          int      `json:"car_year"`
	TireDiameter     float64  `json:"tire_diameter" binding:"required"`
	HandleWidth      float64  `json:"handle_width" binding:"required"`
	LicenseWidth     float64  `json:"license_width" binding:"required"`
	LuxuryIndex      float64  `json:"luxury_index" binding:"required"`
	Currency         string   `json:"currency" binding:"required"`
	ExchangeRate     float64  `json:"currency_exchange_rate" binding:"required"`
	CountryLuxFactor float64  `json:"country_lux_factor" binding:"required"`
	TaxRate          float64  `json:"tax_rate"`
}

func (h *Handler) submitAssessment(c *gin.Context) {
	var payload submitRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	req := assessment.Request{
		PhotoURLs: payload.PhotoURLs,
		CarMake:   payload.CarMake,
		CarModel:  payload.CarModel,
		CarYear:   payload.CarYear,
		Measurements: assessment.ReferenceMeasurements{
			TireDiameter: payload.TireDiameter,
			HandleWidth:  payload.HandleWidth,
			LicenseWidth: payload.LicenseWidth,
		},
		Economics: assessment.EconomicParams{
			ExchangeRate:     payload.ExchangeRate,
			TaxRate:          payload.TaxRate,
			LuxuryIndex:      payload.LuxuryIndex,
			CountryLuxFactor: payload.CountryLuxFactor,
			Currency:         payload.Currency,
		},
	}
	if payload.AssessmentID != "" {
		id, err := uuid.Parse(payload.AssessmentID)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("assessment_id must be a UUID"))
			return
		}
		req.ID = id
	}

	h.log.Info().
		Str("assessment_id", payload.AssessmentID).
		Int("photos", len(payload.PhotoURLs)).
		Msg("processing assessment submission")

	id, err := h.assessments.Submit(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			h.log.Warn().Err(err).Msg("invalid assessment submission")
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		h.log.Error().Err(err).Msg("failed to submit assessment")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"assessment_id": id,
		"status":        assessment.StatusPending,
		"message":       "assessment processing started",
	})
}

type pollResponse struct {
	AssessmentID string                    `json:"assessment_id"`
	Status       assessment.Status         `json:"status"`
	Progress     int                       `json:"progress"`
	Error        string                    `json:"error,omitempty"`
	Cost         *assessment.CostBreakdown `json:"cost,omitempty"`
}

func (h *Handler) pollAssessment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("id must be a UUID"))
		return
	}

	job, err := h.assessments.Poll(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("assessment not found"))
			return
		}
		h.log.Error().Err(err).Str("assessment_id", id.String()).Msg("failed to poll assessment")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusOK, pollResponse{
		AssessmentID: job.ID.String(),
		Status:       job.Status,
		Progress:     job.Progress,
		Error:        job.Error,
		Cost:         job.Cost,
	})
}
