// Package detect provides the object-detection capability as an external
// HTTP collaborator. Models are served behind a prediction endpoint; this
// package never runs inference in-process.
package detect

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Icestreamm/baseer-backend/internal/domain/assessment"
)

// Detector returns detections for an image. Detections below the given
// confidence threshold are dropped; malformed input surfaces as an empty
// result, not an error.
type Detector interface {
	Detect(ctx context.Context, imageData []byte, minConfidence float64) ([]assessment.Detection, error)
}

// HTTPDetector calls a YOLO serving endpoint. The endpoint accepts a raw
// base64 image body on POST /predict and answers with named predictions in
// top-left/width/height pixel coordinates.
type HTTPDetector struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewHTTPDetector(baseURL, model string, client *http.Client) *HTTPDetector {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPDetector{baseURL: baseURL, model: model, client: client}
}

type prediction struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
}

type predictResponse struct {
	Predictions []prediction `json:"predictions"`
}

func (d *HTTPDetector) Detect(ctx context.Context, imageData []byte, minConfidence float64) ([]assessment.Detection, error) {
	body := base64.StdEncoding.EncodeToString(imageData)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/predict", bytes.NewBufferString(body))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict call for model %s: %w", d.model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("predict call for model %s: unexpected status %d", d.model, resp.StatusCode)
	}

	var parsed predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode predict response for model %s: %w", d.model, err)
	}

	detections := make([]assessment.Detection, 0, len(parsed.Predictions))
	for _, p := range parsed.Predictions {
		if p.Confidence < minConfidence {
			continue
		}
		detections = append(detections, assessment.Detection{
			Box: assessment.Box{
				X1: p.X,
				Y1: p.Y,
				X2: p.X + p.Width,
				Y2: p.Y + p.Height,
			},
			Confidence: p.Confidence,
			Class:      p.Class,
			Model:      d.model,
		})
	}
	return detections, nil
}

// Ping checks the serving endpoint reports a loaded model.
func (d *HTTPDetector) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check for model %s: %w", d.model, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check for model %s: status %d", d.model, resp.StatusCode)
	}

	var health struct {
		ModelLoaded bool `json:"model_loaded"`
	}
	if err := json.Unmarshal(raw, &health); err != nil {
		return fmt.Errorf("decode health response for model %s: %w", d.model, err)
	}
	if !health.ModelLoaded {
		return fmt.Errorf("model %s is not loaded on serving endpoint", d.model)
	}
	return nil
}
