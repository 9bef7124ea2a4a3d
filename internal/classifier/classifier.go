// internal/classifier/classifier.go
package classifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"aquahub/internal/data"
)

// ErrClassification marks a classifier-side failure (bad response, transport
// error). Timeouts surface as context.DeadlineExceeded from the call.
var ErrClassification = errors.New("classification failed")

// Classifier turns a raw frame into a water-quality reading. Implementations
// are stateless external services; callers bound every call with a context
// deadline and may call concurrently across sites.
type Classifier interface {
	Classify(ctx context.Context, frame []byte) (data.Prediction, error)
}

// HTTPClassifier posts frames to an external inference service.
type HTTPClassifier struct {
	url    string
	client *http.Client
}

func NewHTTPClassifier(url string) *HTTPClassifier {
	return &HTTPClassifier{
		url:    url,
		client: &http.Client{}, // deadline comes from the request context
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, frame []byte) (data.Prediction, error) {
	body, err := json.Marshal(map[string]string{
		"image": base64.StdEncoding.EncodeToString(frame),
	})
	if err != nil {
		return data.Prediction{}, fmt.Errorf("%w: encode request: %v", ErrClassification, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return data.Prediction{}, fmt.Errorf("%w: %v", ErrClassification, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return data.Prediction{}, ctx.Err()
		}
		return data.Prediction{}, fmt.Errorf("%w: %v", ErrClassification, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return data.Prediction{}, fmt.Errorf("%w: inference service returned %d", ErrClassification, resp.StatusCode)
	}

	var result struct {
		Status          data.Status `json:"status"`
		Confidence      float64     `json:"confidence"`
		Turbidity       float64     `json:"turbidity"`
		PH              float64     `json:"ph"`
		ComplianceScore float64     `json:"compliance_score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return data.Prediction{}, fmt.Errorf("%w: decode response: %v", ErrClassification, err)
	}

	switch result.Status {
	case data.StatusClear, data.StatusModerate, data.StatusPollutant:
	default:
		return data.Prediction{}, fmt.Errorf("%w: unexpected status %q", ErrClassification, result.Status)
	}

	return data.Prediction{
		Timestamp:       time.Now().UTC(),
		Status:          result.Status,
		Confidence:      result.Confidence,
		Turbidity:       result.Turbidity,
		PH:              result.PH,
		ComplianceScore: result.ComplianceScore,
	}, nil
}
