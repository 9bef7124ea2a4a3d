// internal/data/models.go
package data

import "time"

// Status is the classification outcome for a single frame.
type Status string

const (
	StatusClear     Status = "clear"
	StatusModerate  Status = "moderate"
	StatusPollutant Status = "pollutant"
)

// Prediction is one normalized classifier reading for a site. Immutable after
// creation.
type Prediction struct {
	SiteID          string    `json:"site_id"`
	Timestamp       time.Time `json:"timestamp"`
	Status          Status    `json:"status"`
	Confidence      float64   `json:"confidence"`
	Turbidity       float64   `json:"turbidity"` // NTU
	PH              float64   `json:"ph"`
	ComplianceScore float64   `json:"compliance_score"`
}

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is recorded on a threshold crossing. Only acknowledgment mutates it
// after creation.
type Alert struct {
	ID           string    `json:"id"`
	SiteID       string    `json:"site_id"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`
}

// Frame is a transient camera frame. Consumed by the classifier, never stored.
type Frame struct {
	SiteID     string
	Payload    []byte
	ReceivedAt time.Time
}
