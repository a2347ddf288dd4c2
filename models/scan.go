package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status classifies a scanned product by its health score.
type Status string

const (
	StatusSafe    Status = "safe"
	StatusWarning Status = "warning"
	StatusDanger  Status = "danger"
)

// RiskLevel classifies a flagged additive.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// NutrientStatus classifies a single nutrient reading.
type NutrientStatus string

const (
	NutrientGood    NutrientStatus = "good"
	NutrientBad     NutrientStatus = "bad"
	NutrientNeutral NutrientStatus = "neutral"
)

var (
	safeThreshold    = decimal.RequireFromString("8.0")
	warningThreshold = decimal.RequireFromString("4.0")
)

// StatusForScore derives the product status from a health score.
// The lower bounds are closed: exactly 8.0 is safe, exactly 4.0 is warning.
func StatusForScore(score decimal.Decimal) Status {
	switch {
	case score.GreaterThanOrEqual(safeThreshold):
		return StatusSafe
	case score.GreaterThanOrEqual(warningThreshold):
		return StatusWarning
	default:
		return StatusDanger
	}
}

// Additive is a flagged ingredient with an associated risk classification.
type Additive struct {
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	RiskLevel   RiskLevel `json:"riskLevel"`
	Description string    `json:"description"`
}

// Nutrient is a single row of the nutrient breakdown.
type Nutrient struct {
	Label      string         `json:"label"`
	Value      string         `json:"value"`
	Status     NutrientStatus `json:"status"`
	Percentage *int           `json:"percentage,omitempty"`
}

// ScanResult is the canonical, fixed-shape output of one label analysis.
// A ScanResult is immutable once constructed; corrections produce a new
// record appended to history. Nutrients, Additives, Pros and Cons are
// never nil: absent data is an empty slice.
type ScanResult struct {
	ID          string     `json:"id"`
	ProductName string     `json:"productName,omitempty"`
	Status      Status     `json:"status"`
	Score       string     `json:"score"`
	Verdict     string     `json:"verdict"`
	Details     string     `json:"details"`
	Nutrients   []Nutrient `json:"nutrients"`
	Additives   []Additive `json:"additives"`
	Pros        []string   `json:"pros"`
	Cons        []string   `json:"cons"`
	ImageURL    string     `json:"imageUrl,omitempty"`
}

// HistoryItem is a lightweight index entry wrapping a completed ScanResult.
type HistoryItem struct {
	ID          string     `json:"id"`
	Date        time.Time  `json:"date"`
	ProductName string     `json:"productName"`
	Score       string     `json:"score"`
	Status      Status     `json:"status"`
	RawResult   ScanResult `json:"rawResult"`
}

// ScanCompletedEvent is published to the message bus after a scan finishes.
type ScanCompletedEvent struct {
	UserID    string     `json:"user_id"`
	Outcome   string     `json:"outcome"` // "normalized" or "fallback"
	Source    string     `json:"source"`
	Result    ScanResult `json:"result"`
	Timestamp time.Time  `json:"timestamp"`
}
