package stubllm

import (
	"context"
	"encoding/json"

	"purescan-service/llm"
)

// Client is a deterministic, no-network stand-in for the remote analysis
// call. It backs the demo fallback: when the real provider is unavailable
// or fails, the scan degrades to this fixed simulation result instead of
// surfacing an error. Also used directly in CI and local end-to-end tests.
type Client struct{}

func NewClient() *Client { return &Client{} }

func (c *Client) SourceName() string { return "Simulation" }

// simulation is the fixed demo verdict: a generic energy drink scoring 2.1.
// The shape matches the canonical result schema so the normalizer maps it
// without defaulting.
var simulation = map[string]any{
	"productName": "Energy Drink (Demo)",
	"score":       "2.1",
	"verdict":     "HIGH SUGAR AND STIMULANT CONTENT",
	"details": "The product puts a serious load on the cardiovascular system " +
		"and the pancreas. Strongly discouraged for children.",
	"nutrients": []map[string]any{
		{"label": "Sugar", "value": "11g", "status": "bad", "percentage": 95},
		{"label": "Caffeine", "value": "32mg", "status": "bad", "percentage": 80},
		{"label": "Taurine", "value": "240mg", "status": "neutral", "percentage": 40},
		{"label": "Vitamin B", "value": "1.2mg", "status": "good", "percentage": 20},
	},
	"additives": []map[string]any{
		{"code": "E129", "name": "Allura Red AC", "riskLevel": "high", "description": "Synthetic dye. Banned in several European countries. May contribute to hyperactivity in children."},
		{"code": "E211", "name": "Sodium benzoate", "riskLevel": "medium", "description": "Preservative. Can form benzene, a carcinogen, in combination with vitamin C."},
		{"code": "Sugar", "name": "Sugar syrup", "riskLevel": "high", "description": "Triggers insulin spikes; obesity risk."},
		{"code": "E330", "name": "Citric acid", "riskLevel": "low", "description": "Safe acidity regulator of natural origin."},
	},
	"pros": []string{"Energizing effect (short-lived)"},
	"cons": []string{"Critical sugar level", "Hazardous dyes", "Gastritis risk"},
}

// AnalyzeLabel returns the simulation result as a direct JSON document,
// regardless of the capture content.
func (c *Client) AnalyzeLabel(ctx context.Context, req llm.Request) (string, error) {
	b, err := json.Marshal(simulation)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
