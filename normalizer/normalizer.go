package normalizer

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"purescan-service/models"
	"purescan-service/prompt"
)

// Defaults applied when a field cannot be resolved from the raw response.
const (
	DefaultProductName  = "Unknown Product"
	DefaultVerdict      = "ANALYSIS COMPLETE"
	DefaultScore        = "0.0"
	defaultAdditiveDesc = "See full report"
)

var (
	numberRe  = regexp.MustCompile(`-?\d+(?:[.,]\d+)?`)
	eCodeRe   = regexp.MustCompile(`E\d{3,4}`)
	verdictRe = regexp.MustCompile(`(?m)^Verdict:\s*(.+)$`)

	maxScore = decimal.RequireFromString("10.0")
)

// Normalize converts a raw model response into the canonical ScanResult
// shape. The ID is left empty; identity is assigned by the caller.
//
// The raw string may be a direct JSON document, plain text followed by a
// JSON_DATA block (possibly fenced in markdown), or arbitrary text with no
// JSON at all. Normalize never fails: unresolvable fields degrade to
// defaults so a partially understood response still renders a usable
// result. It is a pure function of its input.
func Normalize(raw string) models.ScanResult {
	payload, report := detect(raw)

	result := models.ScanResult{
		Nutrients: []models.Nutrient{},
		Additives: []models.Additive{},
		Pros:      []string{},
		Cons:      []string{},
	}

	result.Details = report
	if report == "" {
		result.Details, _ = getString(payload, "details", "report")
	}

	result.ProductName, _ = getString(payload, "productName", "product_name", "name_label", "name")
	if result.ProductName == "" {
		result.ProductName = DefaultProductName
	}

	score, ok := resolveScore(payload)
	if !ok {
		result.Score = DefaultScore
		result.Status = models.StatusDanger
	} else {
		result.Score = score.StringFixed(1)
		// Status is always recomputed from the resolved score, never
		// trusted from the source, so the status/score invariant holds.
		result.Status = models.StatusForScore(score)
	}

	result.Verdict = resolveVerdict(payload, report)
	result.Nutrients = resolveNutrients(payload)
	result.Additives = resolveAdditives(payload, report)
	result.Pros, result.Cons = resolveProsCons(payload)

	return result
}

// detect classifies the raw response. It attempts, in order: a direct JSON
// parse; a split on the JSON_DATA delimiter with markdown fences stripped
// from the trailing segment; finally the whole string is treated as an
// unstructured text report.
func detect(raw string) (map[string]any, string) {
	trimmed := strings.TrimSpace(raw)

	if payload, ok := parseJSONObject(trimmed); ok {
		return payload, ""
	}

	if idx := strings.Index(trimmed, prompt.Delimiter); idx >= 0 {
		report := strings.TrimSpace(trimmed[:idx])
		tail := trimmed[idx+len(prompt.Delimiter):]
		if payload, ok := parseJSONObject(tail); ok {
			return payload, report
		}
		return nil, report
	}

	return nil, trimmed
}

func parseJSONObject(s string) (map[string]any, bool) {
	cleaned := strings.ReplaceAll(s, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" || !strings.HasPrefix(cleaned, "{") {
		return nil, false
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, false
	}
	return payload, true
}

// resolveScore looks up the health score under its known key shapes: a bare
// "score" field (string or number), or nested under a scoring object as
// "formatted" or "value". The result is clamped to [0.0, 10.0].
func resolveScore(payload map[string]any) (decimal.Decimal, bool) {
	candidates := []any{}
	if v, ok := payload["score"]; ok {
		candidates = append(candidates, v)
	}
	if scoring := getMap(payload, "scoring"); scoring != nil {
		if v, ok := scoring["formatted"]; ok {
			candidates = append(candidates, v)
		}
		if v, ok := scoring["value"]; ok {
			candidates = append(candidates, v)
		}
	}

	for _, c := range candidates {
		if d, ok := coerceNumber(c); ok {
			if d.IsNegative() {
				d = decimal.Zero
			}
			if d.GreaterThan(maxScore) {
				d = maxScore
			}
			return d, true
		}
	}
	return decimal.Zero, false
}

func resolveVerdict(payload map[string]any, report string) string {
	if v, ok := getString(payload, "verdict"); ok {
		return v
	}
	if m := verdictRe.FindStringSubmatch(report); m != nil {
		return strings.TrimSpace(m[1])
	}
	return DefaultVerdict
}

// nutrientDef describes one row of the per-100g nutrition lookup, with the
// thresholds used to classify the reading.
type nutrientDef struct {
	keys       []string
	label      string
	unit       string
	threshBad  decimal.Decimal
	threshGood decimal.Decimal
	moreIsGood bool
}

var nutrientDefs = []nutrientDef{
	{keys: []string{"kcal", "calories"}, label: "Calories", unit: "kcal", threshBad: decimal.NewFromInt(400), threshGood: decimal.NewFromInt(100)},
	{keys: []string{"sugars", "sugar"}, label: "Sugar", unit: "g", threshBad: decimal.NewFromInt(10), threshGood: decimal.NewFromInt(5)},
	{keys: []string{"salt"}, label: "Salt", unit: "g", threshBad: decimal.RequireFromString("1.2"), threshGood: decimal.RequireFromString("0.5")},
	{keys: []string{"fat"}, label: "Fat", unit: "g", threshBad: decimal.NewFromInt(20), threshGood: decimal.NewFromInt(5)},
	{keys: []string{"protein"}, label: "Protein", unit: "g", threshGood: decimal.NewFromInt(10), moreIsGood: true},
}

func resolveNutrients(payload map[string]any) []models.Nutrient {
	nutrients := []models.Nutrient{}

	// Canonical shape first: a "nutrients" array of {label, value, status,
	// percentage} entries.
	if entries := getSlice(payload, "nutrients"); entries != nil {
		for _, e := range entries {
			m, ok := e.(map[string]any)
			if !ok {
				continue
			}
			label, lok := getString(m, "label")
			value, vok := getString(m, "value")
			if !lok || !vok {
				continue
			}
			n := models.Nutrient{Label: label, Value: value, Status: models.NutrientNeutral}
			if s, ok := getString(m, "status"); ok {
				switch models.NutrientStatus(s) {
				case models.NutrientGood, models.NutrientBad, models.NutrientNeutral:
					n.Status = models.NutrientStatus(s)
				}
			}
			if p, ok := m["percentage"].(float64); ok {
				pct := int(p)
				n.Percentage = &pct
			}
			nutrients = append(nutrients, n)
		}
		return nutrients
	}

	// Prompt-schema shape: per-100g values nested under nutrition, possibly
	// one level deeper under nutrition_per_100.
	per100 := getMap(payload, "nutrition")
	if nested := getMap(per100, "nutrition_per_100"); nested != nil {
		per100 = nested
	}
	if per100 == nil {
		return nutrients
	}

	for _, def := range nutrientDefs {
		var raw any
		found := false
		for _, key := range def.keys {
			if v, ok := per100[key]; ok {
				raw, found = v, true
				break
			}
		}
		if !found {
			continue
		}
		// Values may arrive as strings with embedded units ("11g",
		// "345 kcal"). Entries that cannot be coerced are dropped rather
		// than failing the scan.
		val, ok := coerceNumber(raw)
		if !ok {
			continue
		}

		status := models.NutrientNeutral
		if def.moreIsGood {
			if val.GreaterThanOrEqual(def.threshGood) {
				status = models.NutrientGood
			}
		} else {
			switch {
			case val.GreaterThanOrEqual(def.threshBad):
				status = models.NutrientBad
			case val.LessThanOrEqual(def.threshGood):
				status = models.NutrientGood
			}
		}

		pct := 50
		nutrients = append(nutrients, models.Nutrient{
			Label:      def.label,
			Value:      val.String() + def.unit,
			Status:     status,
			Percentage: &pct,
		})
	}
	return nutrients
}

func resolveAdditives(payload map[string]any, report string) []models.Additive {
	additives := []models.Additive{}
	entries := getSlice(payload, "additives")
	for _, e := range entries {
		switch v := e.(type) {
		case string:
			code := eCodeRe.FindString(v)
			additives = append(additives, models.Additive{
				Code:        code,
				Name:        v,
				RiskLevel:   inferRisk("", code, report),
				Description: defaultAdditiveDesc,
			})
		case map[string]any:
			a := models.Additive{Description: defaultAdditiveDesc}
			a.Code, _ = getString(v, "e_code", "code")
			a.Name, _ = getString(v, "name", "canonical_name")
			if a.Name == "" {
				a.Name = a.Code
			}
			if a.Code == "" {
				a.Code = eCodeRe.FindString(a.Name)
			}
			if d, ok := getString(v, "description"); ok {
				a.Description = d
			}
			risk, _ := getString(v, "riskLevel", "risk_level", "risk")
			a.RiskLevel = inferRisk(risk, a.Code, report)
			additives = append(additives, a)
		}
	}
	return additives
}

// inferRisk accepts a risk value only when it is one of the enumerated
// levels; otherwise it falls back to qualitative signals in the text report
// (the report flags risky additives with a warning marker) and finally
// defaults to medium.
func inferRisk(risk, code, report string) models.RiskLevel {
	switch models.RiskLevel(strings.ToLower(strings.TrimSpace(risk))) {
	case models.RiskLow:
		return models.RiskLow
	case models.RiskMedium:
		return models.RiskMedium
	case models.RiskHigh:
		return models.RiskHigh
	}
	if code != "" && strings.Contains(report, "⚠️ "+code) {
		return models.RiskHigh
	}
	return models.RiskMedium
}

func resolveProsCons(payload map[string]any) ([]string, []string) {
	pros := stringSlice(getSlice(payload, "pros"))
	cons := stringSlice(getSlice(payload, "cons"))
	if len(pros) > 0 || len(cons) > 0 {
		return pros, cons
	}

	// Derive from classified ingredients when explicit lists are absent.
	for _, e := range getSlice(payload, "ingredients") {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		name, _ := getString(m, "canonical_name", "label_text")
		if name == "" {
			continue
		}
		class, _ := getString(m, "class_label")
		confidence, _ := getString(m, "confidence")
		switch class {
		case "BENEFICIAL":
			pros = append(pros, name)
		case "HARMFUL", "UNDESIRABLE", "POTENTIALLY HARMFUL":
			cons = append(cons, name)
		default:
			if confidence == "HIGH" {
				pros = append(pros, name)
			}
		}
	}
	return pros, cons
}

func stringSlice(entries []any) []string {
	out := []string{}
	for _, e := range entries {
		if s, ok := e.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getString(m map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s), true
			}
		}
	}
	return "", false
}

func getMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

func getSlice(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	if v, ok := m[key].([]any); ok {
		return v
	}
	return nil
}

// coerceNumber converts a JSON value to a decimal. Strings may carry unit
// suffixes or other noise; the first embedded number is used.
func coerceNumber(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		match := numberRe.FindString(n)
		if match == "" {
			return decimal.Zero, false
		}
		match = strings.ReplaceAll(match, ",", ".")
		d, err := decimal.NewFromString(match)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}
