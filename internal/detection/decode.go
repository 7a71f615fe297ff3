package detection

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Field names seen in provider answers, most specific first.
var (
	nameKeys        = []string{"product_name", "productName", "name", "title"}
	categoryKeys    = []string{"category", "product_category", "type"}
	priceKeys       = []string{"detected_msrp_usd", "detectedMsrpUsd", "msrp", "msrp_usd", "price_usd", "price", "reference_price_usd", "referencePriceUsd"}
	descriptionKeys = []string{"description", "summary"}
	// Wrappers some models put around the object we asked for.
	nestedKeys = []string{"product", "result", "data", "item"}
)

var (
	codeFence    = regexp.MustCompile("(?is)^```(?:json)?\\s*(.*?)\\s*```$")
	nonNumeric   = regexp.MustCompile(`[^0-9.]`)
	priceAmounts = []string{"amount", "value", "usd"}
)

// Decode extracts a Result from raw provider text. It tolerates code fences,
// prose around the JSON object, wrapper objects and prices given as strings
// with currency symbols. ok is false when nothing usable was found.
func Decode(raw string) (*Result, bool) {
	obj, ok := parseObject(raw)
	if !ok {
		return nil, false
	}

	candidates := []map[string]any{obj}
	for _, key := range nestedKeys {
		if nested, ok := obj[key].(map[string]any); ok {
			candidates = append(candidates, nested)
		}
	}

	var result Result
	for _, c := range candidates {
		if result.ProductName == "" {
			result.ProductName = firstString(c, nameKeys)
		}
		if result.Category == "" {
			result.Category = firstString(c, categoryKeys)
		}
		if result.ReferencePriceUSD == nil {
			result.ReferencePriceUSD = firstPrice(c, priceKeys)
		}
		if result.Description == "" {
			result.Description = firstString(c, descriptionKeys)
		}
	}

	if result == (Result{}) {
		return nil, false
	}
	return &result, true
}

func parseObject(raw string) (map[string]any, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, false
	}
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start < 0 || end <= start {
			return nil, false
		}
		if err := json.Unmarshal([]byte(text[start:end+1]), &value); err != nil {
			return nil, false
		}
	}

	switch v := value.(type) {
	case map[string]any:
		return v, true
	case []any:
		if len(v) > 0 {
			if obj, ok := v[0].(map[string]any); ok {
				return obj, true
			}
		}
	}
	return nil, false
}

func firstString(obj map[string]any, keys []string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstPrice(obj map[string]any, keys []string) *float64 {
	for _, key := range keys {
		if v, ok := ToNumber(obj[key]); ok && v > 0 {
			return &v
		}
	}
	return nil
}

// ToNumber coerces JSON numbers, numeric strings ("$1,250.00") and
// {"amount": n} objects into a finite float.
func ToNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return ToNumber(f)
	case string:
		cleaned := nonNumeric.ReplaceAllString(v, "")
		if cleaned == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, false
		}
		return ToNumber(f)
	case map[string]any:
		for _, key := range priceAmounts {
			if f, ok := ToNumber(v[key]); ok {
				return f, true
			}
		}
	}
	return 0, false
}
