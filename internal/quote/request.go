package quote

import "encoding/json"

// UnmarshalJSON accepts any JSON value for each field and keeps only
// strings, so a mistyped field reads as absent instead of failing the request.
func (r *Request) UnmarshalJSON(b []byte) error {
	var raw struct {
		ImageURL    any `json:"imageUrl"`
		Category    any `json:"category"`
		DemoType    any `json:"demoType"`
		Description any `json:"description"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*r = Request{
		ImageURL:    stringOrEmpty(raw.ImageURL),
		Category:    stringOrEmpty(raw.Category),
		DemoType:    stringOrEmpty(raw.DemoType),
		Description: stringOrEmpty(raw.Description),
	}
	return nil
}

func stringOrEmpty(v any) string {
	s, _ := v.(string)
	return s
}
