package leads

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Tier is the price tier the visitor picked.
type Tier string

const (
	TierPremium Tier = "premium"
	TierNormal  Tier = "normal"
)

// Channel is how the lead reached us.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
	ChannelManual   Channel = "manual"
)

// Lead is a captured contact record. Nil numbers mean "unknown" or, for
// QuoteUSD, "needs manual pricing".
type Lead struct {
	ID               string    `json:"id"`
	CreatedAt        time.Time `json:"createdAt"`
	QuoteID          string    `json:"quoteId,omitempty"`
	Category         string    `json:"category,omitempty"`
	ProductName      string    `json:"productName,omitempty"`
	DetectedMSRPUSD  *float64  `json:"detectedMsrpUsd"`
	QuoteUSD         *float64  `json:"quoteUsd"`
	NormalQuoteUSD   *float64  `json:"normalQuoteUsd"`
	SelectedTier     Tier      `json:"selectedTier,omitempty"`
	SelectedQuoteUSD *float64  `json:"selectedQuoteUsd"`
	Status           string    `json:"status,omitempty"`
	Channel          Channel   `json:"channel,omitempty"`
	PayPal           string    `json:"paypal"`
	WhatsApp         string    `json:"whatsapp"`
	WhatsAppE164     string    `json:"whatsappE164,omitempty"`
	Size             string    `json:"size,omitempty"`
	Note             string    `json:"note,omitempty"`
	ImageURL         string    `json:"imageUrl,omitempty"`
	SourceIP         string    `json:"sourceIp,omitempty"`
}

// Text decodes only JSON strings, trimmed. Any other JSON value becomes "".
type Text string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		*t = ""
		return nil
	}
	*t = Text(strings.TrimSpace(s))
	return nil
}

// Number decodes JSON numbers and numeric strings. Anything else, including
// null, non-finite values and blank strings, decodes to a nil Value.
type Number struct {
	Value *float64
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	n.Value = nil
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		n.Value = finite(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			n.Value = finite(f)
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	if n.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.Value)
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// CreateLeadRequest is the body of POST /api/leads. Every field decodes
// leniently; only the two contacts are required.
type CreateLeadRequest struct {
	QuoteID          Text   `json:"quoteId"`
	Category         Text   `json:"category"`
	ProductName      Text   `json:"productName"`
	DetectedMSRPUSD  Number `json:"detectedMsrpUsd"`
	QuoteUSD         Number `json:"quoteUsd"`
	NormalQuoteUSD   Number `json:"normalQuoteUsd"`
	SelectedTier     Text   `json:"selectedTier"`
	SelectedQuoteUSD Number `json:"selectedQuoteUsd"`
	Status           Text   `json:"status"`
	Channel          Text   `json:"channel"`
	PayPal           Text   `json:"paypal" validate:"required"`
	WhatsApp         Text   `json:"whatsapp" validate:"required"`
	Size             Text   `json:"size"`
	Note             Text   `json:"note"`
	ImageURL         Text   `json:"imageUrl"`
}

func parseTier(v Text) Tier {
	switch t := Tier(v); t {
	case TierPremium, TierNormal:
		return t
	}
	return ""
}

func parseChannel(v Text) Channel {
	switch c := Channel(v); c {
	case ChannelWhatsApp, ChannelEmail, ChannelManual:
		return c
	}
	return ""
}
