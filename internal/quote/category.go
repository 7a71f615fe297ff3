package quote

import "strings"

// Category is the closed set of product families we quote.
type Category string

const (
	CategoryFootwear  Category = "FOOTWEAR"
	CategoryBag       Category = "BAG"
	CategoryAccessory Category = "ACCESSORY"
	CategoryUnknown   Category = "UNKNOWN"
)

// ParseCategory maps free text onto a Category, UNKNOWN for anything else.
func ParseCategory(value string) Category {
	switch c := Category(strings.ToUpper(strings.TrimSpace(value))); c {
	case CategoryFootwear, CategoryBag, CategoryAccessory:
		return c
	default:
		return CategoryUnknown
	}
}

// Known reports whether c is one of the concrete categories.
func (c Category) Known() bool {
	return c == CategoryFootwear || c == CategoryBag || c == CategoryAccessory
}

var categoryKeywords = []struct {
	category Category
	words    []string
}{
	{CategoryFootwear, []string{"shoe", "boot", "sneaker"}},
	{CategoryBag, []string{"bag", "tote"}},
	{CategoryAccessory, []string{"watch"}},
}

// InferCategory guesses from keywords in texts, defaulting to BAG.
func InferCategory(texts ...string) Category {
	hint := strings.ToLower(strings.Join(texts, " "))
	for _, k := range categoryKeywords {
		for _, w := range k.words {
			if strings.Contains(hint, w) {
				return k.category
			}
		}
	}
	return CategoryBag
}

// DefaultReferencePrice is used when detection yields no price.
func DefaultReferencePrice(c Category) float64 {
	switch c {
	case CategoryFootwear:
		return 780
	case CategoryBag:
		return 980
	default:
		return 2400
	}
}

// MarketingCopy is the localized blurb shown with a quote.
type MarketingCopy struct {
	EN string `json:"en"`
	PT string `json:"pt"`
	ES string `json:"es"`
}

var marketingCopy = map[Category]MarketingCopy{
	CategoryFootwear: {
		EN: "Verified luxury footwear, inspected by our concierge and ready to ship.",
		PT: "Calçado de luxo verificado, inspecionado pelo nosso concierge e pronto para envio.",
		ES: "Calzado de lujo verificado, inspeccionado por nuestro concierge y listo para enviar.",
	},
	CategoryBag: {
		EN: "A verified luxury bag, sourced and inspected before it ships.",
		PT: "Bolsa de luxo verificada, selecionada e inspecionada antes do envio.",
		ES: "Bolso de lujo verificado, seleccionado e inspeccionado antes del envío.",
	},
	CategoryAccessory: {
		EN: "A verified luxury accessory, checked piece by piece by our concierge team.",
		PT: "Acessório de luxo verificado, conferido peça por peça pela nossa equipe concierge.",
		ES: "Accesorio de lujo verificado, revisado pieza por pieza por nuestro equipo concierge.",
	},
}

// CopyFor returns the fixed copy for c.
func CopyFor(c Category) MarketingCopy {
	if mc, ok := marketingCopy[c]; ok {
		return mc
	}
	return MarketingCopy{
		EN: "Your private quote is ready. Our concierge will confirm the details.",
		PT: "Sua cotação privada está pronta. Nosso concierge confirmará os detalhes.",
		ES: "Tu cotización privada está lista. Nuestro concierge confirmará los detalles.",
	}
}
