// Package quote turns an uploaded screenshot into a priced offer.
package quote

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/uootd-quotes/internal/detection"
	"github.com/wolfman30/uootd-quotes/internal/pricing"
	"github.com/wolfman30/uootd-quotes/internal/storage"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

var tracer = otel.Tracer("uootd.internal.quote")

const (
	// DefaultDetectionTimeout bounds the provider call.
	DefaultDetectionTimeout = 12 * time.Second

	defaultProductName = "Detected item"
	defaultDescription = "Private quote prepared from your screenshot."

	// Price sources reported in responses and metrics.
	SourceDetection = "detection"
	SourceDefault   = "default"
)

// Request is the visitor's quote request.
type Request struct {
	ImageURL string `json:"imageUrl"`
	// Category is an explicit hint; DemoType is accepted as an alias.
	Category    string `json:"category,omitempty"`
	DemoType    string `json:"demoType,omitempty"`
	Description string `json:"description,omitempty"`
}

// Response is returned to the storefront.
type Response struct {
	ID              string         `json:"id"`
	Category        Category       `json:"category"`
	ProductName     string         `json:"product_name"`
	Description     string         `json:"description"`
	DetectedMSRPUSD float64        `json:"detected_msrp_usd"`
	QuoteUSD        int            `json:"quote_usd"`
	NormalQuoteUSD  int            `json:"normal_quote_usd"`
	Status          pricing.Status `json:"status"`
	Capped          bool           `json:"capped"`
	PriceSource     string         `json:"price_source"`
	MarketingCopy   MarketingCopy  `json:"marketing_copy"`
}

// AssetStore persists the screenshot for a quote.
type AssetStore interface {
	Put(ctx context.Context, quoteID, imageURL string) storage.Backend
}

// Observer receives one call per generated quote.
type Observer interface {
	ObserveQuote(category, source string, elapsed time.Duration)
}

// Options tune a Service.
type Options struct {
	Rules            pricing.Rules
	DetectionTimeout time.Duration
	Logger           *logging.Logger
	Observer         Observer
	NewID            func() string
}

// Service orchestrates detection, pricing and asset persistence.
type Service struct {
	detector detection.Detector
	assets   AssetStore
	rules    pricing.Rules
	timeout  time.Duration
	logger   *logging.Logger
	obs      Observer
	newID    func() string
}

// NewService creates a quote service. detector and assets may be nil.
func NewService(detector detection.Detector, assets AssetStore, opts Options) *Service {
	if opts.Rules == (pricing.Rules{}) {
		opts.Rules = pricing.DefaultRules
	}
	if opts.DetectionTimeout <= 0 {
		opts.DetectionTimeout = DefaultDetectionTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Service{
		detector: detector,
		assets:   assets,
		rules:    opts.Rules,
		timeout:  opts.DetectionTimeout,
		logger:   opts.Logger.Component("quote"),
		obs:      opts.Observer,
		newID:    opts.NewID,
	}
}

// Generate prices a request. Detection and storage failures degrade to
// heuristics; the only error is a caller context that is already done.
func (s *Service) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	ctx, span := tracer.Start(ctx, "quote.Generate")
	defer span.End()

	requested := s.requestedCategory(req)
	detected := s.detect(ctx, req, requested)

	category := requested
	if detected != nil {
		if c := ParseCategory(detected.Category); c.Known() {
			category = c
		}
	}

	msrp, source := DefaultReferencePrice(category), SourceDefault
	if detected != nil && detected.ReferencePriceUSD != nil && *detected.ReferencePriceUSD > 0 {
		msrp, source = *detected.ReferencePriceUSD, SourceDetection
	}

	computed := s.rules.ComputeQuote(msrp)
	resp := &Response{
		ID:              s.newID(),
		Category:        category,
		ProductName:     firstNonEmpty(detectedField(detected, func(r *detection.Result) string { return r.ProductName }), req.Description, defaultProductName),
		Description:     firstNonEmpty(detectedField(detected, func(r *detection.Result) string { return r.Description }), req.Description, defaultDescription),
		DetectedMSRPUSD: msrp,
		QuoteUSD:        computed.QuoteUSD,
		NormalQuoteUSD:  s.rules.ComputeNormalQuote(float64(computed.QuoteUSD)),
		Status:          computed.Status,
		Capped:          computed.Capped,
		PriceSource:     source,
		MarketingCopy:   CopyFor(category),
	}

	s.persistAsset(ctx, resp.ID, req.ImageURL)

	span.SetAttributes(
		attribute.String("quote.category", string(category)),
		attribute.String("quote.price_source", source),
		attribute.Int("quote.usd", resp.QuoteUSD),
		attribute.Bool("quote.capped", resp.Capped),
	)
	if s.obs != nil {
		s.obs.ObserveQuote(string(category), source, time.Since(start))
	}
	s.logger.Info("quote generated",
		"quote_id", resp.ID,
		"category", category,
		"price_source", source,
		"quote_usd", resp.QuoteUSD,
		"capped", resp.Capped,
	)
	return resp, nil
}

func (s *Service) requestedCategory(req Request) Category {
	hint := req.Category
	if strings.TrimSpace(hint) == "" {
		hint = req.DemoType
	}
	if c := ParseCategory(hint); c.Known() {
		return c
	}
	// Inline payloads are base64 noise; only match against real URLs.
	imageHint := req.ImageURL
	if strings.HasPrefix(imageHint, "data:") {
		imageHint = ""
	}
	return InferCategory(imageHint, req.Description)
}

func (s *Service) detect(ctx context.Context, req Request, requested Category) *detection.Result {
	if s.detector == nil || strings.TrimSpace(req.ImageURL) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.detector.Detect(ctx, detection.Request{
		ImageURL:     req.ImageURL,
		CategoryHint: string(requested),
		Description:  strings.TrimSpace(req.Description),
	})
	if err != nil {
		if errors.Is(err, detection.ErrNotConfigured) {
			s.logger.Debug("detection not configured, using heuristics")
		} else {
			s.logger.Warn("detection failed, using heuristics", "error", err)
		}
		return nil
	}
	return result
}

func (s *Service) persistAsset(ctx context.Context, quoteID, imageURL string) {
	if s.assets == nil || imageURL == "" {
		return
	}
	// The visitor may already have gone; the asset is still worth keeping.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if backend := s.assets.Put(ctx, quoteID, imageURL); !backend.OK() {
		s.logger.Warn("quote asset not stored", "quote_id", quoteID)
	}
}

func detectedField(r *detection.Result, get func(*detection.Result) string) string {
	if r == nil {
		return ""
	}
	return get(r)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
