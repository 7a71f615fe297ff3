// Package detection asks an external vision model to identify a product from
// a screenshot. Every provider is optional; callers treat any error as "no
// detection" and fall back to their own heuristics.
package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/uootd-quotes/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("uootd.internal.detection")

var (
	// ErrNotConfigured is returned when no provider is available.
	ErrNotConfigured = errors.New("detection: no provider configured")
	// ErrNoResult is returned when a provider answered with nothing usable.
	ErrNoResult = errors.New("detection: provider returned no usable result")
)

// Prompt is sent ahead of the image to every provider.
const Prompt = `You are a product identifier for luxury fashion items.
Return JSON ONLY with keys:
- product_name: concise product title (string)
- category: one of FOOTWEAR, BAG, ACCESSORY, UNKNOWN
- detected_msrp_usd: numeric MSRP in USD (number, can be null if unknown)
- description: one sentence marketing-style description (string)`

// Request is the input to a detection call.
type Request struct {
	// ImageURL is either a base64 data URL or an external URL.
	ImageURL string
	// CategoryHint is the category the caller already believes in.
	CategoryHint string
	// Description is optional free text typed by the visitor.
	Description string
}

// Result is the normalized provider answer. Any field may be empty.
type Result struct {
	ProductName       string
	Category          string
	ReferencePriceUSD *float64
	Description       string
}

// Detector identifies products.
type Detector interface {
	Name() string
	Detect(ctx context.Context, req Request) (*Result, error)
}

// Observer receives one call per provider attempt.
type Observer interface {
	ObserveDetection(provider, outcome string)
}

// Chain tries each detector in order and returns the first usable result.
type Chain struct {
	detectors []Detector
	logger    *logging.Logger
	observer  Observer
}

// NewChain builds a chain, skipping nil detectors.
func NewChain(logger *logging.Logger, observer Observer, detectors ...Detector) *Chain {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Chain{logger: logger.Component("detection"), observer: observer}
	for _, d := range detectors {
		if d != nil {
			c.detectors = append(c.detectors, d)
		}
	}
	return c
}

// Name implements Detector.
func (c *Chain) Name() string {
	names := make([]string, 0, len(c.detectors))
	for _, d := range c.detectors {
		names = append(names, d.Name())
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Configured reports whether at least one provider is present.
func (c *Chain) Configured() bool {
	return c != nil && len(c.detectors) > 0
}

// Detect implements Detector.
func (c *Chain) Detect(ctx context.Context, req Request) (*Result, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var errs []error
	for _, d := range c.detectors {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		result, err := c.try(ctx, d, req)
		if err == nil {
			c.observe(d.Name(), "ok")
			return result, nil
		}
		c.observe(d.Name(), outcome(err))
		c.logger.Warn("detection provider failed", "provider", d.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
	}
	return nil, errors.Join(errs...)
}

func (c *Chain) try(ctx context.Context, d Detector, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "detection."+d.Name())
	defer span.End()

	result, err := d.Detect(ctx, req)
	if err == nil && result == nil {
		err = ErrNoResult
	}
	span.SetAttributes(attribute.Bool("detection.ok", err == nil))
	return result, err
}

func (c *Chain) observe(provider, outcome string) {
	if c.observer != nil {
		c.observer.ObserveDetection(provider, outcome)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrNoResult):
		return "empty"
	default:
		return "error"
	}
}
