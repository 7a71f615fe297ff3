package leads

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/uootd-quotes/internal/storage"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

var tracer = otel.Tracer("uootd.internal.leads")

// AssetDeleter removes the screenshot linked to a quote.
type AssetDeleter interface {
	Delete(ctx context.Context, quoteID string) bool
}

// Notifier hears about every captured lead. Implementations must not block.
type Notifier interface {
	LeadCaptured(ctx context.Context, lead Lead)
}

// CreateMeta carries request facts that never come from the body.
type CreateMeta struct {
	SourceIP      string
	Authenticated bool
}

// ListResult is the admin view of stored leads.
type ListResult struct {
	Leads  []Lead          `json:"leads"`
	Count  int             `json:"count"`
	Source storage.Backend `json:"source"`
}

// DeleteResult reports what a delete touched.
type DeleteResult struct {
	Deleted      bool `json:"deleted"`
	AssetDeleted bool `json:"assetDeleted"`
}

// ServiceOptions tune a Service.
type ServiceOptions struct {
	Assets   AssetDeleter
	Notifier Notifier
	// PhoneRegion is used to read WhatsApp numbers without a country code.
	PhoneRegion string
	Logger      *logging.Logger
	Now         func() time.Time
}

// Service validates, stores and removes leads.
type Service struct {
	repo        Repository
	assets      AssetDeleter
	notifier    Notifier
	phoneRegion string
	validate    *validator.Validate
	logger      *logging.Logger
	now         func() time.Time
}

// NewService creates a lead service.
func NewService(repo Repository, opts ServiceOptions) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:        repo,
		assets:      opts.Assets,
		notifier:    opts.Notifier,
		phoneRegion: strings.ToUpper(strings.TrimSpace(opts.PhoneRegion)),
		validate:    validator.New(),
		logger:      opts.Logger.Component("leads"),
		now:         opts.Now,
	}
}

// Create validates req and stores a new lead. The returned backend is
// BackendNone when neither tier accepted the write; the lead is still
// returned because the visitor confirms over WhatsApp or e-mail anyway.
func (s *Service) Create(ctx context.Context, req CreateLeadRequest, meta CreateMeta) (*Lead, storage.Backend, error) {
	ctx, span := tracer.Start(ctx, "leads.Create")
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		return nil, storage.BackendNone, ErrMissingContact
	}
	channel := parseChannel(req.Channel)
	if channel == ChannelManual && !meta.Authenticated {
		return nil, storage.BackendNone, ErrManualRequiresSession
	}

	now := s.now().UTC()
	lead := &Lead{
		ID:               newLeadID(now),
		CreatedAt:        now,
		QuoteID:          string(req.QuoteID),
		Category:         string(req.Category),
		ProductName:      string(req.ProductName),
		DetectedMSRPUSD:  req.DetectedMSRPUSD.Value,
		QuoteUSD:         req.QuoteUSD.Value,
		NormalQuoteUSD:   req.NormalQuoteUSD.Value,
		SelectedTier:     parseTier(req.SelectedTier),
		SelectedQuoteUSD: req.SelectedQuoteUSD.Value,
		Status:           string(req.Status),
		Channel:          channel,
		PayPal:           string(req.PayPal),
		WhatsApp:         string(req.WhatsApp),
		WhatsAppE164:     s.normalizePhone(string(req.WhatsApp)),
		Size:             string(req.Size),
		Note:             string(req.Note),
		ImageURL:         string(req.ImageURL),
		SourceIP:         strings.TrimSpace(meta.SourceIP),
	}

	backend := s.repo.Append(ctx, lead)
	span.SetAttributes(
		attribute.String("lead.channel", string(lead.Channel)),
		attribute.String("lead.backend", string(backend)),
	)
	if !backend.OK() {
		s.logger.Error("lead not persisted", "lead_id", lead.ID)
	} else {
		s.logger.Info("lead captured", "lead_id", lead.ID, "quote_id", lead.QuoteID, "channel", lead.Channel, "backend", backend)
	}

	if s.notifier != nil {
		s.notifier.LeadCaptured(ctx, *lead)
	}
	return lead, backend, nil
}

// List returns every stored lead, newest first.
func (s *Service) List(ctx context.Context) ListResult {
	leads, backend := s.repo.List(ctx)
	sort.SliceStable(leads, func(i, j int) bool {
		return leads[i].CreatedAt.After(leads[j].CreatedAt)
	})
	if leads == nil {
		leads = []Lead{}
	}
	return ListResult{Leads: leads, Count: len(leads), Source: backend}
}

// Delete removes a lead and, when quoteID is given, its quote asset. The
// asset is removed best effort and never affects the lead result.
func (s *Service) Delete(ctx context.Context, id, quoteID string) (DeleteResult, error) {
	id = strings.TrimSpace(id)
	quoteID = strings.TrimSpace(quoteID)
	if id == "" {
		return DeleteResult{}, ErrMissingID
	}

	var result DeleteResult
	result.Deleted, _ = s.repo.Delete(ctx, id)

	if quoteID != "" && s.assets != nil {
		result.AssetDeleted = s.assets.Delete(ctx, quoteID)
		if !result.AssetDeleted {
			s.logger.Warn("linked quote asset not deleted", "lead_id", id, "quote_id", quoteID)
		}
	}

	if !result.Deleted {
		return result, ErrLeadNotFound
	}
	s.logger.Info("lead deleted", "lead_id", id, "quote_id", quoteID)
	return result, nil
}

func (s *Service) normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "00") {
		raw = "+" + raw[2:]
	}
	num, err := phonenumbers.Parse(raw, s.phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return ""
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}

// newLeadID returns L-<base36 millis>-<4 digits>; ids sort roughly by
// creation time.
func newLeadID(now time.Time) string {
	return fmt.Sprintf("L-%s-%04d", strconv.FormatInt(now.UnixMilli(), 36), rand.IntN(10000))
}
