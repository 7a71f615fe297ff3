package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/uootd-quotes/internal/leads"
	"github.com/wolfman30/uootd-quotes/pkg/logging"
)

const sendTimeout = 10 * time.Second

// LeadNotifier e-mails staff a summary of each captured lead.
type LeadNotifier struct {
	sender EmailSender
	to     string
	logger *logging.Logger
}

// NewLeadNotifier returns nil when there is no sender or recipient, so callers
// can skip wiring it.
func NewLeadNotifier(sender EmailSender, to string, logger *logging.Logger) *LeadNotifier {
	to = strings.TrimSpace(to)
	if sender == nil || to == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LeadNotifier{sender: sender, to: to, logger: logger.Component("notify.leads")}
}

// LeadCaptured sends the summary in the background. Failures are logged only.
func (n *LeadNotifier) LeadCaptured(ctx context.Context, lead leads.Lead) {
	if n == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := n.Notify(ctx, lead); err != nil {
			n.logger.Warn("lead notification failed", "lead_id", lead.ID, "error", err)
		}
	}()
}

// Notify sends the summary and waits for the result.
func (n *LeadNotifier) Notify(ctx context.Context, lead leads.Lead) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	msg := EmailMessage{
		To:      n.to,
		Subject: leadSubject(lead),
		Body:    leadBody(lead),
	}
	if strings.Contains(lead.PayPal, "@") {
		msg.ReplyTo = lead.PayPal
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send lead %s: %w", lead.ID, err)
	}
	n.logger.Info("lead notification sent", "lead_id", lead.ID)
	return nil
}

func leadSubject(lead leads.Lead) string {
	name := lead.ProductName
	if name == "" {
		name = "item"
	}
	if lead.SelectedQuoteUSD == nil {
		return fmt.Sprintf("New lead %s: %s (manual pricing)", lead.ID, name)
	}
	return fmt.Sprintf("New lead %s: %s at %s", lead.ID, name, usd(lead.SelectedQuoteUSD))
}

func leadBody(lead leads.Lead) string {
	var b strings.Builder
	line := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%s: %s\n", label, value)
	}

	line("Lead", lead.ID)
	line("Received", lead.CreatedAt.UTC().Format(time.RFC3339))
	line("Quote", lead.QuoteID)
	line("Product", lead.ProductName)
	line("Category", lead.Category)
	line("Reference price", usd(lead.DetectedMSRPUSD))
	line("Premium quote", usd(lead.QuoteUSD))
	line("Normal quote", usd(lead.NormalQuoteUSD))
	line("Selected tier", string(lead.SelectedTier))
	line("Selected quote", usd(lead.SelectedQuoteUSD))
	line("Channel", string(lead.Channel))
	line("PayPal", lead.PayPal)
	whatsapp := lead.WhatsApp
	if lead.WhatsAppE164 != "" && lead.WhatsAppE164 != whatsapp {
		whatsapp = fmt.Sprintf("%s (%s)", whatsapp, lead.WhatsAppE164)
	}
	line("WhatsApp", whatsapp)
	line("Size", lead.Size)
	line("Note", lead.Note)
	if strings.HasPrefix(lead.ImageURL, "http://") || strings.HasPrefix(lead.ImageURL, "https://") {
		line("Image", lead.ImageURL)
	}
	return b.String()
}

func usd(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("$%.0f", *v)
}
