package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSendGridSender(t *testing.T) {
	tests := []struct {
		name     string
		cfg      SendGridConfig
		wantNil  bool
		wantFrom string
	}{
		{"no api key", SendGridConfig{FromEmail: "concierge@example.com"}, true, ""},
		{"blank api key", SendGridConfig{APIKey: "  ", FromEmail: "concierge@example.com"}, true, ""},
		{"default from name", SendGridConfig{APIKey: "key", FromEmail: "concierge@example.com"}, false, defaultFromName},
		{"custom from name", SendGridConfig{APIKey: "key", FromEmail: "concierge@example.com", FromName: "Desk"}, false, "Desk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := NewSendGridSender(tt.cfg, quietLogger())
			if tt.wantNil {
				assert.Nil(t, sender)
				return
			}
			require.NotNil(t, sender)
			assert.Equal(t, tt.wantFrom, sender.from.Name)
			assert.Equal(t, "concierge@example.com", sender.from.Address)
		})
	}
}

func TestSendGridSenderBuildsReplyTo(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "key", FromEmail: "concierge@example.com"}, quietLogger())
	require.NotNil(t, sender)

	m := sender.build(EmailMessage{To: "ops@example.com", ReplyTo: "buyer@example.com", Subject: "s", Body: "b"})
	require.NotNil(t, m.ReplyTo)
	assert.Equal(t, "buyer@example.com", m.ReplyTo.Address)
	require.Len(t, m.Personalizations, 1)
	assert.Equal(t, "ops@example.com", m.Personalizations[0].To[0].Address)

	m = sender.build(EmailMessage{To: "ops@example.com", Subject: "s", Body: "b"})
	assert.Nil(t, m.ReplyTo)
}

func TestSendGridSenderUnconfigured(t *testing.T) {
	var nilSender *SendGridSender
	assert.ErrorIs(t, nilSender.Send(context.Background(), EmailMessage{To: "a@example.com"}), errSenderNotConfigured)
	assert.ErrorIs(t, (&SendGridSender{}).Send(context.Background(), EmailMessage{To: "a@example.com"}), errSenderNotConfigured)
}

func TestStubEmailSender(t *testing.T) {
	assert.NoError(t, NewStubEmailSender(nil).Send(context.Background(), EmailMessage{To: "a@example.com", Subject: "hi"}))
}
