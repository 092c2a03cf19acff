package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/erp-billing/internal/common"
)

// ResendSender delivers email through the Resend API.
type ResendSender struct {
	Client *resend.Client
	From   string
	Logger zerolog.Logger
}

// NewResendSender builds a sender for apiKey.
func NewResendSender(apiKey, from string, logger zerolog.Logger) *ResendSender {
	return &ResendSender{Client: resend.NewClient(apiKey), From: from, Logger: logger}
}

// Send implements common.EmailSender.
func (s *ResendSender) Send(ctx context.Context, msg common.Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("resend: recipient required")
	}
	params := &resend.SendEmailRequest{
		From:    s.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
		Headers: map[string]string{"X-Entity-Ref-ID": uuid.NewString()},
		Tags:    toResendTags(msg.Tags),
	}
	sent, err := s.Client.Emails.Send(params)
	if err != nil {
		s.Logger.Error().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("resend send failed")
		return fmt.Errorf("resend: send: %w", err)
	}
	s.Logger.Debug().Str("email_id", sent.Id).Str("to", msg.To).Msg("resend email accepted")
	return nil
}

func toResendTags(tags map[string]string) []resend.Tag {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]resend.Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, resend.Tag{Name: k, Value: tags[k]})
	}
	return out
}
