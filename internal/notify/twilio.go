// Package notify holds the outbound message senders used by the reminder
// dispatcher.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/tbourn/carlog-backend/internal/config"
	"github.com/tbourn/carlog-backend/internal/services"
	"github.com/tbourn/carlog-backend/internal/sysutil"
)

// ErrSMSNotConfigured is returned by a TwilioSMS built without credentials.
var ErrSMSNotConfigured = errors.New("sms provider not configured")

// messageAPI is the slice of the Twilio REST client used here.
type messageAPI interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioSMS sends text messages through the Twilio Messages API.
type TwilioSMS struct {
	api  messageAPI
	from string
	log  zerolog.Logger
}

var _ services.SMSSender = (*TwilioSMS)(nil)

// NewTwilioSMS builds a sender from cfg. Without an account SID every Send
// fails with ErrSMSNotConfigured, so reminders are counted as failed rather
// than silently dropped.
func NewTwilioSMS(cfg config.TwilioConfig) *TwilioSMS {
	s := &TwilioSMS{
		from: strings.TrimSpace(cfg.FromNumber),
		log:  log.With().Str("client", "twilio").Logger(),
	}
	if strings.TrimSpace(cfg.AccountSID) == "" {
		s.log.Warn().Msg("TWILIO_ACCOUNT_SID not set; sms disabled")
		return s
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	s.api = client.Api
	return s
}

// Send implements services.SMSSender and returns the message SID.
func (s *TwilioSMS) Send(ctx context.Context, phone, text string) (string, error) {
	if s.api == nil {
		return "", ErrSMSNotConfigured
	}
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", errors.New("twilio: recipient required")
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("twilio: body required")
	}
	if s.from == "" {
		return "", errors.New("twilio: sender number required")
	}
	// The SDK call is not context-aware; honour cancellation up front.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(s.from)
	params.SetBody(text)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio create message: %w", err)
	}
	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	s.log.Debug().Str("to", sysutil.MaskPhone(phone)).Str("sid", sid).Msg("sms sent")
	return sid, nil
}
