package notify

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/carlog-backend/internal/services"
	"github.com/tbourn/carlog-backend/internal/sysutil"
)

// LogEmail is the email hook. It records the attempt and reports
// services.ErrChannelDisabled; no mail transport is wired yet.
type LogEmail struct {
	From string
}

var _ services.EmailSender = LogEmail{}

// Send implements services.EmailSender.
func (e LogEmail) Send(ctx context.Context, to, subject, body string) error {
	log.Debug().
		Str("from", e.From).
		Str("to", sysutil.MaskEmail(to)).
		Str("subject", subject).
		Int("body_len", len(body)).
		Msg("email delivery not configured")
	return services.ErrChannelDisabled
}
