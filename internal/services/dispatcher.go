// Package services – Dispatcher
//
// Dispatcher turns an eligible user into an outbound message and, only after
// a confirmed send, records the send time on the user. A send failure never
// mutates the user; a timestamp write failure after a delivered message is
// reported separately so the caller can log the inconsistency.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/carlog-backend/internal/domain"
	"github.com/tbourn/carlog-backend/internal/sysutil"
)

// ErrChannelDisabled is returned by a sender that is wired but not able to
// deliver (for example the logging email hook). The dispatcher treats it as
// "not sent" rather than as a failure.
var ErrChannelDisabled = errors.New("notification channel disabled")

// DefaultSiteURL is linked from every outbound message.
const DefaultSiteURL = "carlog.piprivate.net"

const maintenanceSubject = "CarLog Maintenance Reminder"

// Dispatcher sends reminders through the SMS and email senders.
type Dispatcher struct {
	Users UserRepository
	SMS   SMSSender
	Email EmailSender

	// SiteURL is embedded in message bodies. Defaults to DefaultSiteURL.
	SiteURL string
	// Now stamps successful sends. Defaults to time.Now().UTC().
	Now func() time.Time
	// Log defaults to the global logger.
	Log *zerolog.Logger
}

// NewDispatcher wires a Dispatcher with default clock and site URL.
func NewDispatcher(users UserRepository, sms SMSSender, email EmailSender) *Dispatcher {
	return &Dispatcher{Users: users, SMS: sms, Email: email}
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func (d *Dispatcher) site() string {
	if d.SiteURL != "" {
		return d.SiteURL
	}
	return DefaultSiteURL
}

func (d *Dispatcher) logger() *zerolog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return &log.Logger
}

// SMSReminderText builds the mileage-update prompt for the given vehicles.
func (d *Dispatcher) SMSReminderText(vehicles []domain.Vehicle) string {
	switch len(vehicles) {
	case 0:
		return fmt.Sprintf("Hi! It's time for your CarLog update. You don't have any vehicles registered yet. Add a vehicle at %s to start tracking maintenance!", d.site())
	case 1:
		return fmt.Sprintf("Hi! Time for your CarLog update. What's the current mileage on your %s? Reply with just the number.", vehicles[0].DisplayName())
	default:
		return fmt.Sprintf("Hi! Time for your CarLog update. Reply with your current mileage for any of your %d vehicles. Include vehicle name if you have multiple.", len(vehicles))
	}
}

// MaintenanceText builds the maintenance alert body.
func (d *Dispatcher) MaintenanceText(vehicles []domain.Vehicle) string {
	return fmt.Sprintf("CarLog Maintenance Alert: Check your maintenance schedule at %s. You have %d vehicle(s) that may need service soon.", d.site(), len(vehicles))
}

// SendSMSReminder sends the mileage-update SMS and stamps LastUpdateRequest.
//
// Returns (true, nil) on success, (false, err wrapping ErrSendFailed) when the
// sender fails, and (true, err wrapping ErrTimestampPersist) when the message
// went out but the timestamp could not be written.
func (d *Dispatcher) SendSMSReminder(ctx context.Context, u domain.User, vehicles []domain.Vehicle) (bool, error) {
	l := d.logger().With().Str("user_id", u.ID).Str("channel", "sms").Logger()
	if u.PhoneNumber == nil || *u.PhoneNumber == "" {
		l.Warn().Msg("user has no phone number for sms reminder")
		return false, nil
	}
	if d.SMS == nil {
		return false, fmt.Errorf("%w: no sms sender", ErrSendFailed)
	}

	sid, err := d.SMS.Send(ctx, *u.PhoneNumber, d.SMSReminderText(vehicles))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	at := d.now()
	if _, err := d.Users.UpdateUser(ctx, u.ID, domain.UserUpdate{LastUpdateRequest: &at}); err != nil {
		l.Error().Err(err).Str("delivery_id", sid).Msg("sms delivered but last_update_request not persisted")
		return true, fmt.Errorf("%w: %w", ErrTimestampPersist, err)
	}
	l.Info().
		Str("delivery_id", sid).
		Str("phone", sysutil.MaskPhone(*u.PhoneNumber)).
		Int("vehicles", len(vehicles)).
		Msg("sms reminder sent")
	return true, nil
}

// SendMaintenanceNotification sends the maintenance alert over every enabled
// channel and stamps LastMaintenanceNotification if at least one delivered.
// Users without vehicles are skipped with (false, nil).
func (d *Dispatcher) SendMaintenanceNotification(ctx context.Context, u domain.User, vehicles []domain.Vehicle) (bool, error) {
	l := d.logger().With().Str("user_id", u.ID).Logger()
	if len(vehicles) == 0 {
		l.Info().Msg("user has no vehicles for maintenance notification")
		return false, nil
	}

	body := d.MaintenanceText(vehicles)
	var (
		delivered bool
		errs      []error
	)

	if u.SMSNotificationsEnabled && u.PhoneNumber != nil && *u.PhoneNumber != "" && d.SMS != nil {
		if _, err := d.SMS.Send(ctx, *u.PhoneNumber, body); err != nil {
			errs = append(errs, fmt.Errorf("sms: %w", err))
		} else {
			delivered = true
		}
	}

	if u.EmailNotificationsEnabled && d.Email != nil {
		switch err := d.Email.Send(ctx, u.Email, maintenanceSubject, body); {
		case err == nil:
			delivered = true
		case errors.Is(err, ErrChannelDisabled):
			l.Debug().Str("email", sysutil.MaskEmail(u.Email)).Msg("email channel disabled")
		default:
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}

	if !delivered {
		if len(errs) > 0 {
			return false, fmt.Errorf("%w: %w", ErrSendFailed, errors.Join(errs...))
		}
		return false, nil
	}
	for _, err := range errs {
		l.Warn().Err(err).Msg("maintenance notification partially failed")
	}

	at := d.now()
	if _, err := d.Users.UpdateUser(ctx, u.ID, domain.UserUpdate{LastMaintenanceNotification: &at}); err != nil {
		l.Error().Err(err).Msg("maintenance notification delivered but last_maintenance_notification not persisted")
		return true, fmt.Errorf("%w: %w", ErrTimestampPersist, err)
	}
	l.Info().Int("vehicles", len(vehicles)).Msg("maintenance notification sent")
	return true, nil
}
