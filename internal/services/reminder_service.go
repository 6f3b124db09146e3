// Package services – ReminderService
//
// ReminderService runs one reminder batch: it fetches active users, evaluates
// both eligibility rules per user and dispatches whatever is due. Users are
// processed independently with bounded parallelism; one user's failure (or
// panic) is logged and counted and never stops the batch. Only a failure to
// fetch the user list aborts the run.
//
// Cancellation is cooperative: once ctx is done, users that have not started
// are skipped, while sends already in flight run to completion on a context
// detached from the caller's cancellation.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/carlog-backend/internal/domain"
	"github.com/tbourn/carlog-backend/internal/observability"
)

// DefaultConcurrency bounds parallel per-user processing when unset.
const DefaultConcurrency = 4

// RunResult aggregates one batch run.
type RunResult struct {
	SMSSent         int `json:"sms_reminders_sent"`
	MaintenanceSent int `json:"maintenance_notifications_sent"`
	Failed          int `json:"failed"`
	Skipped         int `json:"skipped"`
}

// Notifier is the dispatch surface ReminderService drives. *Dispatcher
// implements it.
type Notifier interface {
	SendSMSReminder(ctx context.Context, u domain.User, vehicles []domain.Vehicle) (bool, error)
	SendMaintenanceNotification(ctx context.Context, u domain.User, vehicles []domain.Vehicle) (bool, error)
}

// ReminderService is the batch processor.
type ReminderService struct {
	Users       UserRepository
	Vehicles    VehicleRepository
	Notifier    Notifier
	Concurrency int
	Log         *zerolog.Logger
}

// NewReminderService wires a ReminderService with DefaultConcurrency.
func NewReminderService(users UserRepository, vehicles VehicleRepository, n Notifier) *ReminderService {
	return &ReminderService{Users: users, Vehicles: vehicles, Notifier: n, Concurrency: DefaultConcurrency}
}

func (s *ReminderService) logger() *zerolog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return &log.Logger
}

// userOutcome is what processing a single user produced.
type userOutcome struct {
	sms, maintenance bool
	failed           bool
}

// Process runs one batch for the calendar date of today (already expressed in
// the scheduler's location).
func (s *ReminderService) Process(ctx context.Context, today time.Time) (RunResult, error) {
	ctx, span := otel.Tracer("services/ReminderService").Start(ctx, "Process",
		trace.WithAttributes(attribute.String("run.date", today.Format("2006-01-02"))),
	)
	defer span.End()

	l := s.logger().With().Str("run_date", today.Format("2006-01-02")).Logger()
	l.Info().Msg("processing scheduled reminders")

	users, err := s.Users.GetActiveUsers(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch active users")
		return RunResult{}, fmt.Errorf("%w: %w", ErrFetchActiveUsers, err)
	}
	span.SetAttributes(attribute.Int("users.active", len(users)))

	limit := s.Concurrency
	if limit < 1 {
		limit = DefaultConcurrency
	}

	var smsSent, maintSent, failed, skipped atomic.Int64
	sendCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(limit)
	for _, u := range users {
		// Checked before a slot is taken and again once it is granted so a
		// cancelled run stops handing out work at the user boundary.
		if ctx.Err() != nil {
			skipped.Add(1)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				skipped.Add(1)
				return nil
			}
			out := s.processUser(sendCtx, u, today, l)
			if out.sms {
				smsSent.Add(1)
			}
			if out.maintenance {
				maintSent.Add(1)
			}
			if out.failed {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res := RunResult{
		SMSSent:         int(smsSent.Load()),
		MaintenanceSent: int(maintSent.Load()),
		Failed:          int(failed.Load()),
		Skipped:         int(skipped.Load()),
	}
	span.SetAttributes(
		attribute.Int("sms.sent", res.SMSSent),
		attribute.Int("maintenance.sent", res.MaintenanceSent),
		attribute.Int("users.failed", res.Failed),
		attribute.Int("users.skipped", res.Skipped),
	)
	l.Info().
		Int("sms_sent", res.SMSSent).
		Int("maintenance_sent", res.MaintenanceSent).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("processed reminders")

	if err := ctx.Err(); err != nil && res.Skipped > 0 {
		return res, err
	}
	return res, nil
}

// processUser evaluates and dispatches for one user. Panics are recovered and
// reported as a failure for that user only.
func (s *ReminderService) processUser(ctx context.Context, u domain.User, today time.Time, parent zerolog.Logger) (out userOutcome) {
	l := parent.With().Str("user_id", u.ID).Logger()
	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("reminder processing panicked")
			out.failed = true
		}
	}()

	smsDue := IsSMSReminderDue(u, today)
	maintDue := IsMaintenanceNotificationDue(u, today)
	if !smsDue && !maintDue {
		return out
	}

	vehicles, err := s.Vehicles.GetUserVehicles(ctx, u.ID)
	if err != nil {
		l.Error().Err(err).Msg("load vehicles")
		out.failed = true
		return out
	}

	if smsDue {
		ok, err := s.Notifier.SendSMSReminder(ctx, u, vehicles)
		out.sms = ok
		s.record(l, "sms", ok, err, &out)
	}
	if maintDue {
		ok, err := s.Notifier.SendMaintenanceNotification(ctx, u, vehicles)
		out.maintenance = ok
		s.record(l, "maintenance", ok, err, &out)
	}
	return out
}

// record logs and meters one dispatch result.
func (s *ReminderService) record(l zerolog.Logger, kind string, ok bool, err error, out *userOutcome) {
	switch {
	case err == nil && ok:
		observability.ReminderSends.WithLabelValues(kind, "sent").Inc()
	case err == nil:
		// nothing to send on this channel
	case errors.Is(err, ErrTimestampPersist):
		observability.ReminderSends.WithLabelValues(kind, "persist_failed").Inc()
		l.Error().Err(err).Str("kind", kind).Msg("notification delivered but not recorded; may be re-sent")
		out.failed = true
	default:
		observability.ReminderSends.WithLabelValues(kind, "failed").Inc()
		l.Warn().Err(err).Str("kind", kind).Msg("notification failed")
		out.failed = true
	}
}
