package services

import (
	"time"

	"github.com/tbourn/carlog-backend/internal/domain"
)

// WeeklyAnchor is the weekday on which weekly reminders fire.
const WeeklyAnchor = time.Saturday

// quarterStart reports whether m opens a calendar quarter (Jan/Apr/Jul/Oct).
func quarterStart(m time.Month) bool {
	return m == time.January || m == time.April || m == time.July || m == time.October
}

func quarterOf(m time.Month) int { return (int(m) - 1) / 3 }

// dateOf returns the calendar date of t as seen in loc, pinned to midnight
// UTC so that day arithmetic ignores DST shifts.
func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsSMSReminderDue reports whether u should get a mileage-update SMS on
// today's calendar date. Checks fire only on anchor days so re-running on the
// same day after a successful send is a no-op.
func IsSMSReminderDue(u domain.User, today time.Time) bool {
	if !u.SMSNotificationsEnabled || u.PhoneNumber == nil || *u.PhoneNumber == "" {
		return false
	}
	if u.LastUpdateRequest == nil {
		return true
	}

	now := dateOf(today, today.Location())
	last := dateOf(*u.LastUpdateRequest, today.Location())

	switch u.SMSNotificationFrequency {
	case domain.SMSWeekly:
		return now.Weekday() == WeeklyAnchor && now.Sub(last) >= 7*24*time.Hour
	case domain.SMSMonthly:
		return monthlyDue(last, now)
	case domain.SMSQuarterly:
		return quarterlyDue(last, now)
	default:
		return false
	}
}

// IsMaintenanceNotificationDue reports whether u should get a maintenance
// notification on today's calendar date.
func IsMaintenanceNotificationDue(u domain.User, today time.Time) bool {
	if !u.SMSNotificationsEnabled && !u.EmailNotificationsEnabled {
		return false
	}
	if u.LastMaintenanceNotification == nil {
		return true
	}

	now := dateOf(today, today.Location())
	last := dateOf(*u.LastMaintenanceNotification, today.Location())

	switch u.MaintenanceNotificationFrequency {
	case domain.MaintenanceMonthly:
		return monthlyDue(last, now)
	case domain.MaintenanceQuarterly:
		return quarterlyDue(last, now)
	case domain.MaintenanceAnnually:
		return now.Month() == time.January && now.Day() == 1 && last.Year() != now.Year()
	default:
		return false
	}
}

// monthlyDue fires on the 1st when last falls in another month.
func monthlyDue(last, now time.Time) bool {
	return now.Day() == 1 && (last.Month() != now.Month() || last.Year() != now.Year())
}

// quarterlyDue fires on the 1st of a quarter-start month when last falls in
// another quarter.
func quarterlyDue(last, now time.Time) bool {
	return now.Day() == 1 && quarterStart(now.Month()) &&
		(quarterOf(last.Month()) != quarterOf(now.Month()) || last.Year() != now.Year())
}
