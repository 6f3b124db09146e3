// Package services defines the reminder pipeline and the recommendation
// cache. This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"

	"github.com/tbourn/carlog-backend/internal/domain"
)

// Lookup errors returned by repository adapters.
var (
	// ErrUserNotFound indicates that no user exists with the given ID.
	ErrUserNotFound = errors.New("user not found")

	// ErrVehicleNotFound indicates that the vehicle does not exist or is not
	// owned by the requesting user.
	ErrVehicleNotFound = errors.New("vehicle not found")

	// ErrEmptyUpdate is returned when a partial user update sets no field.
	ErrEmptyUpdate = domain.ErrEmptyUpdate
)

// Reminder pipeline errors.
var (
	// ErrSendFailed wraps a transport failure from the SMS or email sender.
	// The user's timestamp is left untouched.
	ErrSendFailed = errors.New("notification send failed")

	// ErrTimestampPersist means the message was delivered but the user's
	// timestamp could not be written; the user may be notified again.
	ErrTimestampPersist = errors.New("notification sent but timestamp not persisted")

	// ErrFetchActiveUsers aborts a batch run before any user is processed.
	ErrFetchActiveUsers = errors.New("fetch active users")
)

// Recommendation errors.
var (
	// ErrComputeFailed wraps a recommendation provider failure. Nothing is
	// cached when it is returned.
	ErrComputeFailed = errors.New("recommendation computation failed")

	// ErrNoRecommendationProvider is returned when no provider is configured.
	ErrNoRecommendationProvider = errors.New("recommendation provider not configured")
)
