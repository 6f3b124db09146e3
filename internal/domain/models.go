// Package domain defines the persistence models for users, vehicles,
// maintenance history and cached maintenance recommendations. These types are
// mapped with GORM for the SQL store and decoded from node properties by the
// graph store.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// SMSFrequency is how often a user wants a mileage-update SMS.
type SMSFrequency string

const (
	SMSWeekly    SMSFrequency = "weekly"
	SMSMonthly   SMSFrequency = "monthly"
	SMSQuarterly SMSFrequency = "quarterly"
)

// MaintenanceFrequency is how often a user wants a maintenance email.
type MaintenanceFrequency string

const (
	MaintenanceMonthly   MaintenanceFrequency = "monthly"
	MaintenanceQuarterly MaintenanceFrequency = "quarterly"
	MaintenanceAnnually  MaintenanceFrequency = "annually"
)

// User is an account holder and the unit of reminder processing.
//
// Fields:
//   - PhoneNumber: nil when the user never registered one.
//   - LastUpdateRequest: last confirmed mileage-update SMS, nil if never sent.
//   - LastMaintenanceNotification: last confirmed maintenance email, nil if never sent.
//   - AccountActive: inactive users are never returned by active-user queries.
type User struct {
	ID                               string               `json:"id"                                  gorm:"type:char(36);primaryKey"`
	Email                            string               `json:"email"                               gorm:"type:varchar(255);not null;uniqueIndex"`
	PhoneNumber                      *string              `json:"phone_number,omitempty"              gorm:"type:varchar(32)"`
	SMSNotificationsEnabled          bool                 `json:"sms_notifications_enabled"           gorm:"not null"`
	EmailNotificationsEnabled        bool                 `json:"email_notifications_enabled"         gorm:"not null"`
	SMSNotificationFrequency         SMSFrequency         `json:"sms_notification_frequency"          gorm:"type:varchar(16);not null;default:'weekly'"`
	MaintenanceNotificationFrequency MaintenanceFrequency `json:"maintenance_notification_frequency"  gorm:"type:varchar(16);not null;default:'quarterly'"`
	LastUpdateRequest                *time.Time           `json:"last_update_request,omitempty"`
	LastMaintenanceNotification      *time.Time           `json:"last_maintenance_notification,omitempty"`
	AccountActive                    bool                 `json:"account_active"                      gorm:"not null;index"`
	IsAdmin                          bool                 `json:"is_admin"                            gorm:"not null"`
	CreatedAt                        time.Time            `json:"created_at"`
	UpdatedAt                        time.Time            `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Vehicle is a car owned by a user.
type Vehicle struct {
	ID             string    `json:"id"                        gorm:"type:char(36);primaryKey"`
	OwnerID        string    `json:"owner_id"                  gorm:"type:char(36);not null;index:idx_owner_vehicles"`
	Brand          string    `json:"brand"                     gorm:"type:varchar(64);not null"`
	Model          string    `json:"model"                     gorm:"type:varchar(64);not null"`
	Year           int       `json:"year"                      gorm:"not null"`
	Trim           string    `json:"trim,omitempty"            gorm:"type:varchar(64)"`
	VIN            string    `json:"vin,omitempty"             gorm:"type:varchar(32)"`
	LicensePlate   string    `json:"license_plate,omitempty"   gorm:"type:varchar(16)"`
	LicenseState   string    `json:"license_state,omitempty"   gorm:"type:varchar(8)"`
	ZipCode        string    `json:"zip_code,omitempty"        gorm:"type:varchar(16)"`
	UsagePattern   string    `json:"usage_pattern,omitempty"   gorm:"type:varchar(32)"`
	UsageNotes     string    `json:"usage_notes,omitempty"     gorm:"type:text"`
	CurrentMileage *int      `json:"current_mileage,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Owner User `json:"-" gorm:"foreignKey:OwnerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Vehicle.
func (Vehicle) TableName() string { return "vehicles" }

// DisplayName renders the vehicle as "2019 Honda Civic".
func (v Vehicle) DisplayName() string {
	return fmt.Sprintf("%d %s %s", v.Year, v.Brand, v.Model)
}

// Mileage returns CurrentMileage or 0 when unknown.
func (v Vehicle) Mileage() int {
	if v.CurrentMileage == nil {
		return 0
	}
	return *v.CurrentMileage
}

// MaintenanceRecord is one service event in a vehicle's history.
type MaintenanceRecord struct {
	ID              string    `json:"id"                         gorm:"type:char(36);primaryKey"`
	VehicleID       string    `json:"vehicle_id"                 gorm:"type:char(36);not null;index:idx_vehicle_maintenance,priority:1"`
	ServiceType     string    `json:"service_type"               gorm:"type:varchar(64);not null"`
	Mileage         int       `json:"mileage"                    gorm:"not null"`
	ServiceDate     time.Time `json:"service_date"               gorm:"not null;index:idx_vehicle_maintenance,priority:2"`
	Description     string    `json:"description,omitempty"      gorm:"type:text"`
	Cost            *float64  `json:"cost,omitempty"`
	ServiceProvider string    `json:"service_provider,omitempty" gorm:"type:varchar(128)"`
	CreatedAt       time.Time `json:"created_at"`

	Vehicle Vehicle `json:"-" gorm:"foreignKey:VehicleID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for MaintenanceRecord.
func (MaintenanceRecord) TableName() string { return "maintenance_records" }

// RecommendationCacheEntry is a stored recommendation text together with the
// fingerprint it was generated for. Entries are append-only; a lookup picks the
// newest entry whose fingerprint matches exactly.
type RecommendationCacheEntry struct {
	ID                           string    `json:"id"                              gorm:"type:char(36);primaryKey"`
	VehicleID                    string    `json:"vehicle_id"                      gorm:"type:char(36);not null;index:idx_rec_fingerprint,priority:1"`
	RecommendationText           string    `json:"recommendations"                 gorm:"type:text;not null"`
	MileageAtGeneration          int       `json:"vehicle_mileage_at_generation"   gorm:"not null;index:idx_rec_fingerprint,priority:2"`
	MaintenanceCountAtGeneration int       `json:"maintenance_count_at_generation" gorm:"not null;index:idx_rec_fingerprint,priority:3"`
	CreatedAt                    time.Time `json:"created_at"                      gorm:"index:idx_rec_fingerprint,priority:4"`
}

// TableName returns the database table name for RecommendationCacheEntry.
func (RecommendationCacheEntry) TableName() string { return "recommendations" }

// Fingerprint returns the cache key the entry was generated for.
func (e RecommendationCacheEntry) Fingerprint() Fingerprint {
	return Fingerprint{Mileage: e.MileageAtGeneration, MaintenanceCount: e.MaintenanceCountAtGeneration}
}

// RecommendationLog is the audit trail of one call to the recommendation
// provider. ResponseText is empty when the call failed.
type RecommendationLog struct {
	ID            string    `json:"id"            gorm:"type:char(36);primaryKey"`
	VehicleID     string    `json:"vehicle_id"    gorm:"type:char(36);not null;index"`
	RequestPrompt string    `json:"request_prompt" gorm:"type:text;not null"`
	ResponseText  string    `json:"response_text" gorm:"type:text"`
	ModelUsed     string    `json:"model_used"    gorm:"type:varchar(64)"`
	TokensUsed    *int      `json:"tokens_used,omitempty"`
	CreatedAt     time.Time `json:"created_at"    gorm:"index"`
}

// TableName returns the database table name for RecommendationLog.
func (RecommendationLog) TableName() string { return "recommendation_logs" }

// Fingerprint captures the inputs that invalidate a cached recommendation.
type Fingerprint struct {
	Mileage          int `json:"mileage"`
	MaintenanceCount int `json:"maintenance_count"`
}

// String renders the fingerprint as "mileage|count".
func (f Fingerprint) String() string {
	return fmt.Sprintf("%d|%d", f.Mileage, f.MaintenanceCount)
}

// ErrEmptyUpdate is returned when a UserUpdate sets no field.
var ErrEmptyUpdate = errors.New("empty user update")

// UserUpdate is the partial update the reminder pipeline may apply to a user.
// Only the two notification timestamps can be written; nil means untouched.
type UserUpdate struct {
	LastUpdateRequest           *time.Time
	LastMaintenanceNotification *time.Time
}

// Fields renders the update as a column map. It returns ErrEmptyUpdate when
// nothing is set.
func (u UserUpdate) Fields() (map[string]any, error) {
	out := make(map[string]any, 2)
	if u.LastUpdateRequest != nil {
		out["last_update_request"] = *u.LastUpdateRequest
	}
	if u.LastMaintenanceNotification != nil {
		out["last_maintenance_notification"] = *u.LastMaintenanceNotification
	}
	if len(out) == 0 {
		return nil, ErrEmptyUpdate
	}
	return out, nil
}

// Apply copies the set fields onto u.
func (u UserUpdate) Apply(user *User) {
	if u.LastUpdateRequest != nil {
		t := *u.LastUpdateRequest
		user.LastUpdateRequest = &t
	}
	if u.LastMaintenanceNotification != nil {
		t := *u.LastMaintenanceNotification
		user.LastMaintenanceNotification = &t
	}
}
