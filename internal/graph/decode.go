package graph

import (
	"time"

	"github.com/tbourn/carlog-backend/internal/domain"
)

// Properties are stored as primitives; timestamps as RFC3339Nano strings.

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func fmtTimePtr(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return fmtTime(*t)
}

func intPtrParam(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func floatPtrParam(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func str(m map[string]any, k string) string {
	s, _ := m[k].(string)
	return s
}

func strPtr(m map[string]any, k string) *string {
	s, ok := m[k].(string)
	if !ok {
		return nil
	}
	return &s
}

func boolean(m map[string]any, k string) bool {
	b, _ := m[k].(bool)
	return b
}

func integer(m map[string]any, k string) int {
	switch v := m[k].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func intPtr(m map[string]any, k string) *int {
	if _, ok := m[k]; !ok || m[k] == nil {
		return nil
	}
	n := integer(m, k)
	return &n
}

func floatPtr(m map[string]any, k string) *float64 {
	switch v := m[k].(type) {
	case float64:
		return &v
	case int64:
		f := float64(v)
		return &f
	}
	return nil
}

func timeVal(m map[string]any, k string) time.Time {
	if t := timePtr(m, k); t != nil {
		return *t
	}
	return time.Time{}
}

func timePtr(m map[string]any, k string) *time.Time {
	s, ok := m[k].(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

func decodeUser(p map[string]any) domain.User {
	return domain.User{
		ID:                               str(p, "id"),
		Email:                            str(p, "email"),
		PhoneNumber:                      strPtr(p, "phone_number"),
		SMSNotificationsEnabled:          boolean(p, "sms_notifications_enabled"),
		EmailNotificationsEnabled:        boolean(p, "email_notifications_enabled"),
		SMSNotificationFrequency:         domain.SMSFrequency(str(p, "sms_notification_frequency")),
		MaintenanceNotificationFrequency: domain.MaintenanceFrequency(str(p, "maintenance_notification_frequency")),
		LastUpdateRequest:                timePtr(p, "last_update_request"),
		LastMaintenanceNotification:      timePtr(p, "last_maintenance_notification"),
		AccountActive:                    boolean(p, "account_active"),
		IsAdmin:                          boolean(p, "is_admin"),
		CreatedAt:                        timeVal(p, "created_at"),
		UpdatedAt:                        timeVal(p, "updated_at"),
	}
}

func userParams(u domain.User) map[string]any {
	return map[string]any{
		"id":                                 u.ID,
		"email":                              u.Email,
		"phone_number":                       derefString(u.PhoneNumber),
		"sms_notifications_enabled":          u.SMSNotificationsEnabled,
		"email_notifications_enabled":        u.EmailNotificationsEnabled,
		"sms_notification_frequency":         string(u.SMSNotificationFrequency),
		"maintenance_notification_frequency": string(u.MaintenanceNotificationFrequency),
		"last_update_request":                fmtTimePtr(u.LastUpdateRequest),
		"last_maintenance_notification":      fmtTimePtr(u.LastMaintenanceNotification),
		"account_active":                     u.AccountActive,
		"is_admin":                           u.IsAdmin,
		"created_at":                         fmtTime(u.CreatedAt),
		"updated_at":                         fmtTime(u.UpdatedAt),
	}
}

func derefString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func decodeVehicle(p map[string]any) domain.Vehicle {
	return domain.Vehicle{
		ID:             str(p, "id"),
		OwnerID:        str(p, "owner_id"),
		Brand:          str(p, "brand"),
		Model:          str(p, "model"),
		Year:           integer(p, "year"),
		Trim:           str(p, "trim"),
		VIN:            str(p, "vin"),
		LicensePlate:   str(p, "license_plate"),
		LicenseState:   str(p, "license_state"),
		ZipCode:        str(p, "zip_code"),
		UsagePattern:   str(p, "usage_pattern"),
		UsageNotes:     str(p, "usage_notes"),
		CurrentMileage: intPtr(p, "current_mileage"),
		CreatedAt:      timeVal(p, "created_at"),
		UpdatedAt:      timeVal(p, "updated_at"),
	}
}

func vehicleParams(v domain.Vehicle) map[string]any {
	return map[string]any{
		"id":              v.ID,
		"owner_id":        v.OwnerID,
		"brand":           v.Brand,
		"model":           v.Model,
		"year":            int64(v.Year),
		"trim":            v.Trim,
		"vin":             v.VIN,
		"license_plate":   v.LicensePlate,
		"license_state":   v.LicenseState,
		"zip_code":        v.ZipCode,
		"usage_pattern":   v.UsagePattern,
		"usage_notes":     v.UsageNotes,
		"current_mileage": intPtrParam(v.CurrentMileage),
		"created_at":      fmtTime(v.CreatedAt),
		"updated_at":      fmtTime(v.UpdatedAt),
	}
}

func decodeMaintenance(p map[string]any) domain.MaintenanceRecord {
	return domain.MaintenanceRecord{
		ID:              str(p, "id"),
		VehicleID:       str(p, "vehicle_id"),
		ServiceType:     str(p, "service_type"),
		Mileage:         integer(p, "mileage"),
		ServiceDate:     timeVal(p, "service_date"),
		Description:     str(p, "description"),
		Cost:            floatPtr(p, "cost"),
		ServiceProvider: str(p, "service_provider"),
		CreatedAt:       timeVal(p, "created_at"),
	}
}

func decodeRecommendation(p map[string]any) domain.RecommendationCacheEntry {
	return domain.RecommendationCacheEntry{
		ID:                           str(p, "id"),
		VehicleID:                    str(p, "vehicle_id"),
		RecommendationText:           str(p, "recommendation_text"),
		MileageAtGeneration:          integer(p, "mileage_at_generation"),
		MaintenanceCountAtGeneration: integer(p, "maintenance_count_at_generation"),
		CreatedAt:                    timeVal(p, "created_at"),
	}
}

func decodeLog(p map[string]any) domain.RecommendationLog {
	return domain.RecommendationLog{
		ID:            str(p, "id"),
		VehicleID:     str(p, "vehicle_id"),
		RequestPrompt: str(p, "request_prompt"),
		ResponseText:  str(p, "response_text"),
		ModelUsed:     str(p, "model_used"),
		TokensUsed:    intPtr(p, "tokens_used"),
		CreatedAt:     timeVal(p, "created_at"),
	}
}
