// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file reads and seeds the key-value settings store:
// Twilio gateway credentials and the compliance window configuration.
//
// Settings are intentionally re-read at the start of every dispatch rather
// than cached, so credential or window changes take effect on the next batch.
package repo

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/akounas/go-sms-backend/internal/compliance"
	"github.com/akounas/go-sms-backend/internal/domain"
)

// Setting keys recognized by the application.
const (
	SettingTwilioAccountSID   = "twilio_account_sid"
	SettingTwilioAuthToken    = "twilio_auth_token"
	SettingTwilioPhoneNumber  = "twilio_phone_number"
	SettingBusinessHoursStart = "business_hours_start"
	SettingBusinessHoursEnd   = "business_hours_end"
	SettingSundaySending      = "sunday_sending_enabled"
	SettingHolidaySending     = "holiday_sending_enabled"
)

// TwilioCredentials holds the gateway configuration required before any
// send attempt. Incomplete credentials are a fatal dispatch precondition.
type TwilioCredentials struct {
	AccountSID  string
	AuthToken   string
	PhoneNumber string
}

// Complete reports whether every field is present.
func (c TwilioCredentials) Complete() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.PhoneNumber != ""
}

// GetSettings returns the values for the requested keys. Missing keys are
// simply absent from the returned map.
func GetSettings(ctx context.Context, db *gorm.DB, keys ...string) (map[string]string, error) {
	var rows []domain.Setting
	err := db.WithContext(ctx).
		Where("key IN ?", keys).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// PutSetting upserts a single settings row by key.
func PutSetting(ctx context.Context, db *gorm.DB, key, value string) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&domain.Setting{
			ID:        uuid.NewString(),
			Key:       key,
			Value:     value,
			CreatedAt: now,
			UpdatedAt: now,
		}).Error
}

// GetTwilioCredentials reads the gateway credentials. The result may be
// incomplete; callers decide whether that is fatal.
func GetTwilioCredentials(ctx context.Context, db *gorm.DB) (TwilioCredentials, error) {
	m, err := GetSettings(ctx, db,
		SettingTwilioAccountSID, SettingTwilioAuthToken, SettingTwilioPhoneNumber)
	if err != nil {
		return TwilioCredentials{}, err
	}
	return TwilioCredentials{
		AccountSID:  m[SettingTwilioAccountSID],
		AuthToken:   m[SettingTwilioAuthToken],
		PhoneNumber: m[SettingTwilioPhoneNumber],
	}, nil
}

// GetComplianceConfig reads the sending-window configuration, falling back
// to compliance.DefaultConfig values for any missing or malformed key.
func GetComplianceConfig(ctx context.Context, db *gorm.DB) (compliance.Config, error) {
	cfg := compliance.DefaultConfig()
	m, err := GetSettings(ctx, db,
		SettingBusinessHoursStart, SettingBusinessHoursEnd,
		SettingSundaySending, SettingHolidaySending)
	if err != nil {
		return cfg, err
	}

	if v, ok := m[SettingBusinessHoursStart]; ok {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h <= 23 {
			cfg.BusinessHoursStart = h
		}
	}
	if v, ok := m[SettingBusinessHoursEnd]; ok {
		if h, err := strconv.Atoi(v); err == nil && h >= 0 && h <= 23 {
			cfg.BusinessHoursEnd = h
		}
	}
	if v, ok := m[SettingSundaySending]; ok {
		cfg.SundaySendingEnabled = v == "true"
	}
	if v, ok := m[SettingHolidaySending]; ok {
		cfg.HolidaySendingEnabled = v == "true"
	}
	return cfg, nil
}

// SeedDefaultSettings writes the compliance window defaults for any key not
// already present. Twilio credentials are never seeded.
func SeedDefaultSettings(ctx context.Context, db *gorm.DB) error {
	defaults := map[string]string{
		SettingBusinessHoursStart: strconv.Itoa(compliance.DefaultConfig().BusinessHoursStart),
		SettingBusinessHoursEnd:   strconv.Itoa(compliance.DefaultConfig().BusinessHoursEnd),
		SettingSundaySending:      "false",
		SettingHolidaySending:     "false",
	}
	existing, err := GetSettings(ctx, db,
		SettingBusinessHoursStart, SettingBusinessHoursEnd,
		SettingSundaySending, SettingHolidaySending)
	if err != nil {
		return err
	}
	for k, v := range defaults {
		if _, ok := existing[k]; ok {
			continue
		}
		if err := PutSetting(ctx, db, k, v); err != nil {
			return err
		}
	}
	return nil
}
