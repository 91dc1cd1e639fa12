// Package compliance implements the legal sending-window gate for outbound
// marketing SMS. The decision is a pure function of the store's local civil
// time and the configured window; callers are responsible for converting
// time.Now() into the store's time zone before asking.
package compliance

import (
	"fmt"
	"time"
)

// Config is the sending-window configuration, read once per dispatch
// invocation and passed by value through the call chain.
//
// BusinessHoursStart/End bound a half-open hour interval [start, end): the
// start hour is sendable, the end hour is not. HolidaySendingEnabled is a
// configuration hook only; no holiday calendar is consulted here.
type Config struct {
	BusinessHoursStart    int  `json:"business_hours_start"`
	BusinessHoursEnd      int  `json:"business_hours_end"`
	SundaySendingEnabled  bool `json:"sunday_sending_enabled"`
	HolidaySendingEnabled bool `json:"holiday_sending_enabled"`
}

// DefaultConfig mirrors the program's regulatory baseline: weekdays and
// Saturdays, 9:00–18:00 store time, no Sunday or holiday sends.
func DefaultConfig() Config {
	return Config{
		BusinessHoursStart:    9,
		BusinessHoursEnd:      18,
		SundaySendingEnabled:  false,
		HolidaySendingEnabled: false,
	}
}

// Decision is the outcome of a compliance check. Reason is empty when
// sending is allowed and human-readable when blocked.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Check evaluates whether an outbound send is permitted at now under cfg.
// now must already be in the store's local time zone.
func Check(now time.Time, cfg Config) Decision {
	if now.Weekday() == time.Sunday && !cfg.SundaySendingEnabled {
		return Decision{
			Allowed: false,
			Reason:  "SMS messages cannot be sent on Sundays",
		}
	}

	hour := now.Hour()
	if hour < cfg.BusinessHoursStart {
		return Decision{
			Allowed: false,
			Reason: fmt.Sprintf("SMS messages cannot be sent before %02d:00 (current time: %s)",
				cfg.BusinessHoursStart, now.Format("15:04")),
		}
	}
	if hour >= cfg.BusinessHoursEnd {
		return Decision{
			Allowed: false,
			Reason: fmt.Sprintf("SMS messages cannot be sent at or after %02d:00 (current time: %s)",
				cfg.BusinessHoursEnd, now.Format("15:04")),
		}
	}

	return Decision{Allowed: true}
}

// NextAllowed returns the earliest instant at or after now when sending is
// permitted. When now is already inside the window it returns now unchanged.
//
// Blocked cases land exactly at BusinessHoursStart:00 on the next eligible
// day: today when blocked before the start hour, otherwise the next calendar
// day, skipping a disabled Sunday.
func NextAllowed(now time.Time, cfg Config) time.Time {
	if Check(now, cfg).Allowed {
		return now
	}

	if now.Weekday() == time.Sunday && !cfg.SundaySendingEnabled {
		return atStartHour(now.AddDate(0, 0, 1), cfg)
	}

	if now.Hour() < cfg.BusinessHoursStart {
		return atStartHour(now, cfg)
	}

	// At or after the end hour: next day, skipping a disabled Sunday.
	next := now.AddDate(0, 0, 1)
	if next.Weekday() == time.Sunday && !cfg.SundaySendingEnabled {
		next = next.AddDate(0, 0, 1)
	}
	return atStartHour(next, cfg)
}

// atStartHour pins t to BusinessHoursStart:00:00 on the same calendar day.
func atStartHour(t time.Time, cfg Config) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), cfg.BusinessHoursStart, 0, 0, 0, t.Location())
}
