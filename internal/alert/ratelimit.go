// Package alert implements the alert & dispatch engine (component 7):
// per-tank SMS rate limiting, the daily email scheduler, the periodic
// viewer summary, and the outbound command router that addresses
// individual devices through the bus.
package alert

import "github.com/coldbrook/fleetwatch/internal/fleet"

const (
	minSMSIntervalSeconds = 300
	maxSMSPerHour         = 2
	smsHourWindowSeconds  = 3600
)

// SMSDecision is the outcome of the per-tank rate-limit check.
type SMSDecision int

const (
	Rejected SMSDecision = iota
	Allowed
)

// CheckSMS applies the five-step rate-limit algorithm from spec §4.7 to
// record, mutating it in place. lastSmsEpoch and new smsTimestamps entries
// are recorded only on an accepted send, so repeated rejected attempts never
// reset the interval window; entries older than an hour are pruned from the
// ring on every check that passes the interval test. clockSynced mirrors
// step 1: an unsynced clock always allows, since "now" can't be trusted to
// reject correctly.
func CheckSMS(record *fleet.TankRecord, now float64, clockSynced bool) SMSDecision {
	if !clockSynced {
		return Allowed
	}

	if record.LastSmsEpoch != 0 && now-record.LastSmsEpoch < minSMSIntervalSeconds {
		return Rejected
	}

	compactSMSRing(record, now)
	if len(record.SmsTimestamps) >= maxSMSPerHour {
		return Rejected
	}

	record.RecordSMS(now)
	return Allowed
}

func compactSMSRing(r *fleet.TankRecord, now float64) {
	kept := r.SmsTimestamps[:0]
	for _, e := range r.SmsTimestamps {
		if e > now-smsHourWindowSeconds {
			kept = append(kept, e)
		}
	}
	r.SmsTimestamps = kept
}
