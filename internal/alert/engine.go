package alert

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coldbrook/fleetwatch/internal/bus"
	"github.com/coldbrook/fleetwatch/internal/fleet"
)

// Contacts holds the phone numbers an SMS fans out to for one tank/site.
// Either may be empty.
type Contacts struct {
	Primary   string
	Secondary string
}

func (c Contacts) numbers() []string {
	var out []string
	if c.Primary != "" {
		out = append(out, c.Primary)
	}
	if c.Secondary != "" {
		out = append(out, c.Secondary)
	}
	return out
}

// Engine dispatches SMS/email/viewer-summary notes over the bus, applying
// the rate limits and policy gates from spec §4.7.
type Engine struct {
	Bus bus.Adapter
	Log zerolog.Logger

	mu     sync.RWMutex
	policy Policy
}

// NewEngine builds an Engine.
func NewEngine(adapter bus.Adapter, policy Policy, log zerolog.Logger) *Engine {
	return &Engine{Bus: adapter, policy: policy, Log: log}
}

// Policy returns the current SMS dispatch policy.
func (e *Engine) Policy() Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// SetPolicy replaces the SMS dispatch policy (POST /api/server-settings).
func (e *Engine) SetPolicy(p Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.policy = p
}

// AlarmSMSRequest bundles everything needed to evaluate and possibly send
// an alarm SMS for one tank event.
type AlarmSMSRequest struct {
	Record        *fleet.TankRecord
	Now           float64
	ClockSynced   bool
	Site          string
	Tank          int
	RawType       string
	Level         float64
	DigitalActive bool
	IsDigital     bool
	MessageSMSEnabled bool // per-message "smsEnabled" field; absent defaults true by caller
	Contacts      Contacts
}

// TrySendAlarmSMS evaluates policy + rate limit for req and, if both allow,
// enqueues the SMS note to sms.qo with sync=true. Returns whether a send
// was attempted (true) and any transport error.
func (e *Engine) TrySendAlarmSMS(ctx context.Context, req AlarmSMSRequest) (sent bool, err error) {
	kind := ClassifyAlarmType(req.RawType)
	if !req.MessageSMSEnabled {
		return false, nil
	}
	if !e.Policy().Allows(req.RawType, kind) {
		return false, nil
	}
	if CheckSMS(req.Record, req.Now, req.ClockSynced) != Allowed {
		return false, nil
	}

	var msg string
	if req.IsDigital {
		msg = DigitalAlarmMessage(req.Site, req.Tank, req.DigitalActive)
	} else {
		msg = AlarmMessage(req.Site, req.Tank, req.RawType, req.Level)
	}

	body := SMSBody{Message: msg, Numbers: req.Contacts.numbers()}
	if err := e.Bus.Enqueue(ctx, bus.FileSMS, body.toMap(), true); err != nil {
		e.Log.Warn().Err(err).Str("site", req.Site).Int("tank", req.Tank).Msg("alert: sms enqueue failed")
		return true, err
	}
	return true, nil
}

// UnloadSMSRequest bundles an unload event's SMS-relevant fields.
type UnloadSMSRequest struct {
	Record      *fleet.TankRecord
	Now         float64
	ClockSynced bool
	Site        string
	Tank        int
	Peak        float64
	Empty       float64
	SMSOptIn    bool
	Contacts    Contacts
}

// TrySendUnloadSMS evaluates the rate limit (unload SMS ignores the
// high/low/clear policy gate — it's opted into per-event via the note's
// own "sms" field) and enqueues on success.
func (e *Engine) TrySendUnloadSMS(ctx context.Context, req UnloadSMSRequest) (sent bool, err error) {
	if !req.SMSOptIn {
		return false, nil
	}
	if CheckSMS(req.Record, req.Now, req.ClockSynced) != Allowed {
		return false, nil
	}

	body := SMSBody{
		Message: UnloadMessage(req.Site, req.Tank, req.Peak, req.Empty),
		Numbers: req.Contacts.numbers(),
	}
	if err := e.Bus.Enqueue(ctx, bus.FileSMS, body.toMap(), true); err != nil {
		e.Log.Warn().Err(err).Str("site", req.Site).Int("tank", req.Tank).Msg("alert: unload sms enqueue failed")
		return true, err
	}
	return true, nil
}
