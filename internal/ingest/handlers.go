package ingest

import (
	"context"

	"github.com/coldbrook/fleetwatch/internal/alert"
	"github.com/coldbrook/fleetwatch/internal/bus"
	"github.com/coldbrook/fleetwatch/internal/decode"
	"github.com/coldbrook/fleetwatch/internal/fleet"
	"github.com/coldbrook/fleetwatch/internal/history"
)

func toSensorKind(raw string) decode.SensorKind {
	switch normalizeSensorInterface(raw) {
	case "analog":
		return decode.Analog
	case "digital":
		return decode.Digital
	case "pulse":
		return decode.Pulse
	default:
		return decode.CurrentLoop
	}
}

func toFleetInterface(raw string) fleet.SensorInterface {
	switch normalizeSensorInterface(raw) {
	case "analog":
		return fleet.SensorAnalog
	case "digital":
		return fleet.SensorDigital
	case "pulse":
		return fleet.SensorPulse
	default:
		return fleet.SensorCurrentLoop
	}
}

// sensorReading pulls the decode.Input and fleet metadata fields common to
// telemetry, alarm, and daily-tank bodies.
type sensorReading struct {
	input    decode.Input
	rawMa    float64
	hasMa    bool
	rawVolts float64
}

func extractReading(body map[string]any, sensorInterfaceRaw string) sensorReading {
	kind := toSensorKind(sensorInterfaceRaw)
	ma, hasMa := firstFloat(body, "ma", "sensorMa")
	volts, _ := firstFloat(body, "vt")
	digital, _ := firstBool(body, "fl")
	pulse, _ := firstFloat(body, "rm")

	return sensorReading{
		rawMa:    ma,
		hasMa:    hasMa,
		rawVolts: volts,
		input: decode.Input{
			Kind:     kind,
			RawMa:    ma,
			RawVolts: volts,
			RawBool:  digital,
			RawPulse: pulse,
		},
	}
}

// applyCommonTankFields upserts identity/metadata fields shared by
// telemetry and daily bodies onto r, per spec §4.6 step 1: never overwrite
// a non-empty label/contents with an empty value.
func applyCommonTankFields(r *fleet.TankRecord, body map[string]any) {
	if site, ok := firstString(body, "s", "site"); ok {
		r.Site = site
	}
	if label, ok := firstString(body, "n", "label"); ok {
		r.Label = label
	}
	if contents, ok := firstString(body, "cn", "contents"); ok {
		r.Contents = contents
	}
	if ot, ok := firstString(body, "ot", "objectType"); ok {
		r.ObjectType = fleet.ObjectType(ot)
	} else if r.ObjectType == "" {
		r.ObjectType = fleet.ObjectTank
	}
	if si, ok := firstString(body, "si", "sensorInterface", "st", "sensorType"); ok {
		r.SensorInterface = toFleetInterface(si)
	}
	if unit, ok := firstString(body, "mu", "measurementUnit"); ok {
		r.Unit = unit
	}
}

func maxEpoch(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// commitReading applies a decoded level + baseline rule + raw sensor
// storage to r, per spec §4.6 steps 2-4 and invariants 2, 5, 8.
func commitReading(r *fleet.TankRecord, reading sensorReading, cfg decode.Config, epoch float64) {
	level := decode.Level(reading.input, cfg)

	committedEpoch := maxEpoch(epoch, r.LastUpdateEpoch)
	r.ApplyBaseline(committedEpoch)

	r.Level = level
	if reading.hasMa {
		r.SetSensorMa(reading.rawMa)
	}
	r.SensorVolts = reading.rawVolts
	r.LastUpdateEpoch = committedEpoch
}

// handleTelemetry implements the telemetry handler (spec §4.6).
func (p *Pipeline) handleTelemetry(ctx context.Context, note bus.Note) {
	body := note.Body
	deviceUID, ok := deviceUID(body)
	tank, okTank := tankNumber(body)
	if !ok || !okTank {
		p.Log.Warn().Msg("ingest: telemetry note missing client/tank, dropping")
		return
	}

	siRaw, _ := firstString(body, "si", "sensorInterface", "st", "sensorType")
	reading := extractReading(body, siRaw)
	cfg := p.Config.TankConfig(deviceUID, tank)

	err := p.Fleet.Mutate(deviceUID, tank, func(r *fleet.TankRecord) {
		applyCommonTankFields(r, body)
		commitReading(r, reading, cfg, note.Epoch)

		if calibParams, ok := p.Calib.Lookup(deviceUID, tank); ok && calibParams.HasLearnedCalibration && reading.hasMa {
			r.Level = calibParams.Apply(reading.rawMa)
		}

		p.History.Hourly.Push(deviceUID, tank, history.Snapshot{
			Epoch: r.LastUpdateEpoch, Level: r.Level, Voltage: r.SensorVolts,
		})
	})
	if err != nil {
		p.History.SerialLogs.Warnf(note.Epoch, "ingest", "telemetry dropped: "+err.Error())
	}
}

// handleAlarm implements the alarm handler (spec §4.6).
func (p *Pipeline) handleAlarm(ctx context.Context, note bus.Note) {
	body := note.Body
	deviceUID, ok := deviceUID(body)
	tank, okTank := tankNumber(body)
	rawType, okType := firstString(body, "y", "type")
	if !ok || !okTank || !okType {
		p.Log.Warn().Msg("ingest: alarm note missing client/tank/type, dropping")
		return
	}

	kind := alert.ClassifyAlarmType(rawType)
	siRaw, _ := firstString(body, "si", "sensorInterface", "st", "sensorType")
	reading := extractReading(body, siRaw)
	cfg := p.Config.TankConfig(deviceUID, tank)
	smsEnabled, explicit := firstBool(body, "se", "smsEnabled")
	if !explicit {
		smsEnabled = true
	}

	clockSynced := p.Clock.Synced()
	now := p.Clock.Now()
	var digitalActive bool

	err := p.Fleet.Mutate(deviceUID, tank, func(r *fleet.TankRecord) {
		commitReading(r, reading, cfg, note.Epoch)

		switch kind {
		case alert.KindClear:
			r.AlarmActive = false
			r.AlarmType = rawType
			p.History.AlarmLog.Clear(deviceUID, tank, note.Epoch)
		case alert.KindDiagnostic:
			r.AlarmType = rawType
		case alert.KindDigital:
			r.AlarmActive = true
			r.AlarmType = rawType
			digitalActive = rawType == "triggered"
			p.History.AlarmLog.Open(history.AlarmLogEntry{
				Epoch: note.Epoch, Site: r.Site, DeviceUID: deviceUID, Tank: tank,
				Level: r.Level, IsHigh: true,
			})
		case alert.KindAnalog:
			r.AlarmActive = true
			r.AlarmType = rawType
			p.History.AlarmLog.Open(history.AlarmLogEntry{
				Epoch: note.Epoch, Site: r.Site, DeviceUID: deviceUID, Tank: tank,
				Level: r.Level, IsHigh: rawType != "low",
			})
		}

		_, err := p.Alert.TrySendAlarmSMS(ctx, alert.AlarmSMSRequest{
			Record:            r,
			Now:               now,
			ClockSynced:       clockSynced,
			Site:              r.Site,
			Tank:              tank,
			RawType:           rawType,
			Level:             r.Level,
			DigitalActive:     digitalActive,
			IsDigital:         kind == alert.KindDigital,
			MessageSMSEnabled: smsEnabled,
			Contacts:          p.Contacts.For(r.Site),
		})
		if err != nil {
			p.Log.Warn().Err(err).Str("device", deviceUID).Int("tank", tank).Msg("ingest: alarm sms failed")
		}
	})
	if err != nil {
		p.History.SerialLogs.Warnf(note.Epoch, "ingest", "alarm dropped: "+err.Error())
	}
}

// handleDaily implements the daily handler (spec §4.6): device-wide
// metadata plus a per-tank summary array, never triggers SMS.
func (p *Pipeline) handleDaily(ctx context.Context, note bus.Note) {
	body := note.Body
	deviceUID, ok := deviceUID(body)
	if !ok {
		p.Log.Warn().Msg("ingest: daily note missing client, dropping")
		return
	}

	if voltage, ok := firstFloat(body, "v"); ok {
		if err := p.Fleet.MutateDevice(deviceUID, func(d *fleet.DeviceMeta) {
			d.SupplyVoltage = voltage
			d.SupplyVoltageEpoch = note.Epoch
		}); err != nil {
			p.History.SerialLogs.Warnf(note.Epoch, "ingest", "daily device update dropped: "+err.Error())
		}
	}

	tanksRaw, _ := body["tanks"].([]any)
	for _, tr := range tanksRaw {
		tankBody, ok := tr.(map[string]any)
		if !ok {
			continue
		}
		tank, okTank := tankNumber(tankBody)
		if !okTank {
			continue
		}
		siRaw, _ := firstString(tankBody, "si", "sensorInterface", "st", "sensorType")
		reading := extractReading(tankBody, siRaw)
		cfg := p.Config.TankConfig(deviceUID, tank)

		err := p.Fleet.Mutate(deviceUID, tank, func(r *fleet.TankRecord) {
			applyCommonTankFields(r, tankBody)
			if reading.hasMa || tankBody["vt"] != nil || tankBody["fl"] != nil || tankBody["rm"] != nil {
				commitReading(r, reading, cfg, note.Epoch)
				if calibParams, ok := p.Calib.Lookup(deviceUID, tank); ok && calibParams.HasLearnedCalibration && reading.hasMa {
					r.Level = calibParams.Apply(reading.rawMa)
				}
			}
			p.History.Hourly.Push(deviceUID, tank, history.Snapshot{
				Epoch: r.LastUpdateEpoch, Level: r.Level, Voltage: r.SensorVolts,
			})
		})
		if err != nil {
			p.History.SerialLogs.Warnf(note.Epoch, "ingest", "daily tank update dropped: "+err.Error())
		}
	}
}

// handleUnload implements the unload handler (spec §4.6).
func (p *Pipeline) handleUnload(ctx context.Context, note bus.Note) {
	body := note.Body
	deviceUID, ok := deviceUID(body)
	tank, okTank := tankNumber(body)
	if !ok || !okTank {
		p.Log.Warn().Msg("ingest: unload note missing client/tank, dropping")
		return
	}

	site, _ := firstString(body, "s", "site")
	label, _ := firstString(body, "n", "label")
	peak, _ := firstFloat(body, "pk")
	empty, _ := firstFloat(body, "em")
	peakMa, _ := firstFloat(body, "pma")
	emptyMa, _ := firstFloat(body, "ema")
	peakEpoch, _ := firstFloat(body, "pt")
	smsOptIn, _ := firstBool(body, "sms")
	emailOptIn, _ := firstBool(body, "email")

	p.History.UnloadLog.Append(history.UnloadLogEntry{
		EventEpoch: note.Epoch, PeakEpoch: peakEpoch, Site: site, DeviceUID: deviceUID,
		TankLabel: label, TankNumber: tank, PeakLevel: peak, EmptyLevel: empty,
		PeakSensorMa: peakMa, EmptySensorMa: emptyMa, SMSSent: false, EmailQueued: emailOptIn,
	})

	if !smsOptIn {
		return
	}
	clockSynced := p.Clock.Synced()
	now := p.Clock.Now()
	err := p.Fleet.Mutate(deviceUID, tank, func(r *fleet.TankRecord) {
		if r.Site == "" {
			r.Site = site
		}
		_, err := p.Alert.TrySendUnloadSMS(ctx, alert.UnloadSMSRequest{
			Record: r, Now: now, ClockSynced: clockSynced, Site: site, Tank: tank,
			Peak: peak, Empty: empty, SMSOptIn: true, Contacts: p.Contacts.For(site),
		})
		if err != nil {
			p.Log.Warn().Err(err).Str("device", deviceUID).Int("tank", tank).Msg("ingest: unload sms failed")
		}
	})
	if err != nil {
		p.History.SerialLogs.Warnf(note.Epoch, "ingest", "unload dropped: "+err.Error())
	}
}

// handleSerialLog implements the serial-log handler (spec §4.6).
func (p *Pipeline) handleSerialLog(ctx context.Context, note bus.Note) {
	body := note.Body
	deviceUID, ok := firstString(body, "client")
	if !ok {
		return
	}

	if msg, ok := firstString(body, "message"); ok {
		p.History.SerialLogs.AppendDevice(deviceUID, history.SerialLogEntry{
			Epoch: note.Epoch, Message: msg, Level: history.SerialInfo, Source: "device",
		})
	}

	logsRaw, _ := body["logs"].([]any)
	for _, lr := range logsRaw {
		lb, ok := lr.(map[string]any)
		if !ok {
			continue
		}
		ts, _ := firstFloat(lb, "timestamp")
		msg, _ := firstString(lb, "message")
		lvl, _ := firstString(lb, "level")
		src, _ := firstString(lb, "source")
		if lvl == "" {
			lvl = string(history.SerialInfo)
		}
		p.History.SerialLogs.AppendDevice(deviceUID, history.SerialLogEntry{
			Epoch: ts, Message: msg, Level: history.SerialLevel(lvl), Source: src,
		})
	}
}

// handleSerialAck implements the serial-ack handler (spec §4.6).
func (p *Pipeline) handleSerialAck(ctx context.Context, note bus.Note) {
	body := note.Body
	deviceUID, ok := firstString(body, "client")
	if !ok {
		return
	}
	status, _ := firstString(body, "status")

	p.History.SerialLogs.AppendDevice(deviceUID, history.SerialLogEntry{
		Epoch: note.Epoch, Message: "ack: " + status, Level: history.SerialInfo, Source: "device",
	})
}
