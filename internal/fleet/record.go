// Package fleet holds the live, in-memory fleet snapshot: one record per
// (deviceUID, tankNumber), plus per-device metadata. It is component 3 of
// the design — an indexed table with O(1) lookup, mutated exclusively by
// the ingest pipeline's serial task and read by the HTTP facade under a
// short-held lock (see Store).
package fleet

// ObjectType enumerates the kinds of thing a tank record can describe.
type ObjectType string

const (
	ObjectTank   ObjectType = "tank"
	ObjectEngine ObjectType = "engine"
	ObjectPump   ObjectType = "pump"
	ObjectGas    ObjectType = "gas"
	ObjectFlow   ObjectType = "flow"
)

// SensorInterface enumerates how a tank's raw reading is carried on the wire.
type SensorInterface string

const (
	SensorAnalog      SensorInterface = "analog"
	SensorDigital     SensorInterface = "digital"
	SensorCurrentLoop SensorInterface = "currentLoop"
	SensorPulse       SensorInterface = "pulse"
)

// sensorMaFloor is the canonical "sensor present" threshold (invariant 5):
// a raw mA reading below this is treated as "no sensor" and not stored.
const sensorMaFloor = 4.0

// maxSMSTimestamps bounds the per-record rolling SMS ring (spec §3).
const maxSMSTimestamps = 10

// baselineAgeSeconds is the minimum age before previousLevel/previousLevelEpoch roll forward (invariant 2).
const baselineAgeSeconds = 22 * 3600

// TankRecord is the central per-(device, tank) state object.
type TankRecord struct {
	DeviceUID  string
	TankNumber int

	Site            string
	Label           string
	Contents        string
	ObjectType      ObjectType
	SensorInterface SensorInterface
	Unit            string

	Level       float64
	SensorMa    float64
	SensorVolts float64

	AlarmActive bool
	AlarmType   string

	LastUpdateEpoch float64

	PreviousLevel      float64
	PreviousLevelEpoch float64

	LastSmsEpoch   float64
	SmsTimestamps  []float64
}

// Key identifies a tank record by (deviceUID, tankNumber).
type Key struct {
	DeviceUID  string
	TankNumber int
}

func newTankRecord(device string, tank int) *TankRecord {
	return &TankRecord{
		DeviceUID:  device,
		TankNumber: tank,
		ObjectType: ObjectTank,
	}
}

// ApplyBaseline implements invariant 2: previousLevel/previousLevelEpoch are
// rolled forward only on the first-ever sample, or once the incoming sample
// is at least 22 hours beyond lastUpdateEpoch. epoch must already be the
// max of the incoming and stored lastUpdateEpoch (invariant 8).
func (r *TankRecord) ApplyBaseline(epoch float64) {
	if r.LastUpdateEpoch == 0 || epoch-r.LastUpdateEpoch >= baselineAgeSeconds {
		r.PreviousLevel = r.Level
		r.PreviousLevelEpoch = r.LastUpdateEpoch
	}
}

// SetSensorMa stores a raw mA reading only when it clears the "sensor
// present" floor (invariant 5); below the floor the stored value is left
// untouched (the old reading, or zero if never set).
func (r *TankRecord) SetSensorMa(ma float64) {
	if ma >= sensorMaFloor {
		r.SensorMa = ma
	}
}

// RecordSMS appends epoch to the bounded SMS ring and updates lastSmsEpoch.
// Call only after the rate limiter has granted the send.
func (r *TankRecord) RecordSMS(epoch float64) {
	r.LastSmsEpoch = epoch
	r.SmsTimestamps = append(r.SmsTimestamps, epoch)
	if len(r.SmsTimestamps) > maxSMSTimestamps {
		r.SmsTimestamps = r.SmsTimestamps[len(r.SmsTimestamps)-maxSMSTimestamps:]
	}
}

// DeviceMeta holds per-device metadata, created lazily on first daily-report.
type DeviceMeta struct {
	DeviceUID          string
	SupplyVoltage      float64
	SupplyVoltageEpoch float64
}
