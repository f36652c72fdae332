package alert

import "fmt"

// AlarmMessage composes the plain-text SMS body for an analog/level alarm,
// per spec §4.6: `"<site> #<tank> <type> alarm <level> in"`.
func AlarmMessage(site string, tank int, alarmType string, level float64) string {
	return fmt.Sprintf("%s #%d %s alarm %.1f in", site, tank, alarmType, level)
}

// DigitalAlarmMessage composes the float-switch SMS body, per spec §4.6:
// `"<site> #<tank> Float Switch {ACTIVATED|NOT ACTIVATED}"`.
func DigitalAlarmMessage(site string, tank int, activated bool) string {
	state := "NOT ACTIVATED"
	if activated {
		state = "ACTIVATED"
	}
	return fmt.Sprintf("%s #%d Float Switch %s", site, tank, state)
}

// UnloadMessage composes the unload-event SMS body, per spec §4.6:
// `"<site> #<tank> unloaded: <Δ> in delivered (peak <peak>, now <empty>)"`.
func UnloadMessage(site string, tank int, peak, empty float64) string {
	delta := peak - empty
	return fmt.Sprintf("%s #%d unloaded: %.1f in delivered (peak %.1f, now %.1f)", site, tank, delta, peak, empty)
}

// SMSBody is the JSON body enqueued to sms.qo.
type SMSBody struct {
	Message string   `json:"message"`
	Numbers []string `json:"numbers"`
}

func (b SMSBody) toMap() map[string]any {
	return map[string]any{"message": b.Message, "numbers": b.Numbers}
}
