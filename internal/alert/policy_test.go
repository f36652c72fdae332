package alert

import "testing"

func TestClassifyAlarmType(t *testing.T) {
	cases := map[string]AlarmKind{
		"clear":            KindClear,
		"sensor-recovered": KindClear,
		"sensor-fault":     KindDiagnostic,
		"sensor-stuck":     KindDiagnostic,
		"triggered":        KindDigital,
		"not_triggered":    KindDigital,
		"high":             KindAnalog,
		"low":              KindAnalog,
	}
	for raw, want := range cases {
		if got := ClassifyAlarmType(raw); got != want {
			t.Errorf("ClassifyAlarmType(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestPolicyAllows(t *testing.T) {
	p := Policy{SMSOnHigh: true, SMSOnLow: false, SMSOnClear: false}

	if !p.Allows("high", KindAnalog) {
		t.Error("expected high alarm allowed under SMSOnHigh=true")
	}
	if p.Allows("low", KindAnalog) {
		t.Error("expected low alarm rejected under SMSOnLow=false")
	}
	if p.Allows("clear", KindClear) {
		t.Error("expected clear rejected under SMSOnClear=false")
	}
	if p.Allows("sensor-recovered", KindClear) {
		t.Error("sensor-recovered must never SMS regardless of policy")
	}
	if p.Allows("sensor-fault", KindDiagnostic) {
		t.Error("diagnostic events must never SMS")
	}
	if !p.Allows("triggered", KindDigital) {
		t.Error("digital alarms are governed by SMSOnHigh")
	}
}
