package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/coldbrook/fleetwatch/internal/fleet"
)

type fakeFleetStats struct {
	tanks   []fleet.TankRecord
	devices []fleet.DeviceMeta
}

func (f fakeFleetStats) Snapshot() []fleet.TankRecord       { return f.tanks }
func (f fakeFleetStats) DeviceSnapshot() []fleet.DeviceMeta { return f.devices }

func collectMetrics(t *testing.T, c *Collector) map[string]float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 16)
	go func() {
		c.Collect(ch)
		close(ch)
	}()

	out := make(map[string]float64)
	for m := range ch {
		var pb dto.Metric
		require.NoError(t, m.Write(&pb))
		name := m.Desc().String()
		if pb.Gauge != nil {
			out[name] = pb.Gauge.GetValue()
		}
	}
	return out
}

func TestCollectorReadsLiveFleetState(t *testing.T) {
	stats := fakeFleetStats{
		tanks: []fleet.TankRecord{
			{DeviceUID: "dev:1", TankNumber: 1, AlarmActive: true},
			{DeviceUID: "dev:1", TankNumber: 2, AlarmActive: false},
			{DeviceUID: "dev:2", TankNumber: 1, AlarmActive: true},
		},
		devices: []fleet.DeviceMeta{{DeviceUID: "dev:1"}, {DeviceUID: "dev:2"}},
	}
	c := NewCollector(stats, nil)

	values := collectMetrics(t, c)
	require.Len(t, values, 6) // 3 fleet gauges + 3 db_pool gauges (zeroed, nil pool)

	var sawTanks, sawAlarms, sawDevices bool
	for desc, v := range values {
		switch {
		case contains(desc, "tanks_total"):
			require.Equal(t, float64(3), v)
			sawTanks = true
		case contains(desc, "alarms_active"):
			require.Equal(t, float64(2), v)
			sawAlarms = true
		case contains(desc, "devices_total"):
			require.Equal(t, float64(2), v)
			sawDevices = true
		}
	}
	require.True(t, sawTanks && sawAlarms && sawDevices)
}

func TestCollectorNilFleetAndPoolYieldsZeroedGauges(t *testing.T) {
	c := NewCollector(nil, nil)
	values := collectMetrics(t, c)
	for _, v := range values {
		require.Zero(t, v)
	}
}

func TestCollectorDescribeEmitsSixDescriptors(t *testing.T) {
	c := NewCollector(fakeFleetStats{}, nil)
	ch := make(chan *prometheus.Desc, 16)
	go func() {
		c.Describe(ch)
		close(ch)
	}()
	count := 0
	for range ch {
		count++
	}
	require.Equal(t, 6, count)
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
