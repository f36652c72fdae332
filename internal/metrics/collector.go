package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coldbrook/fleetwatch/internal/fleet"
)

// FleetStats provides the collector read access to live fleet state without
// coupling it to fleet.Store's full API surface.
type FleetStats interface {
	Snapshot() []fleet.TankRecord
	DeviceSnapshot() []fleet.DeviceMeta
}

// Collector implements prometheus.Collector, reading live gauges at scrape
// time instead of tracking them incrementally.
type Collector struct {
	fleet FleetStats
	pool  *pgxpool.Pool

	tanksTotal      *prometheus.Desc
	devicesTotal    *prometheus.Desc
	alarmsActive    *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
	dbIdleConns     *prometheus.Desc
}

// NewCollector creates a collector over fleetStats (read at scrape time) and
// an optional warm-tier connection pool. Either may be nil.
func NewCollector(fleetStats FleetStats, pool *pgxpool.Pool) *Collector {
	return &Collector{
		fleet: fleetStats,
		pool:  pool,
		tanksTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "tanks_total"),
			"Current number of tank records held in the fleet table.",
			nil, nil,
		),
		devicesTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "devices_total"),
			"Current number of devices with cached metadata.",
			nil, nil,
		),
		alarmsActive: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "alarms_active"),
			"Current number of tanks with an active alarm.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total warm-tier database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Warm-tier database pool connections currently in use.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Warm-tier database pool idle connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tanksTotal
	ch <- c.devicesTotal
	ch <- c.alarmsActive
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.fleet != nil {
		tanks := c.fleet.Snapshot()
		active := 0
		for _, t := range tanks {
			if t.AlarmActive {
				active++
			}
		}
		ch <- prometheus.MustNewConstMetric(c.tanksTotal, prometheus.GaugeValue, float64(len(tanks)))
		ch <- prometheus.MustNewConstMetric(c.alarmsActive, prometheus.GaugeValue, float64(active))
		ch <- prometheus.MustNewConstMetric(c.devicesTotal, prometheus.GaugeValue, float64(len(c.fleet.DeviceSnapshot())))
	} else {
		ch <- prometheus.MustNewConstMetric(c.tanksTotal, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.alarmsActive, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.devicesTotal, prometheus.GaugeValue, 0)
	}

	if c.pool != nil {
		stat := c.pool.Stat()
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, float64(stat.TotalConns()))
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()))
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, float64(stat.IdleConns()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, 0)
	}
}
