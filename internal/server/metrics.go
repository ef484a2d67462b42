package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"parking-allocator/internal/logging"
	"parking-allocator/internal/parking"
)

const metricsNamespace = "parking"

// lotCollector reads the lot on every scrape, so the exported gauges are
// never stale.
type lotCollector struct {
	lot *parking.InstrumentedParkingLot

	slots     *prometheus.Desc
	occupied  *prometheus.Desc
	available *prometheus.Desc
	expired   *prometheus.Desc
	section   *prometheus.Desc
}

func newLotCollector(lot *parking.InstrumentedParkingLot) *lotCollector {
	return &lotCollector{
		lot: lot,
		slots: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", "slots_total"),
			"Configured number of slots", nil, nil),
		occupied: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", "slots_occupied"),
			"Slots currently holding a vehicle", nil, nil),
		available: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", "slots_available"),
			"Slots currently free", nil, nil),
		expired: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", "slots_expired"),
			"Occupied slots past their time limit", nil, nil),
		section: prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "section", "occupied"),
			"Occupied slots by level, vehicle class and section",
			[]string{"level", "vehicle_class", "section"}, nil),
	}
}

func (c *lotCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.slots
	ch <- c.occupied
	ch <- c.available
	ch <- c.expired
	ch <- c.section
}

func (c *lotCollector) Collect(ch chan<- prometheus.Metric) {
	snap, err := c.lot.ParkingLot.Snapshot(c.lot.Now())
	if err != nil {
		logging.Error(context.Background(), "collecting lot metrics", "error", err)
		ch <- prometheus.NewInvalidMetric(c.slots, err)
		return
	}

	counters := snap.Counters
	ch <- prometheus.MustNewConstMetric(c.slots, prometheus.GaugeValue, float64(counters.Total))
	ch <- prometheus.MustNewConstMetric(c.occupied, prometheus.GaugeValue, float64(counters.Occupied))
	ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, float64(counters.Available))
	ch <- prometheus.MustNewConstMetric(c.expired, prometheus.GaugeValue, float64(counters.Expired))

	type key struct {
		level   int
		class   parking.VehicleClass
		section parking.Section
	}
	occupied := make(map[key]int)
	for _, slot := range snap.Slots {
		k := key{slot.Level, slot.Class, slot.Section}
		n := occupied[k]
		if slot.IsOccupied() {
			n++
		}
		occupied[k] = n
	}
	for k, n := range occupied {
		ch <- prometheus.MustNewConstMetric(c.section, prometheus.GaugeValue, float64(n),
			strconv.Itoa(k.level), k.class.String(), k.section.String())
	}
}

// newMetricsRegistry builds the scrape registry. The process and Go runtime
// collectors sit next to the lot and hub gauges.
func newMetricsRegistry(lot *parking.InstrumentedParkingLot, hub *Hub) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		newLotCollector(lot),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "websocket_clients",
			Help:      "Connected websocket clients",
		}, func() float64 { return float64(hub.ClientCount()) }),
	)
	return registry
}

func metricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}
