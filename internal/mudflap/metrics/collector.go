// Package metrics exports runtime statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kolkov/mudflap/internal/mudflap/engine"
	"github.com/kolkov/mudflap/internal/mudflap/object"
)

const namespace = "mudflap"

// Source provides statistics snapshots. *engine.Runtime implements it.
type Source interface {
	Stats() engine.Stats
}

// Collector is a prometheus.Collector reading a Source on every scrape.
type Collector struct {
	src Source

	checks          *prometheus.Desc
	cacheHits       *prometheus.Desc
	registrations   *prometheus.Desc
	registeredBytes *prometheus.Desc
	unregistrations *prometheus.Desc
	violations      *prometheus.Desc
	rotations       *prometheus.Desc
	liveObjects     *prometheus.Desc
	deadObjects     *prometheus.Desc
	cacheSlots      *prometheus.Desc
	stacks          *prometheus.Desc
}

// NewCollector creates a collector over src.
func NewCollector(src Source) *Collector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		src:             src,
		checks:          desc("checks_total", "Checks performed (with collect-stats)."),
		cacheHits:       desc("cache_hits_total", "Checks answered by the lookup cache."),
		registrations:   desc("registrations_total", "Object registrations (with collect-stats).", "type"),
		registeredBytes: desc("registered_bytes_total", "Bytes registered (with collect-stats).", "type"),
		unregistrations: desc("unregistrations_total", "Object unregistrations (with collect-stats)."),
		violations:      desc("violations_total", "Violations detected.", "kind"),
		rotations:       desc("tree_rotations_total", "Object tree rotations.", "direction"),
		liveObjects:     desc("live_objects", "Objects in the live object tree."),
		deadObjects:     desc("dead_objects", "Objects kept in the cemetery."),
		cacheSlots:      desc("lookup_cache_slots", "Lookup cache slots by state.", "state"),
		stacks:          desc("stack_traces", "Distinct backtraces held in the stack depot."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.checks, c.cacheHits, c.registrations, c.registeredBytes, c.unregistrations,
		c.violations, c.rotations, c.liveObjects, c.deadObjects, c.cacheSlots, c.stacks,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.src.Stats()

	counter := func(d *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v int, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), labels...)
	}

	counter(c.checks, s.Checks)
	counter(c.cacheHits, s.CacheHits)
	for t := 0; t < object.NumTypes; t++ {
		name := object.Type(t).String()
		counter(c.registrations, s.Registrations[t], name)
		counter(c.registeredBytes, s.RegisteredBytes[t], name)
	}
	counter(c.unregistrations, s.Unregistrations)
	for k := engine.KindCheck; int(k) < engine.NumKinds; k++ {
		counter(c.violations, s.Violations[k], k.String())
	}
	counter(c.rotations, s.RotationsLeft, "left")
	counter(c.rotations, s.RotationsRight, "right")
	gauge(c.liveObjects, s.LiveObjects)
	gauge(c.deadObjects, s.DeadObjects)
	gauge(c.cacheSlots, s.CacheUsed, "used")
	gauge(c.cacheSlots, s.CacheUnused, "unused")
	gauge(c.stacks, s.Stacks)
}
