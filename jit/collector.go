package jit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports run-loop, trace cache and code tracker counters to
// Prometheus. Each sample is labelled with the run-loop id.
type Collector struct {
	loop *RunLoop

	interpreted   *prometheus.Desc
	native        *prometheus.Desc
	traceRuns     *prometheus.Desc
	compiles      *prometheus.Desc
	compileErrors *prometheus.Desc
	invalidations *prometheus.Desc
	codeBytes     *prometheus.Desc
	cacheLookups  *prometheus.Desc
	cacheHits     *prometheus.Desc
	cachedTraces  *prometheus.Desc
	lineEvictions *prometheus.Desc
}

// NewCollector creates a collector for loop.
func NewCollector(loop *RunLoop) *Collector {
	labels := prometheus.Labels{"loop": loop.ID().String()}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("rvjit", "", name), help, nil, labels)
	}

	return &Collector{
		loop:          loop,
		interpreted:   desc("interpreted_instructions_total", "Instructions retired by the interpreter."),
		native:        desc("native_instructions_total", "Instructions retired by compiled traces."),
		traceRuns:     desc("trace_runs_total", "Compiled trace executions."),
		compiles:      desc("compiles_total", "Traces compiled."),
		compileErrors: desc("compile_errors_total", "Failed trace compilations."),
		invalidations: desc("invalidations_total", "Compiled traces dropped because their code changed."),
		codeBytes:     desc("code_bytes_total", "Native code bytes emitted."),
		cacheLookups:  desc("cache_lookups_total", "Trace cache lookups."),
		cacheHits:     desc("cache_hits_total", "Trace cache hits."),
		cachedTraces:  desc("cached_traces", "Traces currently cached."),
		lineEvictions: desc("code_line_evictions_total", "Tracked code lines evicted from the directory."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.interpreted
	ch <- c.native
	ch <- c.traceRuns
	ch <- c.compiles
	ch <- c.compileErrors
	ch <- c.invalidations
	ch <- c.codeBytes
	ch <- c.cacheLookups
	ch <- c.cacheHits
	ch <- c.cachedTraces
	ch <- c.lineEvictions
}

// Collect implements prometheus.Collector. It must not run concurrently
// with the run-loop.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.loop.Stats()
	cs := c.loop.Cache().Stats()
	ts := c.loop.Tracker().Stats()

	counter := func(d *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	counter(c.interpreted, s.Interpreted)
	counter(c.native, s.Native)
	counter(c.traceRuns, s.TraceRuns)
	counter(c.compiles, s.Compiles)
	counter(c.compileErrors, s.CompileErrors)
	counter(c.invalidations, s.Invalidations)
	counter(c.codeBytes, s.CodeBytes)
	counter(c.cacheLookups, cs.Lookups)
	counter(c.cacheHits, cs.Hits)
	counter(c.lineEvictions, ts.Evictions)
	ch <- prometheus.MustNewConstMetric(c.cachedTraces, prometheus.GaugeValue, float64(c.loop.Cache().Len()))
}
