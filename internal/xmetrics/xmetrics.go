// Package xmetrics keeps the counter names used by the pattern packages in
// one place and routes them to go-metrics.
package xmetrics

import (
	"time"

	"github.com/hashicorp/go-metrics"
	"github.com/pkg/errors"
)

// Sink sends counters to a bound *metrics.Metrics. The zero value sends to
// the go-metrics global instance, which discards everything until
// InitGlobal (or metrics.NewGlobal) installs a real sink.
type Sink struct {
	m *metrics.Metrics
}

func NewSink(m *metrics.Metrics) Sink {
	return Sink{m: m}
}

// InitGlobal installs sink as the process-wide go-metrics destination.
func InitGlobal(serviceName string, sink metrics.MetricSink) error {
	if _, err := metrics.NewGlobal(Config(serviceName), sink); err != nil {
		return errors.Wrap(err, "new global metrics failed")
	}
	return nil
}

// NewInmem returns a Metrics bound to a fresh in-memory sink. Used by the
// examples and by tests that assert counters.
func NewInmem(serviceName string) (*metrics.Metrics, *metrics.InmemSink, error) {
	sink := metrics.NewInmemSink(10*time.Second, time.Minute)
	m, err := metrics.New(Config(serviceName), sink)
	if err != nil {
		return nil, nil, errors.Wrap(err, "new inmem metrics failed")
	}
	return m, sink, nil
}

// Config is metrics.DefaultConfig without hostname prefixes and without the
// runtime stats goroutine.
func Config(serviceName string) *metrics.Config {
	conf := metrics.DefaultConfig(serviceName)
	conf.EnableHostname = false
	conf.EnableHostnameLabel = false
	conf.EnableRuntimeMetrics = false
	return conf
}

// Count sums every sample recorded for the counter with the flattened name
// (service prefix included, labels ignored).
func Count(sink *metrics.InmemSink, name string) int {
	total := 0
	for _, interval := range sink.Data() {
		interval.RLock()
		for _, v := range interval.Counters {
			if v.Name == name && v.AggregateSample != nil {
				total += v.Count
			}
		}
		interval.RUnlock()
	}
	return total
}

func (s Sink) incr(key []string, labels ...metrics.Label) {
	if s.m != nil {
		s.m.IncrCounterWithLabels(key, 1, labels)
		return
	}
	metrics.IncrCounterWithLabels(key, 1, labels)
}
