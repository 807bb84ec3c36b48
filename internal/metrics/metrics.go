package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors holds the benchmark metrics registered on one registry.
type Collectors struct {
	Registry *prometheus.Registry

	SampleNanoseconds     *prometheus.HistogramVec
	LastSampleNanoseconds *prometheus.GaugeVec
	Validations           *prometheus.CounterVec
	RunsFailed            prometheus.Counter
}

func NewCollectors(reg *prometheus.Registry) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		Registry: reg,
		SampleNanoseconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zebench_sample_nanoseconds",
			Help:    "Benchmark samples in nanoseconds",
			Buckets: prometheus.ExponentialBuckets(1000, 4, 15), // 1us to ~268s
		}, []string{"benchmark", "name"}),

		LastSampleNanoseconds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zebench_last_sample_nanoseconds",
			Help: "Most recent benchmark sample in nanoseconds per problem size",
		}, []string{"benchmark", "name", "size"}),

		Validations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zebench_validation_total",
			Help: "The total number of result validations by outcome",
		}, []string{"benchmark", "result"}),

		RunsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "zebench_runs_failed_total",
			Help: "The total number of benchmark runs that failed and were retried or abandoned",
		}),
	}
}

// ObserveSample records one sample in the histogram and the per-size gauge.
func (c *Collectors) ObserveSample(benchmark, name string, size uint64, d time.Duration) {
	ns := float64(d.Nanoseconds())
	c.SampleNanoseconds.WithLabelValues(benchmark, name).Observe(ns)
	c.LastSampleNanoseconds.WithLabelValues(benchmark, name, strconv.FormatUint(size, 10)).Set(ns)
}

func (c *Collectors) ObserveValidation(benchmark, result string) {
	c.Validations.WithLabelValues(benchmark, result).Inc()
}

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter textfile collector.
func (c *Collectors) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.Registry)
}
