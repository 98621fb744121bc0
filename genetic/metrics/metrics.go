// Package metrics exports population statistics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baldhumanity/genetic-go/genetic"
)

const namespace = "genetic"

// Reporter is a genetic.Reporter that updates a set of gauges after every
// generation.
type Reporter struct {
	generation  prometheus.Gauge
	generations prometheus.Counter
	size        prometheus.Gauge
	best        prometheus.Gauge
	worst       prometheus.Gauge
	mean        prometheus.Gauge
	stdev       prometheus.Gauge
	duration    prometheus.Histogram

	start time.Time
}

// NewReporter creates the collectors and registers them with reg. A nil
// reg means the default registry. labels are attached to every series,
// typically the species name and run ID.
func NewReporter(reg prometheus.Registerer, labels prometheus.Labels) (*Reporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: name, Help: help, ConstLabels: labels,
		})
	}
	r := &Reporter{
		generation: gauge("generation", "Current generation number."),
		generations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "generations_total", Help: "Generations completed.", ConstLabels: labels,
		}),
		size:  gauge("population_size", "Adults after culling."),
		best:  gauge("fitness_best", "Fitness of the fittest adult (lower is better)."),
		worst: gauge("fitness_worst", "Fitness of the least fit adult."),
		mean:  gauge("fitness_mean", "Mean adult fitness."),
		stdev: gauge("fitness_stdev", "Standard deviation of adult fitness."),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "generation_duration_seconds",
			Help:        "Wall time of one generation.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	for _, c := range []prometheus.Collector{r.generation, r.generations, r.size, r.best, r.worst, r.mean, r.stdev, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Reporter) StartGeneration(int) {
	r.start = time.Now()
}

func (r *Reporter) EndGeneration(generation int, stats genetic.Stats, _ *genetic.Population) {
	r.generation.Set(float64(generation))
	r.generations.Inc()
	r.size.Set(float64(stats.Size))
	r.best.Set(stats.Best)
	r.worst.Set(stats.Worst)
	r.mean.Set(stats.Mean)
	r.stdev.Set(stats.Stdev)
	if !r.start.IsZero() {
		r.duration.Observe(time.Since(r.start).Seconds())
	}
}

// Handler serves the metrics of g, or of the default registry when g is nil.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
