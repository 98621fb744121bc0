package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baldhumanity/genetic-go/genetic"
)

func gathered(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetGauge() != nil:
				values[mf.GetName()] = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				values[mf.GetName()] = m.GetCounter().GetValue()
			case m.GetHistogram() != nil:
				values[mf.GetName()] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return values
}

func TestReporterSetsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewReporter(reg, prometheus.Labels{"species": "test"})
	require.NoError(t, err)

	r.StartGeneration(0)
	r.EndGeneration(1, genetic.Stats{Size: 20, Best: 0.5, Worst: 3, Mean: 1.25, Median: 1, Stdev: 0.75}, nil)
	r.StartGeneration(1)
	r.EndGeneration(2, genetic.Stats{Size: 20, Best: 0.25, Worst: 2, Mean: 1, Median: 1, Stdev: 0.5}, nil)

	values := gathered(t, reg)
	assert.Equal(t, 2.0, values["genetic_generation"])
	assert.Equal(t, 2.0, values["genetic_generations_total"])
	assert.Equal(t, 20.0, values["genetic_population_size"])
	assert.Equal(t, 0.25, values["genetic_fitness_best"])
	assert.Equal(t, 2.0, values["genetic_fitness_worst"])
	assert.Equal(t, 1.0, values["genetic_fitness_mean"])
	assert.Equal(t, 0.5, values["genetic_fitness_stdev"])
	assert.Equal(t, 2.0, values["genetic_generation_duration_seconds"])
}

func TestReporterDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewReporter(reg, nil)
	require.NoError(t, err)
	_, err = NewReporter(reg, nil)
	assert.Error(t, err)
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	r, err := NewReporter(reg, prometheus.Labels{"species": "served"})
	require.NoError(t, err)
	r.EndGeneration(3, genetic.Stats{Size: 4, Best: 1.5}, nil)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `genetic_fitness_best{species="served"} 1.5`), text)
	assert.Contains(t, text, "genetic_generation{")
}
