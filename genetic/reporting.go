package genetic

import (
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

var logger atomic.Pointer[slog.Logger]

func init() {
	logger.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
}

// Logger returns the package logger. Subpackages log through it too.
func Logger() *slog.Logger { return logger.Load() }

// SetLogger replaces the package logger. A nil logger is ignored.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

// Reporter receives generation lifecycle events from a population.
// EndGeneration is called with the new generation number after culling.
type Reporter interface {
	StartGeneration(generation int)
	EndGeneration(generation int, stats Stats, p *Population)
}

// ReporterSet fans events out to several reporters.
type ReporterSet struct {
	reporters []Reporter
}

func (rs *ReporterSet) Add(r Reporter) {
	rs.reporters = append(rs.reporters, r)
}

func (rs *ReporterSet) StartGeneration(generation int) {
	for _, r := range rs.reporters {
		r.StartGeneration(generation)
	}
}

func (rs *ReporterSet) EndGeneration(generation int, stats Stats, p *Population) {
	for _, r := range rs.reporters {
		r.EndGeneration(generation, stats, p)
	}
}

// LogReporter logs one structured line per generation.
type LogReporter struct {
	Logger *slog.Logger // nil means the package logger
	start  time.Time
}

func (r *LogReporter) StartGeneration(int) {
	r.start = time.Now()
}

func (r *LogReporter) EndGeneration(generation int, stats Stats, _ *Population) {
	l := r.Logger
	if l == nil {
		l = Logger()
	}
	l.Info("generation finished",
		"generation", generation,
		"size", stats.Size,
		"best", stats.Best,
		"mean", stats.Mean,
		"stdev", stats.Stdev,
		"elapsed", time.Since(r.start))
}
