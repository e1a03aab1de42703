package main

import (
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/automlcli/engine"
	"github.com/YuminosukeSato/automlcli/pkg/errors"
)

// writePromMetrics exports the training report as a Prometheus textfile
// for node_exporter's textfile collector.
func writePromMetrics(path, engineName string, report engine.Report, elapsed time.Duration) error {
	reg := prometheus.NewRegistry()
	scores := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "automl",
		Name:      "train_report",
		Help:      "Scores reported by the training engine.",
	}, []string{"engine", "metric"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   "automl",
		Name:        "train_duration_seconds",
		Help:        "Wall time of the training call.",
		ConstLabels: prometheus.Labels{"engine": engineName},
	})
	reg.MustRegister(scores, duration)

	keys := make([]string, 0, len(report))
	for k := range report {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		scores.WithLabelValues(engineName, k).Set(report[k])
	}
	duration.Set(elapsed.Seconds())

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
