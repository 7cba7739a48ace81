package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type families map[string]*dto.MetricFamily

func gather(t *testing.T, reg *prometheus.Registry) families {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	out := make(families, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = mf
	}
	return out
}

// series returns the first sample of name carrying label=value. An empty
// label matches the first sample.
func (f families) series(t *testing.T, name, label, value string) *dto.Metric {
	t.Helper()
	mf, ok := f[name]
	if !ok {
		t.Fatalf("metric %q not gathered", name)
	}
	for _, metric := range mf.GetMetric() {
		if label == "" {
			return metric
		}
		for _, pair := range metric.GetLabel() {
			if pair.GetName() == label && pair.GetValue() == value {
				return metric
			}
		}
	}
	t.Fatalf("metric %q has no series with %s=%q", name, label, value)
	return nil
}

func (f families) counter(t *testing.T, name, label, value string) float64 {
	t.Helper()
	return f.series(t, name, label, value).GetCounter().GetValue()
}
