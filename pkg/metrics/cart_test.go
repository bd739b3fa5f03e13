package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCartMetricsExportsSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCartMetrics(reg)

	m.ObserveMutation("add", nil)
	m.ObserveMutation("add", errors.New("boom"))
	m.ObserveMutation("add", nil)
	m.ObserveMerge("cart", "merged", 40*time.Millisecond)
	m.IncSkipped("insufficient_stock")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "cart_mutations_total", "result", "ok"); err != nil || got != 2 {
		t.Fatalf("expected 2 ok mutations, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cart_mutations_total", "result", "error"); err != nil || got != 1 {
		t.Fatalf("expected 1 failed mutation, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cart_merge_total", "status", "merged"); err != nil || got != 1 {
		t.Fatalf("expected 1 merge, got %f err=%v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "cart_merge_skipped_items_total", "reason", "insufficient_stock"); err != nil || got != 1 {
		t.Fatalf("expected 1 skip, got %f err=%v", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "cart_merge_duration_seconds", "kind", "cart"); err != nil || got <= 0 {
		t.Fatalf("expected merge duration, got %f err=%v", got, err)
	}
}

func TestNilCartMetricsAreSafe(t *testing.T) {
	var m *CartMetrics
	m.ObserveMutation("add", nil)
	m.ObserveMerge("cart", "merged", time.Second)
	m.IncSkipped("x")
	NewCartMetrics(nil).ObserveMutation("add", nil)
}
