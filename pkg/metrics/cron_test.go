package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "stale-carts"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "wacommerce_cron_job_success_total", "job", job); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "wacommerce_cron_job_failure_total", "job", job); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "wacommerce_cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

func TestCronJobMetricsRowsAffected(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	metrics.AddAffected("stale-conversations", 4)
	metrics.AddAffected("stale-conversations", 0)
	metrics.AddAffected("", 1)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "wacommerce_cron_job_rows_affected_total", "job", "stale-conversations"); err != nil {
		t.Fatalf("fetch affected: %v", err)
	} else if got != 4 {
		t.Fatalf("expected affected=4, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "wacommerce_cron_job_rows_affected_total", "job", "unknown"); err != nil {
		t.Fatalf("fetch unknown: %v", err)
	} else if got != 1 {
		t.Fatalf("expected unknown=1, got %f", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var cron *CronJobMetrics
	cron.IncSuccess("x")
	cron.AddAffected("x", 2)
	NewCronJobMetrics(nil).IncFailure("x")

	var conv *ConversationMetrics
	conv.IncInbound(OutcomeHandled)
	NewConversationMetrics(nil).IncOrdersCreated()
}

func TestConversationMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConversationMetrics(reg)
	m.IncInbound(OutcomeHandled)
	m.IncInbound(OutcomeHandled)
	m.IncInbound(OutcomeDuplicate)
	m.IncOutbound("text", fmt.Errorf("gateway down"))
	m.ObserveUpstream("agent", nil, 1500*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "wacommerce_inbound_messages_total", "outcome", OutcomeHandled); err != nil || got != 2 {
		t.Fatalf("expected handled=2, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "wacommerce_outbound_messages_total", "result", "error"); err != nil || got != 1 {
		t.Fatalf("expected outbound error=1, got %f (%v)", got, err)
	}
	if got, err := fetchHistogramSum(mfs, "wacommerce_upstream_call_duration_seconds", "service", "agent"); err != nil || got != 1.5 {
		t.Fatalf("expected agent latency 1.5s, got %f (%v)", got, err)
	}
}
