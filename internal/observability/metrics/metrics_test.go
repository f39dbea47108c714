package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMessagingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMessagingMetrics(reg)
	m.ObserveInbound("text", "handled")
	m.ObserveInbound("text", "handled")
	m.ObserveInbound("button", "duplicate")
	m.ObserveOutbound("interactive", "sent", 120*time.Millisecond)
	m.ObserveWebhook(200, time.Second)
	m.ObserveTransition("WELCOME", "SERVICE_SELECTION")
	m.ObserveMatch("embedding", true, 0.82)
	m.ObserveSkippedScript("ARABIC")
	m.ObserveEmbedding("bedrock", "ok", 30*time.Millisecond)

	if got := testutil.ToFloat64(m.inboundTotal.WithLabelValues("text", "handled")); got != 2 {
		t.Fatalf("expected 2 handled text messages, got %v", got)
	}
	if got := testutil.ToFloat64(m.matchTotal.WithLabelValues("embedding", "true")); got != 1 {
		t.Fatalf("expected one match, got %v", got)
	}
	if got := testutil.ToFloat64(m.webhookTotal.WithLabelValues("200")); got != 1 {
		t.Fatalf("expected one webhook, got %v", got)
	}
	if got := testutil.ToFloat64(m.transitionsTotal.WithLabelValues("WELCOME", "SERVICE_SELECTION")); got != 1 {
		t.Fatalf("expected one transition, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var hist *dto.Histogram
	for _, f := range families {
		if f.GetName() == "clinic_scripts_match_score" {
			hist = f.GetMetric()[0].GetHistogram()
		}
	}
	if hist == nil || hist.GetSampleCount() != 1 || hist.GetSampleSum() != 0.82 {
		t.Fatalf("unexpected match score histogram %v", hist)
	}
}

func TestMessagingMetricsDefaultRegistry(t *testing.T) {
	// Swap the default registerer so repeated test runs do not collide.
	prev := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	defer func() { prometheus.DefaultRegisterer = prev }()

	m := NewMessagingMetrics(nil)
	m.ObserveOutbound("text", "error", time.Millisecond)
}

func TestMessagingMetricsNilSafe(t *testing.T) {
	var m *MessagingMetrics
	m.ObserveInbound("text", "handled")
	m.ObserveOutbound("text", "sent", time.Millisecond)
	m.ObserveWebhook(400, time.Millisecond)
	m.ObserveTransition("a", "b")
	m.ObserveMatch("lexical", false, 0)
	m.ObserveSkippedScript("FRENCH")
	m.ObserveEmbedding("openai", "error", time.Millisecond)
}
