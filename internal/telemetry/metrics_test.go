package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func family(t *testing.T, m *Metrics, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestRecorderCounts(t *testing.T) {
	m := New("wash_1")
	m.ObserveTransfer("DROPOFF", 2)
	m.ObserveTransfer("DROPOFF", 3)
	m.ObserveTransfer("RETURN", 1)
	m.CustomerSpawned()
	m.CustomerSpawned()
	m.CustomerDeparted()
	m.InvalidRange()
	m.SetLive(1, 1)
	m.ObserveStep(300 * time.Microsecond)

	items := family(t, m, "washcycle_items_moved_total")
	got := map[string]float64{}
	for _, metric := range items.GetMetric() {
		for _, l := range metric.GetLabel() {
			if l.GetName() == "kind" {
				got[l.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	if got["DROPOFF"] != 5 || got["RETURN"] != 1 {
		t.Fatalf("items moved: %v", got)
	}

	if v := family(t, m, "washcycle_customers_spawned_total").GetMetric()[0].GetCounter().GetValue(); v != 2 {
		t.Fatalf("spawned=%v", v)
	}
	if v := family(t, m, "washcycle_customers_live").GetMetric()[0].GetGauge().GetValue(); v != 1 {
		t.Fatalf("live=%v", v)
	}
	if n := family(t, m, "washcycle_tick_step_seconds").GetMetric()[0].GetHistogram().GetSampleCount(); n != 1 {
		t.Fatalf("step samples=%d", n)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveTransfer("PICKUP", 1)
	m.CustomerSpawned()
	m.CustomerDeparted()
	m.InvalidRange()
	m.SetLive(3, 1)
	m.ObserveStep(time.Millisecond)
}

func TestHandlerServesTextFormat(t *testing.T) {
	m := New("wash_1")
	m.InvalidRange()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `washcycle_invalid_range_total{world_id="wash_1"} 1`) {
		t.Fatalf("metric missing from output:\n%s", body)
	}
}
