package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sumire/authsession/internal/domain"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					match = false
				}
			}
			if !match {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestRecordOperation_IncrementsByLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordOperation("sign_in", "ok")
	c.RecordOperation("sign_in", "invalid_credentials")
	c.RecordOperation("sign_in", "invalid_credentials")

	if v := gatherValue(t, reg, "authsession_operations_total", map[string]string{"op": "sign_in", "outcome": "invalid_credentials"}); v != 2 {
		t.Errorf("invalid_credentials = %v, want 2", v)
	}
	if v := gatherValue(t, reg, "authsession_operations_total", map[string]string{"op": "sign_in", "outcome": "ok"}); v != 1 {
		t.Errorf("ok = %v, want 1", v)
	}
}

func TestRecordAuthEventAndInitialFetch(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthEvent(domain.AuthEventSignedOut)
	c.RecordInitialFetch(false)

	if v := gatherValue(t, reg, "authsession_provider_events_total", map[string]string{"event": "SIGNED_OUT"}); v != 1 {
		t.Errorf("events = %v, want 1", v)
	}
	if v := gatherValue(t, reg, "authsession_initial_fetch_total", map[string]string{"result": "error"}); v != 1 {
		t.Errorf("initial fetch errors = %v, want 1", v)
	}
}

func TestObserveState_TracksAuthenticatedGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveState(domain.StateFromSession(&domain.Session{AccessToken: "a", User: domain.User{ID: "u-1"}}))
	if v := gatherValue(t, reg, "authsession_authenticated", nil); v != 1 {
		t.Errorf("authenticated = %v, want 1", v)
	}

	c.ObserveState(domain.AuthState{})
	if v := gatherValue(t, reg, "authsession_authenticated", nil); v != 0 {
		t.Errorf("authenticated = %v, want 0", v)
	}
	if v := gatherValue(t, reg, "authsession_state_changes_total", nil); v != 2 {
		t.Errorf("state changes = %v, want 2", v)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordOperation("sign_out", "ok")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `authsession_operations_total{op="sign_out",outcome="ok"} 1`) {
		t.Errorf("metrics output missing operation counter:\n%s", body)
	}
}
