package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAccountRecorders(t *testing.T) {
	m := New()
	acc := m.Account("alice")

	acc.Reconnect("stale")
	acc.Reconnect("stale")
	acc.Dropped("duplicate")
	acc.PointsGained("bob", "WATCH", 10)
	acc.PointsGained("bob", "WATCH", 0)
	acc.Balance("bob", 1500)
	acc.Online("bob", true)

	if got := testutil.ToFloat64(m.Reconnects.WithLabelValues("alice", "stale")); got != 2 {
		t.Errorf("reconnects = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Dropped.WithLabelValues("alice", "duplicate")); got != 1 {
		t.Errorf("dropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PointsGained.WithLabelValues("alice", "bob", "WATCH")); got != 10 {
		t.Errorf("points = %v, want 10", got)
	}
	if got := testutil.ToFloat64(m.Balance.WithLabelValues("alice", "bob")); got != 1500 {
		t.Errorf("balance = %v, want 1500", got)
	}
	if got := testutil.ToFloat64(m.Online.WithLabelValues("alice", "bob")); got != 1 {
		t.Errorf("online = %v, want 1", got)
	}
}

func TestNilSafe(t *testing.T) {
	var m *Metrics
	acc := m.Account("alice")
	acc.Reconnect("stale")
	acc.SetConnections(1)
	acc.Online("bob", false)
}

func TestHandler(t *testing.T) {
	m := New()
	m.Account("alice").SetConnections(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), `twitch_tracker_pubsub_connections{account="alice"} 2`) {
		t.Errorf("exposition missing connections gauge:\n%s", rec.Body.String())
	}
}
