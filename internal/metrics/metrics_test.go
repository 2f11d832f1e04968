package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SetOnlineUsers(3)
	m.SetActiveCalls(1)
	m.Connection("accepted")
	m.Delivered("newMessage")
	m.Dropped("newMessage", "offline")
	m.Call("placed")
}

func TestHandlerExposesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetOnlineUsers(2)
	m.Delivered("newMessage")
	m.Dropped("call-ended", "offline")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		"chat_online_users 2",
		`chat_events_delivered_total{type="newMessage"} 1`,
		`chat_events_dropped_total{reason="offline",type="call-ended"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, out)
		}
	}
}
