package monitor

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, m *Monitor) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestMonitorCounters(t *testing.T) {
	m := NewMonitor("changeling")
	m.IncOnlinePlayers()
	m.IncOnlinePlayers()
	m.DecOnlinePlayers()
	m.SetActiveRooms(3)
	m.IncMessagesReceived("req_join_game")
	m.IncRequestErrors("err_user_limit")
	m.IncRequestErrors("err_user_limit")
	m.IncGamesFinished("innocent_victory")
	m.ObserveMessageLatency(5 * time.Millisecond)

	out := scrape(t, m)
	for _, want := range []string{
		"changeling_online_players 1",
		"changeling_active_rooms 3",
		`changeling_messages_received_total{request="req_join_game"} 1`,
		`changeling_request_errors_total{code="err_user_limit"} 2`,
		`changeling_games_finished_total{outcome="innocent_victory"} 1`,
		"changeling_message_latency_seconds_count 1",
		"changeling_uptime_seconds",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Metrics output missing %q", want)
		}
	}
}

func TestMonitorsDoNotCollide(t *testing.T) {
	a := NewMonitor("changeling")
	b := NewMonitor("changeling")
	a.IncMessagesReceived("req_host_game")

	if !strings.Contains(scrape(t, a), `changeling_messages_received_total{request="req_host_game"} 1`) {
		t.Error("First monitor lost its counter")
	}
	if strings.Contains(scrape(t, b), `request="req_host_game"`) {
		t.Error("Second monitor should have its own registry")
	}
}
