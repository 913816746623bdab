package monitor

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorCounters(t *testing.T) {
	m := NewMonitor("kruivka")
	m.IncGamesStarted()
	m.IncGamesFinished("UPA")
	m.IncGamesFinished("UPA")
	m.IncEliminations("hanged")
	m.IncStaleTransitions()
	m.SetActiveRooms(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.GamesStarted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.metrics.GamesFinished.WithLabelValues("UPA")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.Eliminations.WithLabelValues("hanged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.StaleTransitions))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.metrics.ActiveRooms))
}

func TestMonitorsDoNotShareRegistry(t *testing.T) {
	a := NewMonitor("kruivka")
	b := NewMonitor("kruivka")
	a.IncSaves()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.metrics.Saves))
}

func TestMonitorHandler(t *testing.T) {
	m := NewMonitor("kruivka")
	m.IncOnlinePlayers()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "kruivka_online_players 1")
	assert.Contains(t, rec.Body.String(), "kruivka_uptime_seconds")
}
