package inspect

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atomik-dev/atomik/pkg/atomik"
)

func TestHealthz(t *testing.T) {
	g := atomik.New()
	defer g.Close()

	ts := httptest.NewServer(NewServer(g).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGraphSnapshotEndpoint(t *testing.T) {
	g := atomik.New()
	defer g.Close()

	temp := atomik.NewSource(g, 20.0)
	_, err := atomik.NewDerived(g, func(get atomik.Getter) (float64, error) {
		return temp.From(get)*9/5 + 32, nil
	}, temp)
	require.NoError(t, err)

	ts := httptest.NewServer(NewServer(g).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/graph")
	require.NoError(t, err)
	defer resp.Body.Close()

	var snap []atomik.NodeInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Len(t, snap, 2)
	assert.Equal(t, "source", snap[0].Kind)
	assert.Equal(t, "derived", snap[1].Kind)
	assert.Equal(t, 68.0, snap[1].Value)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := atomik.New(atomik.WithMetrics(reg))
	defer g.Close()

	n := atomik.NewSource(g, 0)
	n.Set(1)

	ts := httptest.NewServer(NewServer(g, WithGatherer(reg)).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWebsocketStream(t *testing.T) {
	var srv *Server
	g := atomik.New(atomik.WithObserver(func(e atomik.Event) {
		if srv != nil {
			srv.Observer()(e)
		}
	}))
	defer g.Close()
	srv = NewServer(g)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for the hub to register the client before mutating.
	require.Eventually(t, func() bool { return srv.hub.count() == 1 },
		time.Second, 10*time.Millisecond)

	temp := atomik.NewSource(g, 20.0)
	require.NoError(t, temp.Set(25.0))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var e atomik.Event
	require.NoError(t, json.Unmarshal(frame, &e))
	assert.Equal(t, temp.ID(), e.NodeID)
	assert.Equal(t, "source", e.Kind)
	assert.Equal(t, 25.0, e.Value)
}
