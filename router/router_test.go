package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rebase/config"
	"rebase/internal/gateway"
	"rebase/internal/journal"
	"rebase/socket"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) (*httptest.Server, *socket.Hub, string) {
	t.Helper()
	dataDir := t.TempDir()
	cfg := &config.Config{DataDir: dataDir, AllowedOrigin: "*"}

	ctx, cancel := context.WithCancel(context.Background())
	hub := socket.NewHub()
	go hub.Run(ctx)

	gw := gateway.New(hub, nil, gateway.NewTemplate(`{"nodes":[]}`), gateway.Options{})
	handler, err := Setup(cfg, hub, gw, journal.Nop{})
	require.NoError(t, err)

	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return server, hub, dataDir
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSetupCreatesStores(t *testing.T) {
	_, _, dataDir := newServer(t)

	assert.DirExists(t, filepath.Join(dataDir, "diffs"))
	assert.DirExists(t, filepath.Join(dataDir, "remaps"))
}

func TestForwardReachesWebsocketSubscriber(t *testing.T) {
	server, hub, _ := newServer(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	resp := postJSON(t, server.URL+"/rebase/forward", `{"event":"generate","data":{"count":3}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var msg socket.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "generate", msg.Type)
	assert.JSONEq(t, `{"count":3}`, string(msg.Data))

	resp = postJSON(t, server.URL+"/rebase/reset", `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, gateway.LoadGraphEvent, msg.Type)
	assert.JSONEq(t, `"{\"nodes\":[]}"`, string(msg.Data))
}

func TestDiffRoundTripOverHTTP(t *testing.T) {
	server, _, _ := newServer(t)

	resp := postJSON(t, server.URL+"/rebase/diff/save", `{"name":"My Test!","diff":{"a":1}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var saved struct {
		Success  bool   `json:"success"`
		Filename string `json:"filename"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&saved))
	assert.True(t, saved.Success)
	assert.Regexp(t, `^My_Test_\d+\.json$`, saved.Filename)

	loadResp, err := http.Get(server.URL + "/rebase/diff/load/" + saved.Filename)
	require.NoError(t, err)
	defer loadResp.Body.Close()
	var loaded map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(loadResp.Body).Decode(&loaded))
	assert.JSONEq(t, `{"a":1}`, string(loaded["diff"]))
}

func TestOperationalRoutes(t *testing.T) {
	server, _, _ := newServer(t)

	for _, path := range []string{"/healthz", "/metrics", "/rebase/events", "/rebase/data/folders"} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
