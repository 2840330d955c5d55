package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strefethen/volumio-hub-go/internal/config"
)

// fakeVolumio serves just enough of the REST surface for handler tests.
type fakeVolumio struct {
	mu       sync.Mutex
	commands []string
}

func (f *fakeVolumio) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/commands/":
			f.mu.Lock()
			f.commands = append(f.commands, r.URL.RawQuery)
			f.mu.Unlock()
			w.Write([]byte(`{"response":"Success"}`))
		case "/api/v1/listplaylists":
			w.Write([]byte(`["Morning Mix"]`))
		default:
			w.Write([]byte(`{}`))
		}
	})
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeVolumio) {
	t.Helper()

	fake := &fakeVolumio{}
	volumioSrv := httptest.NewServer(fake.handler())
	t.Cleanup(volumioSrv.Close)

	cfg := config.Config{
		Host:             "127.0.0.1",
		Port:             "9100",
		SQLiteDBPath:     filepath.Join(t.TempDir(), "hub.db"),
		VolumioHost:      volumioSrv.URL,
		VolumioTimeoutMs: 1000,
		ReenrollTime:     "No",
		PollIntervalMs:   1000,
	}

	handler, shutdown, err := NewHandler(cfg, Options{SkipInitialize: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, fake
}

func TestHealthRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "volumio-hub", body["service"])
}

func TestPushCallbackAlwaysAcknowledges(t *testing.T) {
	srv, _ := newTestServer(t)

	// Undecodable payloads are logged and dropped, still 200.
	resp, err := http.Post(srv.URL+"/volumiostatus", "text/plain", strings.NewReader("garbage"))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPushCallbackUpdatesStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	doc := `{"item":"state","data":{"status":"play","artist":"A","title":"T","album":"B","service":"spop","volume":50,"mute":false,"uri":"u"}}`
	payload := "body:" + base64.StdEncoding.EncodeToString([]byte(doc))

	resp, err := http.Post(srv.URL+"/volumiostatus", "text/plain", strings.NewReader(payload))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	statusResp, err := http.Get(srv.URL + "/v1/status")
	require.NoError(t, err)
	defer statusResp.Body.Close()

	var attrs map[string]string
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&attrs))
	require.Equal(t, "play", attrs["status"])
	require.Equal(t, "A - T on B", attrs["trackDescription"])
}

func TestCommandRoute(t *testing.T) {
	srv, fake := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/commands/setVolume", "application/json",
		strings.NewReader(`{"volume":37}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal(t, []string{"cmd=volume&volume=37"}, fake.commands)
}

func TestCommandRouteNoBody(t *testing.T) {
	srv, fake := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/commands/pause", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Equal(t, []string{"cmd=pause"}, fake.commands)
}

func TestUnknownCommandRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/commands/teleport", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var body map[string]map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "UNKNOWN_COMMAND", body["error"]["code"])
}

func TestPlaylistsRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/v1/playlists")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, []string{"Morning Mix"}, body["playlists"])
}

func TestRefreshRoute(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/refresh", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
