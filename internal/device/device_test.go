package device

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strefethen/volumio-hub-go/internal/db"
	"github.com/strefethen/volumio-hub-go/internal/enrollment"
	"github.com/strefethen/volumio-hub-go/internal/player"
	"github.com/strefethen/volumio-hub-go/internal/state"
	"github.com/strefethen/volumio-hub-go/internal/volumio"
)

// fakeHost is a minimal Volumio REST endpoint for device tests.
type fakeHost struct {
	mu          sync.Mutex
	state       map[string]any
	zones       []volumio.Zone
	playlists   []string
	enrollments []string
	stateHits   int
}

func (f *fakeHost) stateHitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateHits
}

func (f *fakeHost) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.URL.Path {
		case "/api/v1/getState":
			f.stateHits++
			json.NewEncoder(w).Encode(f.state)
		case "/api/v1/getzones":
			json.NewEncoder(w).Encode(volumio.ZonesPayload{Zones: f.zones})
		case "/api/v1/listplaylists":
			json.NewEncoder(w).Encode(f.playlists)
		case "/api/v1/getSystemInfo":
			json.NewEncoder(w).Encode(volumio.SystemInfo{Name: "Volumio", Host: "127.0.0.1"})
		case "/api/v1/pushNotificationUrls":
			body, _ := io.ReadAll(r.Body)
			f.enrollments = append(f.enrollments, string(body))
			w.Write([]byte(`{"success":true}`))
		default:
			w.Write([]byte(`{}`))
		}
	})
}

type harness struct {
	device *Device
	fake   *fakeHost

	mu      sync.Mutex
	changes []state.Change
}

func (h *harness) record(change state.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changes = append(h.changes, change)
}

func (h *harness) drain() []state.Change {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := h.changes
	h.changes = nil
	return out
}

func newHarness(t *testing.T, repo *Repository) *harness {
	t.Helper()

	fake := &fakeHost{
		state: map[string]any{
			"status": "play", "artist": "A", "title": "T", "album": "B",
			"service": "spop", "volume": 50, "mute": false, "uri": "spotify:track:1",
		},
		playlists: []string{"Morning Mix"},
	}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := volumio.NewClient(srv.URL, time.Second, false, nil)
	dispatcher := player.NewDispatcher(client, nil)
	enrollMgr := enrollment.NewManager(client, 9100, nil)
	t.Cleanup(enrollMgr.Stop)

	h := &harness{fake: fake}
	dev, err := New(client, dispatcher, enrollMgr, repo, h.record, false, nil)
	require.NoError(t, err)
	h.device = dev
	return h
}

func statePush(t *testing.T, data string) []byte {
	t.Helper()
	doc := `{"item":"state","data":` + data + `}`
	return []byte("body:" + base64.StdEncoding.EncodeToString([]byte(doc)))
}

func zonesPush(t *testing.T, zones string) []byte {
	t.Helper()
	doc := `{"item":"zones","data":{"zones":` + zones + `}}`
	return []byte("body:" + base64.StdEncoding.EncodeToString([]byte(doc)))
}

const fullStateJSON = `{"status":"play","artist":"A","title":"T","album":"B","service":"spop","volume":50,"mute":false,"uri":"spotify:track:1"}`

func TestPushStateEmitsAttributeEvents(t *testing.T) {
	h := newHarness(t, nil)

	h.device.HandleNotification(statePush(t, fullStateJSON))

	changes := h.drain()
	byName := make(map[string]string)
	for _, change := range changes {
		byName[change.Name] = change.Value
	}
	require.Equal(t, "play", byName[state.AttrStatus])
	require.Equal(t, "50", byName[state.AttrVolume])
	require.Equal(t, "50", byName[state.AttrLevel])
	require.Equal(t, "false", byName[state.AttrMute])
	require.Equal(t, "A - T on B", byName[state.AttrTrackDescription])
}

func TestDuplicatePushesEmitOnce(t *testing.T) {
	h := newHarness(t, nil)

	h.device.HandleNotification(statePush(t, fullStateJSON))
	require.NotEmpty(t, h.drain())

	// Rapid identical notifications must not produce duplicate changes.
	for i := 0; i < 10; i++ {
		h.device.HandleNotification(statePush(t, fullStateJSON))
	}
	require.Empty(t, h.drain())
}

func TestZonesPushFiltersSelf(t *testing.T) {
	h := newHarness(t, nil)

	h.device.HandleNotification(zonesPush(t,
		`[{"name":"Here","status":"play","isSelf":true},{"name":"Kitchen","status":"stop"}]`))

	changes := h.drain()
	require.Len(t, changes, 1)
	require.Equal(t, state.AttrOtherZones, changes[0].Name)
	require.Equal(t, `{"Kitchen":"stop"}`, changes[0].Value)

	// Same zone set again: no event.
	h.device.HandleNotification(zonesPush(t,
		`[{"name":"Here","status":"play","isSelf":true},{"name":"Kitchen","status":"stop"}]`))
	require.Empty(t, h.drain())
}

func TestLifecyclePushEmitsNothing(t *testing.T) {
	h := newHarness(t, nil)

	doc := base64.StdEncoding.EncodeToString([]byte(`{}`))
	h.device.HandleNotification([]byte("body:" + doc))
	require.Empty(t, h.drain())
}

func TestMalformedPushIsDropped(t *testing.T) {
	h := newHarness(t, nil)

	h.device.HandleNotification([]byte("garbage with no marker"))
	h.device.HandleNotification([]byte("body:!!!"))
	require.Empty(t, h.drain())

	// The device stays usable afterwards.
	h.device.HandleNotification(statePush(t, fullStateJSON))
	require.NotEmpty(t, h.drain())
}

func TestRefreshReconcilesStateAndZones(t *testing.T) {
	h := newHarness(t, nil)
	h.fake.mu.Lock()
	h.fake.zones = []volumio.Zone{{Name: "Kitchen", Status: "stop"}}
	h.fake.mu.Unlock()

	h.device.Refresh(context.Background())

	attrs := h.device.Attributes()
	require.Equal(t, "play", attrs[state.AttrStatus])
	require.Equal(t, `{"Kitchen":"stop"}`, attrs[state.AttrOtherZones])
}

func TestPersistedAttributesSuppressReplayAcrossRestart(t *testing.T) {
	pair, err := db.Init(filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { pair.Close() })
	repo := NewRepository(pair)

	h := newHarness(t, repo)
	h.device.HandleNotification(statePush(t, fullStateJSON))
	require.NotEmpty(t, h.drain())

	// "Restart": a fresh device on the same repository sees the same push
	// and emits nothing.
	h2 := newHarness(t, repo)
	h2.device.HandleNotification(statePush(t, fullStateJSON))
	require.Empty(t, h2.drain())
}

func TestInitializePopulatesAttributesAndEnrolls(t *testing.T) {
	pair, err := db.Init(filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { pair.Close() })
	repo := NewRepository(pair)

	h := newHarness(t, repo)
	h.device.Initialize(context.Background(), "No", Preselection{})

	attrs := h.device.Attributes()
	require.Equal(t, "play", attrs[state.AttrStatus])
	require.Equal(t, `["Morning Mix"]`, attrs[state.AttrPlaylists])

	h.fake.mu.Lock()
	enrollments := append([]string(nil), h.fake.enrollments...)
	h.fake.mu.Unlock()
	require.Len(t, enrollments, 1)
	require.Contains(t, enrollments[0], "/volumiostatus")

	identity, err := repo.LoadIdentity()
	require.NoError(t, err)
	require.NotEmpty(t, identity)

	// Initialize is idempotent: repeating it converges, enrolling again
	// but emitting no duplicate attribute changes.
	h.drain()
	h.device.Initialize(context.Background(), "No", Preselection{})
	for _, change := range h.drain() {
		require.NotEqual(t, state.AttrStatus, change.Name)
	}
}

func TestPollerPollsAndStopsCleanly(t *testing.T) {
	h := newHarness(t, nil)

	poller := NewPoller(h.device, 10*time.Millisecond, nil)
	poller.Start()

	deadline := time.Now().Add(2 * time.Second)
	for h.fake.stateHitCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("poller never polled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	poller.Stop()
	hits := h.fake.stateHitCount()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, hits, h.fake.stateHitCount(), "poller kept polling after Stop")
}

func TestRepositoryRoundTrip(t *testing.T) {
	pair, err := db.Init(filepath.Join(t.TempDir(), "hub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { pair.Close() })
	repo := NewRepository(pair)

	require.NoError(t, repo.SaveAttribute("status", "play"))
	require.NoError(t, repo.SaveAttribute("status", "pause"))
	require.NoError(t, repo.SaveAttribute("volume", "50"))

	attrs, err := repo.LoadAttributes()
	require.NoError(t, err)
	require.Equal(t, state.Attributes{"status": "pause", "volume": "50"}, attrs)

	identity, err := repo.LoadIdentity()
	require.NoError(t, err)
	require.Empty(t, identity)

	require.NoError(t, repo.SaveIdentity("AABBCCDDEEFF"))
	require.NoError(t, repo.SaveIdentity("AABBCCDDEEFF"))
	identity, err = repo.LoadIdentity()
	require.NoError(t, err)
	require.Equal(t, "AABBCCDDEEFF", identity)
}
