// Package device orchestrates one Volumio player: it funnels pushed and
// polled payloads into the reconcilers, emits attribute-change events, and
// serializes everything that touches the attribute set.
package device

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/strefethen/volumio-hub-go/internal/enrollment"
	"github.com/strefethen/volumio-hub-go/internal/player"
	"github.com/strefethen/volumio-hub-go/internal/push"
	"github.com/strefethen/volumio-hub-go/internal/state"
	"github.com/strefethen/volumio-hub-go/internal/volumio"
)

// Preselection is applied once during initialization, after enrollment.
type Preselection struct {
	Playlist string
	Shuffle  string // "", "true" or "false"
	Repeat   string // "", "true" or "false"
}

// Device is one managed Volumio player instance.
//
// A single mutex serializes pushes, polls, commands, and initialization:
// the attribute set is owned exclusively by this instance and exactly one
// event executes at a time, so duplicate notifications can never interleave
// into duplicate visible changes.
type Device struct {
	client     *volumio.Client
	dispatcher *player.Dispatcher
	enrollMgr  *enrollment.Manager
	repo       *Repository
	logger     *log.Logger
	debug      bool

	mu    sync.Mutex
	attrs state.Attributes

	onChange func(state.Change)
}

// New creates a device. repo may be nil (no persistence); onChange may be
// nil (no event fan-out beyond logging). Persisted attributes and identity
// are restored so the first reconciliation still de-duplicates.
func New(client *volumio.Client, dispatcher *player.Dispatcher, enrollMgr *enrollment.Manager,
	repo *Repository, onChange func(state.Change), debug bool, logger *log.Logger) (*Device, error) {
	if logger == nil {
		logger = log.Default()
	}

	d := &Device{
		client:     client,
		dispatcher: dispatcher,
		enrollMgr:  enrollMgr,
		repo:       repo,
		logger:     logger,
		debug:      debug,
		attrs:      make(state.Attributes),
		onChange:   onChange,
	}

	if repo != nil {
		attrs, err := repo.LoadAttributes()
		if err != nil {
			return nil, err
		}
		d.attrs = attrs

		identity, err := repo.LoadIdentity()
		if err != nil {
			return nil, err
		}
		if identity != "" {
			enrollMgr.RestoreIdentity(identity)
		}
	}

	return d, nil
}

// Initialize runs the Identifying and Enrolling steps, installs the
// re-enrollment schedule, applies preselection, and performs an initial
// refresh. Every step is idempotent and non-fatal: failures log and the
// remaining steps still run.
func (d *Device) Initialize(ctx context.Context, reenrollTime string, pre Preselection) {
	d.mu.Lock()
	defer d.mu.Unlock()

	identity, changed, err := d.enrollMgr.SetIdentity(ctx)
	if err != nil {
		d.logger.Printf("INIT: identity lookup failed: %v", err)
	} else if changed {
		d.logger.Printf("INIT: device identity set to %s", identity)
		d.persistIdentity(identity)
	}

	if err := d.enrollMgr.Enroll(ctx); err != nil {
		d.logger.Printf("INIT: push enrollment failed: %v", err)
	}

	if err := d.enrollMgr.Schedule(reenrollTime); err != nil {
		d.logger.Printf("INIT: re-enrollment schedule rejected: %v", err)
	}

	d.refreshPlaylistsLocked(ctx)
	d.applyPreselection(ctx, pre)
	d.refreshLocked(ctx)
}

// Refresh polls current state and zones and reconciles both.
func (d *Device) Refresh(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refreshLocked(ctx)
}

// HandleNotification processes one raw inbound push body. Undecodable
// payloads are logged and dropped; the device stays usable.
func (d *Device) HandleNotification(raw []byte) {
	envelope, err := push.Decode(raw)
	if err != nil {
		d.logger.Printf("PUSH: dropping notification: %v", err)
		return
	}

	switch envelope.Item {
	case push.ItemState:
		var payload volumio.StatePayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			d.logger.Printf("PUSH: malformed state data: %v", err)
			return
		}
		d.mu.Lock()
		d.applyState(payload)
		d.mu.Unlock()

	case push.ItemZones:
		zones, err := decodeZones(envelope.Data)
		if err != nil {
			d.logger.Printf("PUSH: malformed zones data: %v", err)
			return
		}
		d.mu.Lock()
		d.applyZones(zones)
		d.mu.Unlock()

	default:
		// Connection-lifecycle notification, nothing to reconcile.
		if d.debug {
			d.logger.Printf("PUSH: lifecycle notification (item=%q)", envelope.Item)
		}
	}
}

// Dispatch issues one player command, serialized with pushes and polls.
func (d *Device) Dispatch(ctx context.Context, command string, args player.Args) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatcher.Dispatch(ctx, command, args)
}

// ListPlaylists returns the live playlist listing and refreshes the
// playlists attribute from it.
func (d *Device) ListPlaylists(ctx context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	playlists, err := d.dispatcher.ListPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	d.setPlaylistsAttr(playlists)
	return playlists, nil
}

// Attributes returns a snapshot of the current attribute set.
func (d *Device) Attributes() state.Attributes {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attrs.Clone()
}

func (d *Device) refreshLocked(ctx context.Context) {
	var payload volumio.StatePayload
	if err := d.client.GetJSON(ctx, "getState", &payload); err != nil {
		d.logger.Printf("REFRESH: getState failed: %v", err)
	} else {
		d.applyState(payload)
	}

	var zonesPayload volumio.ZonesPayload
	if err := d.client.GetJSON(ctx, "getzones", &zonesPayload); err != nil {
		d.logger.Printf("REFRESH: getzones failed: %v", err)
	} else {
		d.applyZones(zonesPayload.Zones)
	}
}

func (d *Device) refreshPlaylistsLocked(ctx context.Context) {
	playlists, err := d.dispatcher.ListPlaylists(ctx)
	if err != nil {
		d.logger.Printf("INIT: listplaylists failed: %v", err)
		return
	}
	d.setPlaylistsAttr(playlists)
}

func (d *Device) setPlaylistsAttr(playlists []string) {
	encoded, err := json.Marshal(playlists)
	if err != nil {
		return
	}
	if d.attrs[state.AttrPlaylists] != string(encoded) {
		d.attrs[state.AttrPlaylists] = string(encoded)
		d.emit(state.Change{Name: state.AttrPlaylists, Value: string(encoded)})
	}
}

func (d *Device) applyState(payload volumio.StatePayload) {
	for _, change := range state.ReconcileState(d.attrs, payload) {
		d.emit(change)
	}
}

func (d *Device) applyZones(zones []volumio.Zone) {
	next, changed := state.ReconcileZones(d.attrs[state.AttrOtherZones], zones)
	if !changed {
		return
	}
	d.attrs[state.AttrOtherZones] = next
	d.emit(state.Change{Name: state.AttrOtherZones, Value: next})
}

func (d *Device) applyPreselection(ctx context.Context, pre Preselection) {
	if pre.Playlist != "" {
		if err := d.dispatcher.SetPlaylist(ctx, pre.Playlist); err != nil {
			d.logger.Printf("INIT: preselect playlist %q failed: %v", pre.Playlist, err)
		}
	}
	if value, ok := parseTristate(pre.Shuffle); ok {
		if err := d.dispatcher.Random(ctx, &value); err != nil {
			d.logger.Printf("INIT: preselect shuffle failed: %v", err)
		}
	}
	if value, ok := parseTristate(pre.Repeat); ok {
		if err := d.dispatcher.Repeat(ctx, &value); err != nil {
			d.logger.Printf("INIT: preselect repeat failed: %v", err)
		}
	}
}

func (d *Device) emit(change state.Change) {
	if d.debug {
		d.logger.Printf("EVENT: %s = %s", change.Name, change.Value)
	}
	if d.repo != nil {
		if err := d.repo.SaveAttribute(change.Name, change.Value); err != nil {
			d.logger.Printf("EVENT: persist %s failed: %v", change.Name, err)
		}
	}
	if d.onChange != nil {
		d.onChange(change)
	}
}

func (d *Device) persistIdentity(identity string) {
	if d.repo == nil {
		return
	}
	if err := d.repo.SaveIdentity(identity); err != nil {
		d.logger.Printf("INIT: persist identity failed: %v", err)
	}
}

func parseTristate(value string) (bool, bool) {
	switch value {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// decodeZones accepts both the wrapped {"zones": [...]} payload and a bare
// zone array, since pushes and polls differ here.
func decodeZones(data json.RawMessage) ([]volumio.Zone, error) {
	var wrapped volumio.ZonesPayload
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.Zones != nil {
		return wrapped.Zones, nil
	}

	var zones []volumio.Zone
	if err := json.Unmarshal(data, &zones); err != nil {
		return nil, err
	}
	return zones, nil
}
