// Package player maps abstract player commands onto the Volumio REST
// command grammar.
package player

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strconv"
	"strings"

	"github.com/strefethen/volumio-hub-go/internal/apperrors"
	"github.com/strefethen/volumio-hub-go/internal/volumio"
)

// Args carries the optional arguments a dispatched command may take.
type Args struct {
	Volume  *int   `json:"volume,omitempty"`
	Value   *bool  `json:"value,omitempty"` // repeat/random; nil means toggle
	Name    string `json:"name,omitempty"`  // playlist name
	URI     string `json:"uri,omitempty"`
	Service string `json:"service,omitempty"`
	Title   string `json:"title,omitempty"`
}

// Dispatcher issues player commands against one Volumio host.
type Dispatcher struct {
	client *volumio.Client
	logger *log.Logger
}

func NewDispatcher(client *volumio.Client, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{client: client, logger: logger}
}

// simpleCommands map command names straight onto the remote grammar.
var simpleCommands = map[string]string{
	"play":          "play",
	"pause":         "pause",
	"stop":          "stop",
	"next":          "next",
	"previousTrack": "prev",
	"clearQueue":    "clearQueue",
	"mute":          "volume&volume=mute",
	"unmute":        "volume&volume=unmute",
	"volumeUp":      "volume&volume=plus",
	"volumeDown":    "volume&volume=minus",
}

// legacyCommands are accepted but have no backend support; the dispatcher
// exposes the full capability surface and no-ops the unimplemented members
// instead of failing.
var legacyCommands = map[string]struct{}{
	"playText":     {},
	"restoreTrack": {},
	"resumeTrack":  {},
}

// Dispatch routes a command by name. Unknown names are an error; legacy
// commands log a notice and succeed without issuing anything remote.
func (d *Dispatcher) Dispatch(ctx context.Context, command string, args Args) error {
	if remote, ok := simpleCommands[command]; ok {
		return d.issue(ctx, remote)
	}
	if _, ok := legacyCommands[command]; ok {
		d.logger.Printf("CMD: %s is not enabled for this device, ignoring", command)
		return nil
	}

	switch command {
	case "setVolume":
		if args.Volume == nil {
			return apperrors.NewValidationError("setVolume requires a volume argument", nil)
		}
		return d.SetVolume(ctx, *args.Volume)
	case "repeat":
		return d.Repeat(ctx, args.Value)
	case "random":
		return d.Random(ctx, args.Value)
	case "setPlaylist":
		if args.Name == "" {
			return apperrors.NewValidationError("setPlaylist requires a name argument", nil)
		}
		return d.SetPlaylist(ctx, args.Name)
	case "setTrack":
		return d.SetTrack(ctx, args.URI, args.Service, args.Title)
	case "playTrack":
		return d.PlayTrack(ctx, args.URI, args.Service, args.Title)
	}

	return apperrors.NewUnknownCommandError(command)
}

func (d *Dispatcher) Play(ctx context.Context) error          { return d.issue(ctx, "play") }
func (d *Dispatcher) Pause(ctx context.Context) error         { return d.issue(ctx, "pause") }
func (d *Dispatcher) Stop(ctx context.Context) error          { return d.issue(ctx, "stop") }
func (d *Dispatcher) Next(ctx context.Context) error          { return d.issue(ctx, "next") }
func (d *Dispatcher) PreviousTrack(ctx context.Context) error { return d.issue(ctx, "prev") }
func (d *Dispatcher) ClearQueue(ctx context.Context) error    { return d.issue(ctx, "clearQueue") }

func (d *Dispatcher) Mute(ctx context.Context) error   { return d.issue(ctx, "volume&volume=mute") }
func (d *Dispatcher) Unmute(ctx context.Context) error { return d.issue(ctx, "volume&volume=unmute") }

func (d *Dispatcher) VolumeUp(ctx context.Context) error {
	return d.issue(ctx, "volume&volume=plus")
}

func (d *Dispatcher) VolumeDown(ctx context.Context) error {
	return d.issue(ctx, "volume&volume=minus")
}

func (d *Dispatcher) SetVolume(ctx context.Context, level int) error {
	return d.issue(ctx, "volume&volume="+strconv.Itoa(level))
}

// Repeat sets repeat mode. A nil value toggles on the device side.
func (d *Dispatcher) Repeat(ctx context.Context, value *bool) error {
	if value == nil {
		return d.issue(ctx, "repeat")
	}
	return d.issue(ctx, "repeat&value="+strconv.FormatBool(*value))
}

// Random sets shuffle mode. A nil value toggles on the device side.
func (d *Dispatcher) Random(ctx context.Context, value *bool) error {
	if value == nil {
		return d.issue(ctx, "random")
	}
	return d.issue(ctx, "random&value="+strconv.FormatBool(*value))
}

// ListPlaylists returns the playlist names the device reports.
func (d *Dispatcher) ListPlaylists(ctx context.Context) ([]string, error) {
	var playlists []string
	if err := d.client.GetJSON(ctx, "listplaylists", &playlists); err != nil {
		return nil, err
	}
	return playlists, nil
}

// SetPlaylist validates the name against the live playlist listing before
// issuing playplaylist. An unknown name logs a warning and issues nothing.
func (d *Dispatcher) SetPlaylist(ctx context.Context, name string) error {
	playlists, err := d.ListPlaylists(ctx)
	if err != nil {
		d.logger.Printf("CMD: could not list playlists: %v", err)
		return err
	}

	found := false
	for _, playlist := range playlists {
		if playlist == name {
			found = true
			break
		}
	}
	if !found {
		d.logger.Printf("CMD: playlist %q not found on device, command not issued", name)
		return apperrors.NewAppError(apperrors.ErrorCodePlaylistNotFound,
			fmt.Sprintf("playlist not found: %s", name), 404, map[string]any{"name": name})
	}

	return d.issue(ctx, "playplaylist&name="+url.QueryEscape(name))
}

// SetTrack adds a track to the queue without starting playback.
func (d *Dispatcher) SetTrack(ctx context.Context, uri, service, title string) error {
	if uri == "" || service == "" {
		return apperrors.NewValidationError("setTrack requires uri and service", nil)
	}
	item := volumio.QueueItem{Service: service, URI: uri, Title: title}
	if err := d.client.PostJSON(ctx, "addToQueue", item, nil); err != nil {
		d.logger.Printf("CMD: addToQueue failed: %v", err)
		return err
	}
	return nil
}

// PlayTrack replaces the queue with the track and starts playback. Station
// style services resolve their URIs through browse instead of direct
// playback, so those issue a browse GET rather than replaceAndPlay.
func (d *Dispatcher) PlayTrack(ctx context.Context, uri, service, title string) error {
	if uri == "" || service == "" {
		return apperrors.NewValidationError("playTrack requires uri and service", nil)
	}

	if isStationService(service) {
		var ignored any
		if err := d.client.GetJSON(ctx, "browse?uri="+url.QueryEscape(uri), &ignored); err != nil {
			d.logger.Printf("CMD: browse for %s failed: %v", uri, err)
			return err
		}
		return nil
	}

	item := volumio.QueueItem{Service: service, URI: uri, Title: title}
	if err := d.client.PostJSON(ctx, "replaceAndPlay", item, nil); err != nil {
		d.logger.Printf("CMD: replaceAndPlay failed: %v", err)
		return err
	}
	return nil
}

// isStationService reports whether the service delivers station URIs that
// must be resolved via browse.
func isStationService(service string) bool {
	return strings.Contains(strings.ToLower(service), "pandora")
}

func (d *Dispatcher) issue(ctx context.Context, remote string) error {
	if _, err := d.client.Command(ctx, remote); err != nil {
		d.logger.Printf("CMD: %s failed: %v", remote, err)
		return err
	}
	return nil
}
