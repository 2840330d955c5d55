package state

import (
	"encoding/json"
	"strconv"

	"github.com/strefethen/volumio-hub-go/internal/volumio"
)

// fieldMapping binds one attribute to the source field it is derived from.
// The table is ordered; reconciliation walks it top to bottom so emitted
// changes have a stable order.
type fieldMapping struct {
	attr  string
	value func(raw volumio.StatePayload) string
}

// stateFields is the single source of truth for which attributes a state
// payload drives and how each source value is coerced. Volume deliberately
// feeds two attributes; both pass the change check independently.
var stateFields = []fieldMapping{
	{AttrStatus, func(raw volumio.StatePayload) string { return coerceString(raw.Status) }},
	{AttrArtist, func(raw volumio.StatePayload) string { return coerceString(raw.Artist) }},
	{AttrTitle, func(raw volumio.StatePayload) string { return coerceString(raw.Title) }},
	{AttrAlbum, func(raw volumio.StatePayload) string { return coerceString(raw.Album) }},
	{AttrMusicService, func(raw volumio.StatePayload) string { return coerceString(raw.Service) }},
	{AttrVolume, func(raw volumio.StatePayload) string { return coerceNumber(raw.Volume) }},
	{AttrLevel, func(raw volumio.StatePayload) string { return coerceNumber(raw.Volume) }},
	{AttrMute, func(raw volumio.StatePayload) string { return coerceBool(raw.Mute) }},
	{AttrURI, func(raw volumio.StatePayload) string { return coerceString(raw.URI) }},
}

// trackData is the structured track record stored as a single attribute
// value. Field order here fixes the serialized form.
type trackData struct {
	Artist string  `json:"artist"`
	Title  string  `json:"title"`
	Album  string  `json:"album"`
	Image  *string `json:"image"`
	Source string  `json:"source"`
}

// ReconcileState applies a raw state payload to the attribute set and
// returns the changes. Attributes are mutated in place; an attribute only
// changes (and only appears in the result) when its coerced value differs
// from the stored one.
//
// If any of artist/title/album changed, trackDescription and trackData are
// recomputed together as a unit, never one without the other.
func ReconcileState(attrs Attributes, raw volumio.StatePayload) []Change {
	var changes []Change
	trackDirty := false

	for _, field := range stateFields {
		next := field.value(raw)
		if attrs[field.attr] == next {
			continue
		}
		attrs[field.attr] = next
		changes = append(changes, Change{Name: field.attr, Value: next})
		if field.attr == AttrArtist || field.attr == AttrTitle || field.attr == AttrAlbum {
			trackDirty = true
		}
	}

	if trackDirty {
		description, data := composeTrack(attrs, raw.AlbumArt)
		if attrs[AttrTrackDescription] != description {
			attrs[AttrTrackDescription] = description
			changes = append(changes, Change{Name: AttrTrackDescription, Value: description})
		}
		if attrs[AttrTrackData] != data {
			attrs[AttrTrackData] = data
			changes = append(changes, Change{Name: AttrTrackData, Value: data})
		}
	}

	return changes
}

// composeTrack derives the composite track attributes from the already
// reconciled artist/title/album values. The description collapses to the
// sentinel when no artist is reported.
func composeTrack(attrs Attributes, albumArt *string) (description, data string) {
	artist := attrs[AttrArtist]
	title := attrs[AttrTitle]
	album := attrs[AttrAlbum]

	if artist == None {
		description = None
	} else {
		description = artist + " - " + title + " on " + album
	}

	encoded, err := json.Marshal(trackData{
		Artist: artist,
		Title:  title,
		Album:  album,
		Image:  albumArt,
		Source: attrs[AttrMusicService],
	})
	if err != nil {
		// Marshal of a flat struct of strings cannot fail; keep the
		// attribute well-formed regardless.
		return description, None
	}
	return description, string(encoded)
}

func coerceString(value *string) string {
	if value == nil {
		return None
	}
	return *value
}

func coerceNumber(value *json.Number) string {
	if value == nil {
		return None
	}
	return value.String()
}

func coerceBool(value *bool) string {
	if value == nil {
		return None
	}
	return strconv.FormatBool(*value)
}
