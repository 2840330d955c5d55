// Package state reconciles raw Volumio payloads into a stable attribute
// model. Pushed and polled payloads funnel through the same reconcilers, and
// attributes only change when the string-coerced value actually differs, so
// repeated identical notifications never produce duplicate change events.
package state

// Attribute names. This is the full enumerated set; no other attribute
// names are ever emitted.
const (
	AttrStatus           = "status"
	AttrArtist           = "artist"
	AttrTitle            = "title"
	AttrAlbum            = "album"
	AttrMusicService     = "musicservice"
	AttrVolume           = "volume"
	AttrLevel            = "level"
	AttrMute             = "mute"
	AttrURI              = "uri"
	AttrTrackDescription = "trackDescription"
	AttrTrackData        = "trackData"
	AttrPlaylists        = "playlists"
	AttrOtherZones       = "otherzones"
)

// None is the sentinel stored when the source omits or nulls a field.
const None = "none"

// Attributes maps attribute name to its last-known value. Every value is the
// string-coerced form of the source value, booleans and numbers included, so
// change detection is a single string comparison regardless of source type.
type Attributes map[string]string

// Change is one attribute transition produced by a reconciliation pass.
type Change struct {
	Name  string `json:"attribute"`
	Value string `json:"value"`
}

// Clone returns a copy of the attribute set.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for name, value := range a {
		out[name] = value
	}
	return out
}
