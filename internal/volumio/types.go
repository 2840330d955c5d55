package volumio

import "encoding/json"

// StatePayload is the player state as reported by the Volumio REST API or a
// push notification. All fields are optional: an absent field means the
// source no longer reports it, which downstream code treats as an explicit
// reset rather than "unchanged".
type StatePayload struct {
	Status   *string      `json:"status"`
	Artist   *string      `json:"artist"`
	Title    *string      `json:"title"`
	Album    *string      `json:"album"`
	Service  *string      `json:"service"`
	Volume   *json.Number `json:"volume"`
	Mute     *bool        `json:"mute"`
	URI      *string      `json:"uri"`
	AlbumArt *string      `json:"albumart"`
}

// Zone is one output group in a multiroom zones payload.
type Zone struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	IsSelf bool   `json:"isSelf"`
}

// ZonesPayload wraps the zone list as delivered by getzones or a zones push.
type ZonesPayload struct {
	Zones []Zone `json:"zones"`
}

// SystemInfo is the subset of getSystemInfo this driver reads.
type SystemInfo struct {
	Name string `json:"name"`
	Host string `json:"host"`
	ID   string `json:"id"`
}

// QueueItem is the body shape for addToQueue and replaceAndPlay.
type QueueItem struct {
	Service string `json:"service"`
	URI     string `json:"uri"`
	Title   string `json:"title,omitempty"`
}

// PushTarget is the body for pushNotificationUrls enrollment.
type PushTarget struct {
	URL string `json:"url"`
}
