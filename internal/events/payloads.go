package events

// Playback bus channels published by the player.
const (
	TrackChanged   = "track-changed"
	Playing        = "playing"
	Paused         = "paused"
	PositionUpdate = "position-update"
	ControlsShown  = "controls-shown"
	ControlsHidden = "controls-hidden"
	QueueSynced    = "queue-synced"
)

// Playback bus channels consumed by the player (intents).
const (
	SelectTrack = "select-track"
	PlayAll     = "play-all"
	Replay      = "replay"
)

// Media bus channels carrying commands for the remote audio element.
const (
	MediaLoad   = "media-load"
	MediaPlay   = "media-play"
	MediaPause  = "media-pause"
	MediaSeek   = "media-seek"
	MediaVolume = "media-volume"
)

// Navigation bus channels.
const (
	Show           = "show"
	CatalogChanged = "catalog-changed"
)

// Selection types carried by SelectTrack and QueueSynced.
const (
	SelectSong  = "song"
	SelectAlbum = "album"
)

// TrackInfo is the payload of TrackChanged.
type TrackInfo struct {
	LikeCount    uint64 `json:"likeCount"`
	DislikeCount uint64 `json:"dislikeCount"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	Artwork      string `json:"artwork"`
}

// PlayState is the payload of Playing and Paused. Positions are 1-based.
type PlayState struct {
	QueueID      string `json:"queueId"`
	CardPosition int    `json:"cardPosition"`
	TilePosition int    `json:"tilePosition"`
}

// Position is the payload of PositionUpdate. Duration is 0 while unknown.
type Position struct {
	Now      float64 `json:"now"`
	Duration float64 `json:"duration"`
}

// QueueSync is the payload of QueueSynced.
type QueueSync struct {
	Type    string `json:"type"`
	QueueID string `json:"queueId"`
	From    int    `json:"from"`
	To      int    `json:"to"`
}

// Selection is the payload of SelectTrack.
type Selection struct {
	Type    string `json:"type"`
	QueueID string `json:"queueId"`
	Index   int    `json:"index"`
}

// MediaCommand is the payload of the media bus channels.
type MediaCommand struct {
	Source   string  `json:"source,omitempty"`
	Position float64 `json:"position"`
	Volume   float64 `json:"volume"`
}

// CatalogChange is the payload of CatalogChanged.
type CatalogChange struct {
	Path string `json:"path"`
	Op   string `json:"op"`
}
