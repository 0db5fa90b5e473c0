package models

import "strings"

// Song is one catalog entry. JSON tags follow the per-album info.json
// manifest layout.
type Song struct {
	ID          string   `json:"id"`
	Title       string   `json:"song"`
	Artists     []string `json:"artist"`
	Type        string   `json:"type,omitempty"` // media file extension, mp3 when empty
	Image       string   `json:"img,omitempty"`  // cover extension, jpg when empty
	Duration    float64  `json:"duration,omitempty"`
	TrackNumber int      `json:"track,omitempty"`
	Album       string   `json:"-"` // album key
	FilePath    string   `json:"-"` // don't expose file path to client
	FileSize    int64    `json:"-"`
	ArtworkID   string   `json:"-"` // embedded cover cache key
}

// ArtistLine joins the artists for display.
func (s Song) ArtistLine() string {
	return strings.Join(s.Artists, ", ")
}

// Album describes one album of the library manifest.
type Album struct {
	Key   string `json:"album"`
	Title string `json:"title"`
	Desc  string `json:"desc"`
}
