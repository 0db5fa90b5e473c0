// Package catalog is the read-only song library: songs ordered album by
// album, with lookups from a catalog index to everything the player and the
// renderers need.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"soundscript/pkg/models"
)

// ErrUnknownAlbum is returned for album indices outside the catalog.
var ErrUnknownAlbum = errors.New("unknown album")

// Lookup is the read-only view of the catalog used by the player.
type Lookup interface {
	Size() int
	AlbumRange(albumIdx int) (from, to int, err error)
	Title(idx int) string
	Artist(idx int) string
	MediaRef(idx int) string
	Artwork(idx int) string
}

// albumSpan is an album key with the exclusive end of its catalog range.
type albumSpan struct {
	album models.Album
	to    int
}

// Catalog is immutable once built.
type Catalog struct {
	base    string
	songs   []models.Song
	albums  []albumSpan
	albumOf []int // song index -> album index
	refs    map[string]int
	covers  map[string]int
}

// Builder accumulates albums in catalog order.
type Builder struct {
	base string
	cat  *Catalog
}

// NewBuilder starts a catalog whose media and artwork references are
// prefixed with base (for example "/media/").
func NewBuilder(base string) *Builder {
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Builder{base: base, cat: &Catalog{base: base}}
}

// AddAlbum appends an album and its songs. Songs keep the given order.
func (b *Builder) AddAlbum(album models.Album, songs []models.Song) {
	albumIdx := len(b.cat.albums)
	for _, song := range songs {
		song.Album = album.Key
		b.cat.songs = append(b.cat.songs, song)
		b.cat.albumOf = append(b.cat.albumOf, albumIdx)
	}
	b.cat.albums = append(b.cat.albums, albumSpan{album: album, to: len(b.cat.songs)})
}

// Build returns the finished catalog. The builder must not be reused.
func (b *Builder) Build() *Catalog {
	c := b.cat
	c.refs = make(map[string]int, len(c.songs))
	c.covers = make(map[string]int, len(c.songs))
	for i := range c.songs {
		c.refs[strings.TrimPrefix(c.MediaRef(i), c.base)] = i
		c.covers[strings.TrimPrefix(c.Artwork(i), c.base)] = i
	}
	return c
}

// Size returns the number of songs.
func (c *Catalog) Size() int {
	return len(c.songs)
}

// AlbumCount returns the number of albums.
func (c *Catalog) AlbumCount() int {
	return len(c.albums)
}

// Albums returns the album descriptions in catalog order.
func (c *Catalog) Albums() []models.Album {
	albums := make([]models.Album, len(c.albums))
	for i, span := range c.albums {
		albums[i] = span.album
	}
	return albums
}

// Song returns a copy of the song at idx.
func (c *Catalog) Song(idx int) (models.Song, bool) {
	if idx < 0 || idx >= len(c.songs) {
		return models.Song{}, false
	}
	return c.songs[idx], true
}

// AlbumRange returns the [from, to) catalog range of an album.
func (c *Catalog) AlbumRange(albumIdx int) (int, int, error) {
	if albumIdx < 0 || albumIdx >= len(c.albums) {
		return 0, 0, fmt.Errorf("%w: %d", ErrUnknownAlbum, albumIdx)
	}
	from := 0
	if albumIdx > 0 {
		from = c.albums[albumIdx-1].to
	}
	return from, c.albums[albumIdx].to, nil
}

// AlbumKey returns the album key of the song at idx.
func (c *Catalog) AlbumKey(idx int) string {
	if idx < 0 || idx >= len(c.albumOf) {
		return ""
	}
	return c.albums[c.albumOf[idx]].album.Key
}

// SongID returns the stable id of the song at idx.
func (c *Catalog) SongID(idx int) string {
	song, _ := c.Song(idx)
	return song.ID
}

// Title returns the song title.
func (c *Catalog) Title(idx int) string {
	song, _ := c.Song(idx)
	return song.Title
}

// Artist returns the artists joined for display.
func (c *Catalog) Artist(idx int) string {
	song, _ := c.Song(idx)
	return song.ArtistLine()
}

// MediaType returns the media file extension, mp3 by default.
func (c *Catalog) MediaType(idx int) string {
	song, ok := c.Song(idx)
	if !ok || song.Type == "" {
		return "mp3"
	}
	return song.Type
}

// Duration returns the known duration in seconds, 0 if unknown.
func (c *Catalog) Duration(idx int) float64 {
	song, _ := c.Song(idx)
	return song.Duration
}

// MediaRef returns the media reference: <base>songs/<album>/<id>.<type>.
func (c *Catalog) MediaRef(idx int) string {
	if idx < 0 || idx >= len(c.songs) {
		return ""
	}
	return fmt.Sprintf("%ssongs/%s/%s.%s", c.base, c.AlbumKey(idx), c.SongID(idx), c.MediaType(idx))
}

// Artwork returns the cover reference: <base>songs/<album>/covers/<id>.<img>.
func (c *Catalog) Artwork(idx int) string {
	song, ok := c.Song(idx)
	if !ok {
		return ""
	}
	ext := song.Image
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("%ssongs/%s/covers/%s.%s", c.base, song.Album, song.ID, ext)
}

// FilePath returns the local file of a scanned song, empty for manifest
// catalogs.
func (c *Catalog) FilePath(idx int) string {
	song, _ := c.Song(idx)
	return song.FilePath
}

// ResolveMedia maps a media reference, with or without the base prefix, back
// to its catalog index.
func (c *Catalog) ResolveMedia(ref string) (int, bool) {
	idx, ok := c.refs[strings.TrimPrefix(ref, c.base)]
	return idx, ok
}

// ResolveArtwork maps an artwork reference back to its catalog index.
func (c *Catalog) ResolveArtwork(ref string) (int, bool) {
	idx, ok := c.covers[strings.TrimPrefix(ref, c.base)]
	return idx, ok
}

// CorrectRange clamps a requested [from, to) window to a list of length n:
// an invalid from becomes 0 and an invalid to becomes n.
func CorrectRange(from, to, n int) (int, int) {
	if from < 0 || from > n {
		from = 0
	}
	if to < 0 || to > n {
		to = n
	}
	return from, to
}
