package metadata

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// writeWAV writes a canonical PCM wav file holding seconds of silence.
func writeWAV(t *testing.T, path string, sampleRate uint32, seconds int) {
	t.Helper()

	const (
		channels      = 1
		bitsPerSample = 16
	)
	dataSize := uint32(int(sampleRate) * channels * bitsPerSample / 8 * seconds)

	buf := make([]byte, 0, 44+dataSize)
	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, 36+dataSize)
	buf = append(buf, "WAVE"...)
	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, channels)
	buf = binary.LittleEndian.AppendUint32(buf, sampleRate)
	buf = binary.LittleEndian.AppendUint32(buf, sampleRate*channels*bitsPerSample/8)
	buf = binary.LittleEndian.AppendUint16(buf, channels*bitsPerSample/8)
	buf = binary.LittleEndian.AppendUint16(buf, bitsPerSample)
	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, dataSize)
	buf = append(buf, make([]byte, dataSize)...)

	if err := os.WriteFile(path, buf, 0644); err != nil {
		t.Fatalf("Failed to write wav fixture: %v", err)
	}
}

func TestWAVDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, 8000, 3)

	e := NewExtractor([]string{".wav"}, nil)
	got, err := e.Duration(path)
	if err != nil {
		t.Fatalf("Duration failed: %v", err)
	}
	if math.Abs(got-3) > 0.01 {
		t.Errorf("Expected 3s, got %v", got)
	}
}

func TestExtractFallsBackToFileName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "intro-01.wav")
	writeWAV(t, path, 8000, 1)

	e := NewExtractor([]string{".wav"}, nil)
	song, err := e.ExtractFromFile(path)
	if err != nil {
		t.Fatalf("ExtractFromFile failed: %v", err)
	}

	if song.ID != "intro-01" || song.Title != "intro-01" {
		t.Errorf("Expected id and title from file name, got %+v", song)
	}
	if song.Type != "wav" {
		t.Errorf("Expected type wav, got %q", song.Type)
	}
	if song.Album != UnknownAlbum || song.ArtistLine() != UnknownArtist {
		t.Errorf("Expected unknown album/artist, got %q / %q", song.Album, song.ArtistLine())
	}
	if song.FilePath != path || song.FileSize == 0 {
		t.Errorf("Expected file details, got %+v", song)
	}
}

func TestExtractMissingFile(t *testing.T) {
	e := NewExtractor([]string{".mp3"}, nil)
	if _, err := e.ExtractFromFile(filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestUnsupportedDuration(t *testing.T) {
	e := NewExtractor(nil, nil)
	if _, err := e.Duration("cover.png"); err == nil {
		t.Error("Expected unsupported format error")
	}
}

func TestSplitArtists(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"Solo", []string{"Solo"}},
		{"A, B & C", []string{"A", "B", "C"}},
		{" ; ", []string{}},
		{"", []string{}},
	}

	for _, tt := range tests {
		if got := splitArtists(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitArtists(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestIsAudioFile(t *testing.T) {
	e := NewExtractor([]string{".mp3", ".FLAC"}, nil)

	tests := map[string]bool{
		"a/b/song.mp3":  true,
		"a/b/song.MP3":  true,
		"a/b/song.flac": true,
		"a/b/song.wav":  false,
		"a/b/cover.jpg": false,
	}
	for path, want := range tests {
		if got := e.IsAudioFile(path); got != want {
			t.Errorf("IsAudioFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestContentTypes(t *testing.T) {
	if got := ContentType("x/y.flac"); got != "audio/flac" {
		t.Errorf("Unexpected content type %q", got)
	}
	if got := ImageMimeType([]byte{0x89, 0x50, 0x4E, 0x47}); got != "image/png" {
		t.Errorf("Unexpected image type %q", got)
	}
	if got := ImageMimeType([]byte{0x00}); got != "application/octet-stream" {
		t.Errorf("Unexpected image type %q", got)
	}
}
