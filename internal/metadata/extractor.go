package metadata

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"soundscript/pkg/models"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// Fallbacks used when a file carries no usable tags.
const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
)

// Extractor reads song metadata and durations from audio files
type Extractor struct {
	supportedFormats []string
	logger           *logrus.Logger
	artworkCache     map[string][]byte
	artworkMux       sync.RWMutex
}

// NewExtractor creates a new metadata extractor
func NewExtractor(supportedFormats []string, logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	return &Extractor{
		supportedFormats: supportedFormats,
		logger:           logger,
		artworkCache:     make(map[string][]byte),
	}
}

// ExtractFromFile builds a catalog song from an audio file. The song id is
// the file name without extension; missing tags fall back to the file name
// and the Unknown* placeholders.
func (e *Extractor) ExtractFromFile(filePath string) (models.Song, error) {
	startTime := time.Now()

	file, err := os.Open(filePath)
	if err != nil {
		return models.Song{}, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return models.Song{}, fmt.Errorf("failed to stat audio file: %w", err)
	}

	base := filepath.Base(filePath)
	ext := strings.ToLower(filepath.Ext(base))
	song := models.Song{
		ID:       strings.TrimSuffix(base, filepath.Ext(base)),
		Type:     strings.TrimPrefix(ext, "."),
		Artists:  []string{UnknownArtist},
		Album:    UnknownAlbum,
		FilePath: filePath,
		FileSize: stat.Size(),
	}
	song.Title = song.ID

	duration, err := e.Duration(filePath)
	if err != nil {
		e.logger.WithError(err).WithField("file_path", filePath).Warn("Failed to calculate duration, leaving it unknown")
	}
	song.Duration = duration

	meta, err := tag.ReadFrom(file)
	if err != nil {
		e.logger.WithError(err).WithField("file_path", filePath).Debug("No readable tags, using file name")
		return song, nil
	}

	if title := strings.TrimSpace(meta.Title()); title != "" {
		song.Title = title
	}
	if artists := splitArtists(meta.Artist()); len(artists) > 0 {
		song.Artists = artists
	}
	if album := strings.TrimSpace(meta.Album()); album != "" {
		song.Album = album
	}
	song.TrackNumber, _ = meta.Track()
	song.ArtworkID = e.cacheArtwork(meta)

	e.logger.WithFields(logrus.Fields{
		"file_path":  filePath,
		"title":      song.Title,
		"album":      song.Album,
		"duration":   song.Duration,
		"artwork":    song.ArtworkID != "",
		"elapsed_ms": time.Since(startTime).Milliseconds(),
	}).Debug("Extracted metadata")

	return song, nil
}

// splitArtists breaks a tag artist string such as "A, B & C" into names.
func splitArtists(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '&' || r == ';' })
	artists := make([]string, 0, len(fields))
	for _, f := range fields {
		if name := strings.TrimSpace(f); name != "" {
			artists = append(artists, name)
		}
	}
	return artists
}

// Duration returns the play length of an audio file in seconds.
func (e *Extractor) Duration(filePath string) (float64, error) {
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".mp3":
		return e.durationMP3(filePath)
	case ".flac":
		return durationFLAC(filePath)
	case ".wav":
		return durationWAV(filePath)
	case ".m4a":
		return durationM4A(filePath)
	default:
		return 0, fmt.Errorf("unsupported format: %s", ext)
	}
}

// durationMP3 sums frame durations; if no frame decodes it estimates from
// the file size at 192 kbps.
func (e *Extractor) durationMP3(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)
	var (
		total   time.Duration
		skipped int
		frames  int
		frame   mp3.Frame
	)
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) || frames > 0 {
				break
			}
			return estimateFromFileSize(path, 192000)
		}
		total += frame.Duration()
		frames++
	}
	return total.Seconds(), nil
}

// durationFLAC reads the STREAMINFO block.
func durationFLAC(path string) (float64, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	defer stream.Close()

	info := stream.Info
	if info.NSamples == 0 || info.SampleRate == 0 {
		return 0, fmt.Errorf("flac stream missing sample info")
	}
	return float64(info.NSamples) / float64(info.SampleRate), nil
}

// durationWAV derives the length from the header and the PCM payload size.
func durationWAV(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	frameBytes := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if dec.SampleRate == 0 || frameBytes <= 0 {
		return 0, fmt.Errorf("invalid wav header")
	}

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	pcmBytes := max(st.Size()-44, 0)
	return float64(pcmBytes/frameBytes) / float64(dec.SampleRate), nil
}

// durationM4A reads timescale and duration from the moov/mvhd atom.
func durationM4A(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	for {
		size, name, err := readAtomHeader(f)
		if err != nil {
			return 0, err
		}
		if name != "moov" {
			if _, err := f.Seek(int64(size)-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			continue
		}

		for read := int64(8); read < int64(size); {
			subSize, subName, err := readAtomHeader(f)
			if err != nil {
				return 0, err
			}
			if subName == "mvhd" {
				return readMvhd(f)
			}
			if _, err := f.Seek(int64(subSize)-8, io.SeekCurrent); err != nil {
				return 0, err
			}
			read += int64(subSize)
		}
		return 0, fmt.Errorf("mvhd atom not found")
	}
}

func readAtomHeader(r io.Reader) (uint32, string, error) {
	head := make([]byte, 8)
	if _, err := io.ReadFull(r, head); err != nil {
		return 0, "", err
	}
	size := binary.BigEndian.Uint32(head[0:4])
	if size < 8 {
		return 0, "", fmt.Errorf("invalid atom size %d", size)
	}
	return size, string(head[4:8]), nil
}

func readMvhd(f *os.File) (float64, error) {
	version := make([]byte, 1)
	if _, err := io.ReadFull(f, version); err != nil {
		return 0, err
	}
	// flags plus creation and modification times
	skip := int64(3 + 4 + 4)
	if version[0] == 1 {
		skip = 3 + 8 + 8
	}
	if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
		return 0, err
	}

	buf := make([]byte, 8)
	if _, err := io.ReadFull(f, buf); err != nil {
		return 0, err
	}
	timescale := binary.BigEndian.Uint32(buf[0:4])
	units := binary.BigEndian.Uint32(buf[4:8])
	if timescale == 0 {
		return 0, fmt.Errorf("invalid timescale")
	}
	return float64(units) / float64(timescale), nil
}

// estimateFromFileSize is the last resort when frames cannot be decoded.
func estimateFromFileSize(path string, bitrate int64) (float64, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if bitrate <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	return float64(st.Size()*8) / float64(bitrate), nil
}

// cacheArtwork stores embedded cover art keyed by content hash.
func (e *Extractor) cacheArtwork(meta tag.Metadata) string {
	picture := meta.Picture()
	if picture == nil || len(picture.Data) == 0 {
		return ""
	}

	artID := fmt.Sprintf("%x", md5.Sum(picture.Data))
	e.artworkMux.Lock()
	e.artworkCache[artID] = picture.Data
	e.artworkMux.Unlock()
	return artID
}

// Artwork returns cached cover art by id.
func (e *Extractor) Artwork(artID string) ([]byte, bool) {
	e.artworkMux.RLock()
	defer e.artworkMux.RUnlock()

	data, exists := e.artworkCache[artID]
	return data, exists
}

// ImageMimeType sniffs the type of cover art data.
func ImageMimeType(data []byte) string {
	switch {
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return "image/jpeg"
	case len(data) >= 4 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case len(data) >= 3 && data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46:
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

// IsAudioFile checks if a file is a supported audio format
func (e *Extractor) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range e.supportedFormats {
		if ext == strings.ToLower(format) {
			return true
		}
	}
	return false
}

// ContentType returns the MIME type for an audio file
func ContentType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp3":
		return "audio/mpeg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	case ".m4a":
		return "audio/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}
