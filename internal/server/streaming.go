package server

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"soundscript/internal/metadata"

	"github.com/sirupsen/logrus"
)

const (
	// Buffer size for streaming (64KB)
	streamBufferSize = 64 * 1024
)

// handleMedia serves media and artwork references handed out by the catalog.
func (ms *MusicServer) handleMedia(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimPrefix(r.URL.Path, ms.mediaPrefix())

	if idx, ok := ms.catalog.ResolveMedia(ref); ok {
		filePath := ms.catalog.FilePath(idx)
		if verr := ms.validateFilePath(filePath); verr != nil {
			ms.respondWithValidationError(w, r, []ValidationError{*verr})
			return
		}
		if err := ms.streamFile(w, r, filePath, metadata.ContentType(filePath)); err != nil {
			ms.respondWithError(w, r, http.StatusNotFound, "Media not available", err)
		}
		return
	}

	if idx, ok := ms.catalog.ResolveArtwork(ref); ok {
		ms.serveArtwork(w, r, idx, ref)
		return
	}

	ms.respondWithError(w, r, http.StatusNotFound, "Unknown media reference", nil)
}

// serveArtwork serves embedded cover art for scanned libraries and cover
// files from the library folder for manifest libraries.
func (ms *MusicServer) serveArtwork(w http.ResponseWriter, r *http.Request, idx int, ref string) {
	song, _ := ms.catalog.Song(idx)
	if song.ArtworkID != "" && ms.extractor != nil {
		if data, ok := ms.extractor.Artwork(song.ArtworkID); ok {
			w.Header().Set("Content-Type", metadata.ImageMimeType(data))
			w.Header().Set("Cache-Control", "public, max-age=86400")
			w.Write(data)
			return
		}
	}

	filePath := filepath.Join(ms.config.Library.Path, filepath.FromSlash(ref))
	if verr := ms.validateFilePath(filePath); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	if err := ms.streamFile(w, r, filePath, metadata.ContentType(filePath)); err != nil {
		ms.respondWithError(w, r, http.StatusNotFound, "Artwork not available", err)
	}
}

// streamFile serves a file with caching headers and single-range support.
// It returns an error only when nothing has been written yet.
func (ms *MusicServer) streamFile(w http.ResponseWriter, r *http.Request, filePath, contentType string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("error reading file info: %w", err)
	}
	if stat.IsDir() {
		return fmt.Errorf("%s is a directory", filePath)
	}

	fileSize := stat.Size()
	etag := fmt.Sprintf(`"%d-%d"`, stat.ModTime().Unix(), fileSize)

	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		ms.handleRangeRequest(w, file, fileSize, rangeHeader)
		return nil
	}

	w.Header().Set("Content-Length", strconv.FormatInt(fileSize, 10))
	if r.Method == http.MethodHead {
		return nil
	}

	reader := bufio.NewReaderSize(file, streamBufferSize)
	if _, err := io.CopyBuffer(w, reader, make([]byte, streamBufferSize)); err != nil {
		ms.logger.WithError(err).WithField("file_path", filePath).Debug("Stream interrupted")
	}
	return nil
}

// parseRange parses a single "bytes=start-end" range. Suffix ranges
// ("bytes=-500") select the last bytes of the file.
func parseRange(rangeHeader string, fileSize int64) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(rangeHeader, "bytes=")
	if !found || strings.Contains(spec, ",") {
		return 0, 0, false
	}
	first, last, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false
	}

	if first == "" {
		n, err := strconv.ParseInt(last, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > fileSize {
			n = fileSize
		}
		return fileSize - n, fileSize - 1, fileSize > 0
	}

	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	end = fileSize - 1
	if last != "" {
		if end, err = strconv.ParseInt(last, 10, 64); err != nil {
			return 0, 0, false
		}
		if end >= fileSize {
			end = fileSize - 1
		}
	}
	if start < 0 || start > end {
		return 0, 0, false
	}
	return start, end, true
}

// handleRangeRequest implements simple single-range byte serving for seeking.
func (ms *MusicServer) handleRangeRequest(w http.ResponseWriter, file *os.File, fileSize int64, rangeHeader string) {
	start, end, ok := parseRange(rangeHeader, fileSize)
	if !ok {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", fileSize))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return
	}

	contentLength := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fileSize))
	w.Header().Set("Content-Length", strconv.FormatInt(contentLength, 10))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		ms.logger.WithError(err).Warn("Failed to seek media file")
		return
	}
	if _, err := io.CopyN(w, file, contentLength); err != nil {
		ms.logger.WithFields(logrus.Fields{"start": start, "end": end}).WithError(err).Debug("Range stream interrupted")
	}
}
