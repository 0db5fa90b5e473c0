package catalog

import (
	"cmp"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"soundscript/internal/metadata"
	"soundscript/pkg/models"

	"github.com/sirupsen/logrus"
)

// Scan builds a catalog from the audio files below root. Songs are grouped by
// their album tag; albums are ordered by title and songs by track number,
// then title.
func Scan(root, base string, extractor *metadata.Extractor, logger *logrus.Logger) (*Catalog, error) {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		songs []models.Song
	)
	jobs := make(chan string, 100)

	for i := 0; i < runtime.NumCPU(); i++ {
		go func() {
			for path := range jobs {
				song, err := extractor.ExtractFromFile(path)
				if err != nil {
					if logger != nil {
						logger.WithError(err).WithField("file_path", path).Warn("Skipping unreadable file")
					}
					wg.Done()
					continue
				}
				mu.Lock()
				songs = append(songs, song)
				mu.Unlock()
				wg.Done()
			}
		}()
	}

	walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && extractor.IsAudioFile(path) {
			wg.Add(1)
			jobs <- path
		}
		return nil
	})
	close(jobs)
	wg.Wait()
	if walkErr != nil {
		return nil, walkErr
	}

	byAlbum := make(map[string][]models.Song)
	for _, song := range songs {
		byAlbum[song.Album] = append(byAlbum[song.Album], song)
	}
	titles := make([]string, 0, len(byAlbum))
	for title := range byAlbum {
		titles = append(titles, title)
	}
	slices.Sort(titles)

	builder := NewBuilder(base)
	used := make(map[string]bool)
	for _, title := range titles {
		albumSongs := byAlbum[title]
		slices.SortStableFunc(albumSongs, func(a, b models.Song) int {
			return cmp.Or(cmp.Compare(a.TrackNumber, b.TrackNumber), cmp.Compare(a.Title, b.Title), cmp.Compare(a.FilePath, b.FilePath))
		})
		dedupeIDs(albumSongs)

		key := uniqueKey(AlbumKey(title), used)
		builder.AddAlbum(models.Album{
			Key:   key,
			Title: title,
			Desc:  albumSongs[0].ArtistLine(),
		}, albumSongs)
	}

	cat := builder.Build()
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"root":   root,
			"albums": cat.AlbumCount(),
			"songs":  cat.Size(),
		}).Info("Catalog scanned")
	}
	return cat, nil
}

// AlbumKey turns an album title into a path-safe key.
func AlbumKey(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	key := strings.TrimSuffix(b.String(), "-")
	if key == "" {
		return "album"
	}
	return key
}

func uniqueKey(key string, used map[string]bool) string {
	candidate := key
	for n := 2; used[candidate]; n++ {
		candidate = key + "-" + strconv.Itoa(n)
	}
	used[candidate] = true
	return candidate
}

// dedupeIDs suffixes repeated song ids inside one album so media references
// stay unique.
func dedupeIDs(songs []models.Song) {
	seen := make(map[string]int)
	for i := range songs {
		id := songs[i].ID
		seen[id]++
		if n := seen[id]; n > 1 {
			songs[i].ID = id + "-" + strconv.Itoa(n)
		}
	}
}
