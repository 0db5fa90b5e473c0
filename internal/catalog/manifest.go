package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"soundscript/pkg/models"

	"github.com/sirupsen/logrus"
)

// ManifestName is the file name of album and song manifests.
const ManifestName = "info.json"

// IsManifest reports whether path names a manifest file.
func IsManifest(path string) bool {
	return filepath.Base(path) == ManifestName
}

// LoadManifest builds a catalog from the static library layout:
//
//	<root>/songs/info.json           albums: [{"album", "title", "desc"}]
//	<root>/songs/<album>/info.json   songs:  [{"id", "song", "artist", "type", "img"}]
func LoadManifest(root, base string, logger *logrus.Logger) (*Catalog, error) {
	var albums []models.Album
	if err := readManifest(filepath.Join(root, "songs", ManifestName), &albums); err != nil {
		return nil, err
	}

	builder := NewBuilder(base)
	for _, album := range albums {
		if album.Key == "" {
			return nil, fmt.Errorf("album %q has no key", album.Title)
		}

		var songs []models.Song
		if err := readManifest(filepath.Join(root, "songs", album.Key, ManifestName), &songs); err != nil {
			return nil, err
		}
		for i := range songs {
			ext := songs[i].Type
			if ext == "" {
				ext = "mp3"
			}
			songs[i].FilePath = filepath.Join(root, "songs", album.Key, songs[i].ID+"."+ext)
		}
		builder.AddAlbum(album, songs)
	}

	cat := builder.Build()
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"root":   root,
			"albums": cat.AlbumCount(),
			"songs":  cat.Size(),
		}).Info("Catalog loaded from manifest")
	}
	return cat, nil
}

func readManifest(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return nil
}
