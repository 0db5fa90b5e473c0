package server

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"soundscript/internal/ranking"
	"soundscript/internal/stats"
	"soundscript/pkg/models"

	"github.com/samber/lo"
)

// SongView is the catalog entry sent to renderers.
type SongView struct {
	Index    int     `json:"index"`
	ID       string  `json:"id"`
	Album    string  `json:"album"`
	Title    string  `json:"title"`
	Artist   string  `json:"artist"`
	Media    string  `json:"media"`
	Artwork  string  `json:"artwork"`
	Duration float64 `json:"duration,omitempty"`
}

// AlbumView is an album with its catalog range.
type AlbumView struct {
	Index int    `json:"index"`
	Key   string `json:"album"`
	Title string `json:"title"`
	Desc  string `json:"desc"`
	From  int    `json:"from"`
	To    int    `json:"to"`
}

// handleHome serves the renderer entry page from the configured static dir.
func (ms *MusicServer) handleHome(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(ms.config.Server.StaticDir, "index.html"))
}

// handleGetSongs returns the catalog in catalog order.
func (ms *MusicServer) handleGetSongs(w http.ResponseWriter, r *http.Request) {
	ms.respondCached(w, r, "songs", func() any {
		return lo.Times(ms.catalog.Size(), func(i int) SongView {
			return SongView{
				Index:    i,
				ID:       ms.catalog.SongID(i),
				Album:    ms.catalog.AlbumKey(i),
				Title:    ms.catalog.Title(i),
				Artist:   ms.catalog.Artist(i),
				Media:    ms.catalog.MediaRef(i),
				Artwork:  ms.catalog.Artwork(i),
				Duration: ms.catalog.Duration(i),
			}
		})
	})
}

// handleGetAlbums returns the albums with their catalog ranges.
func (ms *MusicServer) handleGetAlbums(w http.ResponseWriter, r *http.Request) {
	ms.respondCached(w, r, "albums", func() any {
		return lo.Map(ms.catalog.Albums(), func(album models.Album, i int) AlbumView {
			from, to, _ := ms.catalog.AlbumRange(i)
			return AlbumView{
				Index: i,
				Key:   album.Key,
				Title: album.Title,
				Desc:  album.Desc,
				From:  from,
				To:    to,
			}
		})
	})
}

// handleGetRankings returns the ranked queues computed at startup.
func (ms *MusicServer) handleGetRankings(w http.ResponseWriter, r *http.Request) {
	ms.respondCached(w, r, "rankings", func() any {
		return lo.SliceToMap(ranking.Names(), func(name string) (string, []int) {
			queue, _ := ms.rankings.Queue(name)
			return name, queue
		})
	})
}

// respondCached serves a response that never changes while the process
// runs, encoding it only once.
func (ms *MusicServer) respondCached(w http.ResponseWriter, r *http.Request, key string, build func() any) {
	data, err := ms.responses.GetOrCompute(key, func() ([]byte, error) {
		return json.Marshal(build())
	})
	if err != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Error encoding "+key, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// handleLifecycle forwards page lifecycle signals to the stats store.
func (ms *MusicServer) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Signal string `json:"signal"`
	}
	if verr := decodeBody(r, &req); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	sig, err := stats.ParseSignal(req.Signal)
	if err != nil {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "signal",
			Message: err.Error(),
			Code:    "INVALID_SIGNAL",
		}})
		return
	}

	ms.store.Signal(sig)
	ms.respondJSON(w, map[string]any{"success": true})
}

// handleGetClients lists connected renderers.
func (ms *MusicServer) handleGetClients(w http.ResponseWriter, r *http.Request) {
	ms.respondJSON(w, ms.clients.Clients())
}

// handleSetAudioClient moves the audio element to another renderer.
func (ms *MusicServer) handleSetAudioClient(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"clientId"`
	}
	if verr := decodeBody(r, &req); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	if !ms.clients.SetAudioClient(req.ClientID) {
		ms.respondWithError(w, r, http.StatusNotFound, "Client not found", nil)
		return
	}
	ms.respondJSON(w, map[string]any{"success": true, "clientId": req.ClientID})
}
