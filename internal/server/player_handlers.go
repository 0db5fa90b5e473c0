package server

import (
	"errors"
	"net/http"

	"soundscript/internal/events"
	"soundscript/internal/media"
	"soundscript/internal/player"
)

// clientHeader identifies the renderer sending a media report.
const clientHeader = "X-Client-ID"

// transportActions are the player intents without a request body.
func (ms *MusicServer) transportActions() map[string]func() {
	return map[string]func(){
		"toggle":  ms.player.Toggle,
		"play":    ms.player.Play,
		"pause":   ms.player.Pause,
		"next":    ms.player.PlayNext,
		"prev":    ms.player.PlayPrev,
		"replay":  ms.player.Replay,
		"forward": ms.player.Forward,
		"reverse": ms.player.Reverse,
	}
}

// handleTransport runs a body-less intent on the event loop.
func (ms *MusicServer) handleTransport(action func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := ms.onLoop(r.Context(), action); err != nil {
			ms.respondWithError(w, r, http.StatusServiceUnavailable, "Player unavailable", err)
			return
		}
		ms.respondJSON(w, map[string]any{"success": true})
	}
}

// handleSelect applies a select-track intent.
func (ms *MusicServer) handleSelect(w http.ResponseWriter, r *http.Request) {
	var sel events.Selection
	if verr := decodeBody(r, &sel); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	if verr := validateSelection(sel); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	var selErr error
	if err := ms.onLoop(r.Context(), func() { selErr = ms.player.Select(sel) }); err != nil {
		ms.respondWithError(w, r, http.StatusServiceUnavailable, "Player unavailable", err)
		return
	}
	if errors.Is(selErr, player.ErrInvalidRange) {
		ms.respondWithError(w, r, http.StatusUnprocessableEntity, "Selection is empty or out of range", selErr)
		return
	}
	if selErr != nil {
		ms.respondWithError(w, r, http.StatusBadRequest, "Invalid selection", selErr)
		return
	}

	ms.respondJSON(w, map[string]any{"success": true})
}

// handlePlayAll starts the whole catalog.
func (ms *MusicServer) handlePlayAll(w http.ResponseWriter, r *http.Request) {
	var playErr error
	if err := ms.onLoop(r.Context(), func() { playErr = ms.player.PlayAll() }); err != nil {
		ms.respondWithError(w, r, http.StatusServiceUnavailable, "Player unavailable", err)
		return
	}
	if playErr != nil {
		ms.respondWithError(w, r, http.StatusUnprocessableEntity, "Catalog is empty", playErr)
		return
	}
	ms.respondJSON(w, map[string]any{"success": true})
}

// handleSeek jumps to a fraction of the current track.
func (ms *MusicServer) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fraction *float64 `json:"fraction"`
	}
	if verr := decodeBody(r, &req); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	if verr := validateUnit("fraction", req.Fraction); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	ms.handleTransport(func() { ms.player.Seek(*req.Fraction) })(w, r)
}

// handleVolume sets the playback volume.
func (ms *MusicServer) handleVolume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level *float64 `json:"level"`
	}
	if verr := decodeBody(r, &req); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}
	if req.Level == nil {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "level",
			Message: "Value is required",
			Code:    "MISSING_LEVEL",
		}})
		return
	}

	// Out of range levels are clamped by the player.
	ms.handleTransport(func() { ms.player.SetVolume(*req.Level) })(w, r)
}

// handleLike increments the like counter of the current track.
func (ms *MusicServer) handleLike(w http.ResponseWriter, r *http.Request) {
	ms.handleReaction(w, r, ms.player.Like)
}

// handleDislike increments the dislike counter of the current track.
func (ms *MusicServer) handleDislike(w http.ResponseWriter, r *http.Request) {
	ms.handleReaction(w, r, ms.player.Dislike)
}

func (ms *MusicServer) handleReaction(w http.ResponseWriter, r *http.Request, react func() (uint64, error)) {
	var (
		count    uint64
		reactErr error
	)
	if err := ms.onLoop(r.Context(), func() { count, reactErr = react() }); err != nil {
		ms.respondWithError(w, r, http.StatusServiceUnavailable, "Player unavailable", err)
		return
	}
	if errors.Is(reactErr, player.ErrIdle) {
		ms.respondWithError(w, r, http.StatusConflict, "No track loaded", reactErr)
		return
	}
	if reactErr != nil {
		ms.respondWithError(w, r, http.StatusInternalServerError, "Failed to update stats", reactErr)
		return
	}

	ms.respondJSON(w, map[string]any{"success": true, "count": count})
}

// handleReport receives audio element events from the audio client.
func (ms *MusicServer) handleReport(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get(clientHeader)
	if !ms.clients.IsAudioClient(clientID) {
		ms.respondWithError(w, r, http.StatusConflict, "Client does not own the audio element", nil)
		return
	}

	var rep media.Report
	if verr := decodeBody(r, &rep); verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	var applyErr error
	if err := ms.onLoop(r.Context(), func() { applyErr = ms.remote.Apply(rep, ms.player) }); err != nil {
		ms.respondWithError(w, r, http.StatusServiceUnavailable, "Player unavailable", err)
		return
	}
	if applyErr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{{
			Field:   "event",
			Message: applyErr.Error(),
			Code:    "UNKNOWN_MEDIA_EVENT",
		}})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
