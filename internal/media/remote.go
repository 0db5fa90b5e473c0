// Package media mirrors the audio element living in the connected renderer.
// Commands go out on the media bus; the renderer reports element events
// back, which update the mirror and are forwarded to the player.
package media

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"soundscript/internal/events"
)

// Report kinds sent by the renderer.
const (
	ReportPlay       = "play"
	ReportPause      = "pause"
	ReportMetadata   = "loadedmetadata"
	ReportTimeUpdate = "timeupdate"
	ReportEnded      = "ended"
	ReportError      = "error"
)

// ErrUnknownReport is returned for unrecognised report kinds.
var ErrUnknownReport = errors.New("unknown media report")

// Handler receives element events after the mirror is updated.
type Handler interface {
	HandlePlay()
	HandlePause()
	HandleMetadata()
	HandleTimeUpdate()
	HandleEnded()
	HandleError(err error)
}

// Report is an audio element event sent by the renderer.
type Report struct {
	Event    string  `json:"event"`
	Position float64 `json:"position"`
	Duration float64 `json:"duration"`
	Error    string  `json:"error,omitempty"`
}

// State is a snapshot of the mirrored element.
type State struct {
	Source    string    `json:"source"`
	Paused    bool      `json:"paused"`
	Position  float64   `json:"position"`
	Duration  float64   `json:"duration"`
	Volume    float64   `json:"volume"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Remote implements player.Media for an element it does not own.
type Remote struct {
	bus   *events.Bus
	state State
	mutex sync.RWMutex
}

// NewRemote creates a paused, empty mirror publishing on bus.
func NewRemote(bus *events.Bus) *Remote {
	return &Remote{
		bus: bus,
		state: State{
			Paused:    true,
			Volume:    1,
			UpdatedAt: time.Now(),
		},
	}
}

// State returns a copy of the mirrored state.
func (r *Remote) State() State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.state
}

func (r *Remote) update(fn func(s *State)) {
	r.mutex.Lock()
	fn(&r.state)
	r.state.UpdatedAt = time.Now()
	r.mutex.Unlock()
}

// Load points the element at a new source.
func (r *Remote) Load(ref string) {
	r.update(func(s *State) {
		s.Source = ref
		s.Paused = true
		s.Position = 0
		s.Duration = 0
	})
	r.bus.Emit(events.MediaLoad, events.MediaCommand{Source: ref})
}

// Play asks the element to play. The mirror assumes success until the
// renderer reports otherwise.
func (r *Remote) Play() {
	r.update(func(s *State) { s.Paused = false })
	r.bus.Emit(events.MediaPlay, nil)
}

// Pause asks the element to pause.
func (r *Remote) Pause() {
	r.update(func(s *State) { s.Paused = true })
	r.bus.Emit(events.MediaPause, nil)
}

// Paused reports the last known pause state.
func (r *Remote) Paused() bool {
	return r.State().Paused
}

// Position returns the last reported position in seconds.
func (r *Remote) Position() float64 {
	return r.State().Position
}

// SetPosition seeks the element.
func (r *Remote) SetPosition(seconds float64) {
	r.update(func(s *State) { s.Position = seconds })
	r.bus.Emit(events.MediaSeek, events.MediaCommand{Position: seconds})
}

// Duration returns the reported duration, 0 while unknown.
func (r *Remote) Duration() float64 {
	return r.State().Duration
}

// SetVolume sets the element volume.
func (r *Remote) SetVolume(level float64) {
	r.update(func(s *State) { s.Volume = level })
	r.bus.Emit(events.MediaVolume, events.MediaCommand{Volume: level})
}

// Apply records a renderer report and forwards it to h.
func (r *Remote) Apply(rep Report, h Handler) error {
	position := finite(rep.Position)
	duration := finite(rep.Duration)

	switch rep.Event {
	case ReportPlay:
		r.update(func(s *State) { s.Paused = false })
		h.HandlePlay()
	case ReportPause:
		r.update(func(s *State) { s.Paused = true })
		h.HandlePause()
	case ReportMetadata:
		r.update(func(s *State) { s.Duration = duration })
		h.HandleMetadata()
	case ReportTimeUpdate:
		r.update(func(s *State) {
			s.Position = position
			if duration > 0 {
				s.Duration = duration
			}
		})
		h.HandleTimeUpdate()
	case ReportEnded:
		r.update(func(s *State) { s.Paused = true })
		h.HandleEnded()
	case ReportError:
		msg := rep.Error
		if msg == "" {
			msg = "media error"
		}
		h.HandleError(errors.New(msg))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownReport, rep.Event)
	}
	return nil
}

// finite maps NaN, infinities and negatives to 0.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
