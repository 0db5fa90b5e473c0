package media

import (
	"errors"
	"math"
	"testing"

	"soundscript/internal/events"
)

type recordingHandler struct {
	calls []string
	err   error
}

func (h *recordingHandler) HandlePlay()       { h.calls = append(h.calls, "play") }
func (h *recordingHandler) HandlePause()      { h.calls = append(h.calls, "pause") }
func (h *recordingHandler) HandleMetadata()   { h.calls = append(h.calls, "metadata") }
func (h *recordingHandler) HandleTimeUpdate() { h.calls = append(h.calls, "timeupdate") }
func (h *recordingHandler) HandleEnded()      { h.calls = append(h.calls, "ended") }
func (h *recordingHandler) HandleError(err error) {
	h.calls = append(h.calls, "error")
	h.err = err
}

func TestCommandsArePublished(t *testing.T) {
	bus := events.NewBus("media", nil)
	var got []string
	var commands []events.MediaCommand
	bus.Tap(func(channel string, payload any) {
		got = append(got, channel)
		if cmd, ok := payload.(events.MediaCommand); ok {
			commands = append(commands, cmd)
		}
	})

	r := NewRemote(bus)
	r.Load("/media/songs/a/b.mp3")
	r.Play()
	r.SetPosition(12.5)
	r.SetVolume(0)
	r.Pause()

	want := []string{events.MediaLoad, events.MediaPlay, events.MediaSeek, events.MediaVolume, events.MediaPause}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Command %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	if commands[0].Source != "/media/songs/a/b.mp3" || commands[1].Position != 12.5 || commands[2].Volume != 0 {
		t.Errorf("Unexpected command payloads %+v", commands)
	}

	state := r.State()
	if !state.Paused || state.Position != 12.5 || state.Volume != 0 {
		t.Errorf("Unexpected state %+v", state)
	}
}

func TestLoadResetsMirror(t *testing.T) {
	r := NewRemote(events.NewBus("media", nil))
	h := &recordingHandler{}

	if err := r.Apply(Report{Event: ReportTimeUpdate, Position: 30, Duration: 200}, h); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	r.Load("next.mp3")

	if r.Position() != 0 || r.Duration() != 0 || !r.Paused() {
		t.Errorf("Expected a fresh mirror, got %+v", r.State())
	}
}

func TestApplyForwardsReports(t *testing.T) {
	r := NewRemote(events.NewBus("media", nil))
	h := &recordingHandler{}

	reports := []Report{
		{Event: ReportPlay},
		{Event: ReportMetadata, Duration: 180},
		{Event: ReportTimeUpdate, Position: 1.25},
		{Event: ReportPause},
		{Event: ReportEnded},
		{Event: ReportError, Error: "decode failed"},
	}
	for _, rep := range reports {
		if err := r.Apply(rep, h); err != nil {
			t.Fatalf("Apply(%s) failed: %v", rep.Event, err)
		}
	}

	want := []string{"play", "metadata", "timeupdate", "pause", "ended", "error"}
	if len(h.calls) != len(want) {
		t.Fatalf("Expected %v, got %v", want, h.calls)
	}
	for i := range want {
		if h.calls[i] != want[i] {
			t.Errorf("Call %d: expected %s, got %s", i, want[i], h.calls[i])
		}
	}
	if h.err == nil || h.err.Error() != "decode failed" {
		t.Errorf("Unexpected error %v", h.err)
	}
	if r.Duration() != 180 || r.Position() != 1.25 {
		t.Errorf("Unexpected state %+v", r.State())
	}
}

func TestApplySanitizesNumbers(t *testing.T) {
	r := NewRemote(events.NewBus("media", nil))
	h := &recordingHandler{}

	if err := r.Apply(Report{Event: ReportMetadata, Duration: math.Inf(1)}, h); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := r.Apply(Report{Event: ReportTimeUpdate, Position: math.NaN()}, h); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if r.Duration() != 0 || r.Position() != 0 {
		t.Errorf("Expected non-finite values to read as 0, got %+v", r.State())
	}
}

func TestApplyUnknownKind(t *testing.T) {
	r := NewRemote(events.NewBus("media", nil))
	h := &recordingHandler{}

	if err := r.Apply(Report{Event: "stalled"}, h); !errors.Is(err, ErrUnknownReport) {
		t.Errorf("Expected ErrUnknownReport, got %v", err)
	}
	if len(h.calls) != 0 {
		t.Errorf("Expected no forwarded calls, got %v", h.calls)
	}
}
