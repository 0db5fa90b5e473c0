// Package player is the playback state machine: it owns the active queue
// range, the current track, transport controls and play tracking, and talks
// to renderers only through the playback bus.
package player

import (
	"errors"
	"io"
	"math"

	"soundscript/internal/catalog"
	"soundscript/internal/events"
	"soundscript/internal/ranking"
	"soundscript/internal/stats"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidRange is returned when a selection resolves to an empty or
	// out-of-bounds range.
	ErrInvalidRange = errors.New("invalid queue range")
	// ErrIdle is returned by operations that need a loaded track.
	ErrIdle = errors.New("no track loaded")
)

// SkipSeconds is the forward/reverse step.
const SkipSeconds = 10.0

// Rule decides when listening counts as a play.
type Rule struct {
	LongTrack    float64 // durations above this use Ceiling
	Ceiling      float64 // threshold for long tracks, in seconds
	Ratio        float64 // share of a short track that must be heard
	SampleWindow float64 // largest position delta counted as contiguous play
}

// DefaultRule counts a play after 2 minutes, or 80% of tracks up to 150s.
var DefaultRule = Rule{
	LongTrack:    150,
	Ceiling:      120,
	Ratio:        0.8,
	SampleWindow: 0.5,
}

// Threshold returns the listening time needed for a counted play.
func (r Rule) Threshold(duration float64) float64 {
	if duration > r.LongTrack {
		return r.Ceiling
	}
	return r.Ratio * duration
}

func (r Rule) withDefaults() Rule {
	if r.LongTrack <= 0 {
		r.LongTrack = DefaultRule.LongTrack
	}
	if r.Ceiling <= 0 {
		r.Ceiling = DefaultRule.Ceiling
	}
	if r.Ratio <= 0 || r.Ratio > 1 {
		r.Ratio = DefaultRule.Ratio
	}
	if r.SampleWindow <= 0 {
		r.SampleWindow = DefaultRule.SampleWindow
	}
	return r
}

// Player is not safe for concurrent use. All calls, including the Handle*
// media callbacks, must come from a single goroutine (see package loop).
type Player struct {
	bus      *events.Bus
	media    Media
	store    *stats.Store
	catalog  catalog.Lookup
	rankings *ranking.Rankings
	rule     Rule
	logger   *logrus.Logger

	active     bool
	selType    string
	queueID    string
	from, to   int
	current    int
	card       int
	statIdx    int
	wasPlaying bool

	tracking  bool
	listened  float64
	threshold float64
	lastTime  float64

	subs []events.Subscription
}

// Config wires a Player to its collaborators.
type Config struct {
	Bus      *events.Bus
	Media    Media
	Store    *stats.Store
	Catalog  catalog.Lookup
	Rankings *ranking.Rankings
	Rule     Rule    // zero fields select DefaultRule
	Volume   float64 // initial volume, 1 when zero
	Logger   *logrus.Logger
}

// New creates an idle player, hides the controls, sets the volume and
// subscribes to the select-track, play-all and replay intents.
func New(cfg Config) *Player {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	rankings := cfg.Rankings
	if rankings == nil {
		rankings = ranking.Compute(nil, 0)
	}

	p := &Player{
		bus:        cfg.Bus,
		media:      cfg.Media,
		store:      cfg.Store,
		catalog:    cfg.Catalog,
		rankings:   rankings,
		rule:       cfg.Rule.withDefaults(),
		logger:     logger,
		wasPlaying: true,
		threshold:  math.Inf(1),
	}

	p.bus.Emit(events.ControlsHidden, nil)
	volume := cfg.Volume
	if volume == 0 {
		volume = 1
	}
	p.SetVolume(volume)

	p.subs = append(p.subs,
		events.Subscribe(p.bus, events.SelectTrack, func(sel events.Selection) {
			if err := p.Select(sel); err != nil {
				p.logger.WithError(err).WithFields(logrus.Fields{
					"type":  sel.Type,
					"queue": sel.QueueID,
					"index": sel.Index,
				}).Warn("Selection rejected")
			}
		}),
		p.bus.On(events.PlayAll, func(any) {
			if err := p.PlayAll(); err != nil {
				p.logger.WithError(err).Warn("Play all rejected")
			}
		}),
		p.bus.On(events.Replay, func(any) { p.Replay() }),
	)

	p.logger.Info("Player initialized")
	return p
}

// Close removes the intent subscriptions.
func (p *Player) Close() {
	for _, sub := range p.subs {
		p.bus.Off(sub)
	}
	p.subs = nil
}

// Select handles a select-track intent. Selecting the entry that is already
// current toggles play/pause instead of reloading it.
func (p *Player) Select(sel events.Selection) error {
	switch sel.Type {
	case events.SelectSong:
		return p.selectSong(sel.QueueID, sel.Index)
	case events.SelectAlbum:
		return p.selectAlbum(sel.QueueID, sel.Index)
	default:
		return errors.New("unknown selection type: " + sel.Type)
	}
}

func (p *Player) selectSong(queueID string, index int) error {
	sameQueue := p.active && p.queueID == queueID
	from, to := p.from, p.to
	if !sameQueue {
		from, to = 0, p.queueLen(queueID)
	}
	if from >= to || index < from || index >= to {
		p.idle()
		return ErrInvalidRange
	}

	if sameQueue && p.current == index {
		p.Toggle()
		return nil
	}

	if !sameQueue {
		p.startQueue(events.SelectSong, queueID, from, to)
	}
	p.current = index
	if p.selType == events.SelectSong {
		p.card = p.current - p.from + 1
	}
	p.loadCurrent()
	return nil
}

func (p *Player) selectAlbum(queueID string, albumIdx int) error {
	if p.active && p.queueID == queueID && p.card == albumIdx+1 {
		p.Toggle()
		return nil
	}

	from, to, err := p.catalog.AlbumRange(albumIdx)
	if err != nil || from >= to {
		p.idle()
		return ErrInvalidRange
	}

	p.startQueue(events.SelectAlbum, queueID, from, to)
	p.current = from
	p.card = albumIdx + 1
	p.loadCurrent()
	return nil
}

// PlayAll starts the whole catalog from its first song.
func (p *Player) PlayAll() error {
	size := p.catalog.Size()
	if size == 0 {
		p.idle()
		return ErrInvalidRange
	}

	p.startQueue(events.SelectSong, "", 0, size)
	p.current = 0
	p.card = 1
	p.wasPlaying = true
	p.loadCurrent()
	return nil
}

func (p *Player) queueLen(queueID string) int {
	if p.rankings.Has(queueID) {
		return p.rankings.Len(queueID)
	}
	return p.catalog.Size()
}

func (p *Player) startQueue(selType, queueID string, from, to int) {
	p.active = true
	p.selType = selType
	p.queueID = queueID
	p.from, p.to = from, to

	p.bus.Emit(events.QueueSynced, events.QueueSync{
		Type:    selType,
		QueueID: queueID,
		From:    from,
		To:      to,
	})
	p.bus.Emit(events.ControlsShown, nil)
}

// idle drops the session, silences the media and hides the controls.
func (p *Player) idle() {
	if p.active {
		p.media.Pause()
	}
	p.active = false
	p.selType = ""
	p.queueID = ""
	p.from, p.to, p.current, p.card = 0, 0, 0, 0
	p.tracking = false
	p.bus.Emit(events.ControlsHidden, nil)
}

// loadCurrent points the media at the current track, re-arms play tracking
// and restores the previous transport state.
func (p *Player) loadCurrent() {
	p.statIdx = p.resolveIndex()
	p.listened = 0
	p.lastTime = 0
	p.threshold = math.Inf(1)
	p.tracking = true

	p.media.Load(p.catalog.MediaRef(p.statIdx))

	stat, err := p.store.Get(p.statIdx)
	if err != nil {
		p.logger.WithError(err).WithField("index", p.statIdx).Warn("No stats for track")
	}
	p.bus.Emit(events.TrackChanged, events.TrackInfo{
		LikeCount:    stat.Like,
		DislikeCount: stat.Dislike,
		Title:        p.catalog.Title(p.statIdx),
		Artist:       p.catalog.Artist(p.statIdx),
		Artwork:      p.catalog.Artwork(p.statIdx),
	})

	if p.wasPlaying {
		p.media.Play()
	} else {
		p.bus.Emit(events.Paused, p.playState())
	}
}

// resolveIndex maps the current queue position to a catalog index.
func (p *Player) resolveIndex() int {
	if p.selType == events.SelectSong {
		return p.rankings.IndexAt(p.queueID, p.current)
	}
	return p.current
}

func (p *Player) playState() events.PlayState {
	return events.PlayState{
		QueueID:      p.queueID,
		CardPosition: p.card,
		TilePosition: p.current - p.from + 1,
	}
}

// Play resumes the loaded track.
func (p *Player) Play() {
	if !p.active {
		return
	}
	p.media.Play()
}

// Pause pauses the loaded track and remembers it for the next load.
func (p *Player) Pause() {
	if !p.active {
		return
	}
	p.media.Pause()
	p.wasPlaying = false
}

// Toggle flips between Play and Pause.
func (p *Player) Toggle() {
	if p.wasPlaying {
		p.Pause()
	} else {
		p.Play()
	}
}

// Replay restarts the track and resumes it if paused.
func (p *Player) Replay() {
	if !p.active {
		return
	}
	p.media.SetPosition(0)
	p.lastTime = 0
	p.listened = 0
	if p.media.Paused() {
		p.Play()
	}
}

// PlayNext advances to the next queue entry, wrapping to the first.
func (p *Player) PlayNext() {
	if !p.active {
		return
	}
	if p.current < p.to-1 {
		p.current++
	} else {
		p.current = p.from
	}
	p.afterMove()
}

// PlayPrev steps back to the previous queue entry, wrapping to the last.
func (p *Player) PlayPrev() {
	if !p.active {
		return
	}
	if p.current <= p.from {
		p.current = p.to - 1
	} else {
		p.current--
	}
	p.afterMove()
}

func (p *Player) afterMove() {
	if p.selType == events.SelectSong {
		p.card = p.current - p.from + 1
	}
	p.loadCurrent()
}

// Seek jumps to fraction of the track. Callers clamp fraction to [0, 1].
func (p *Player) Seek(fraction float64) {
	duration := p.media.Duration()
	if !p.active || duration <= 0 {
		return
	}
	p.media.SetPosition(fraction * duration)
}

// Forward skips ahead, stopping at the end of the track.
func (p *Player) Forward() {
	p.AdjustPosition(SkipSeconds)
}

// Reverse skips back, stopping at the start of the track.
func (p *Player) Reverse() {
	p.AdjustPosition(-SkipSeconds)
}

// AdjustPosition moves the position by delta seconds within [0, duration].
func (p *Player) AdjustPosition(delta float64) {
	duration := p.media.Duration()
	if !p.active || duration <= 0 {
		return
	}
	p.media.SetPosition(lo.Clamp(p.media.Position()+delta, 0, duration))
}

// SetVolume sets the volume, clamped to [0, 1].
func (p *Player) SetVolume(level float64) {
	if math.IsNaN(level) {
		level = 1
	}
	p.media.SetVolume(lo.Clamp(level, 0, 1))
}

// Like increments the like counter of the loaded track.
func (p *Player) Like() (uint64, error) {
	return p.react(stats.Like)
}

// Dislike increments the dislike counter of the loaded track.
func (p *Player) Dislike() (uint64, error) {
	return p.react(stats.Dislike)
}

func (p *Player) react(field stats.Field) (uint64, error) {
	if !p.active {
		return 0, ErrIdle
	}
	count, err := p.store.Increment(p.statIdx, field)
	if err != nil {
		return 0, err
	}
	p.store.ScheduleFlush()
	return count, nil
}

// HandlePlay reports that the media started playing.
func (p *Player) HandlePlay() {
	p.wasPlaying = true
	p.bus.Emit(events.Playing, p.playState())
}

// HandlePause reports that the media paused.
func (p *Player) HandlePause() {
	p.bus.Emit(events.Paused, p.playState())
}

// HandleMetadata reports that the track duration is known.
func (p *Player) HandleMetadata() {
	duration := p.media.Duration()
	if duration <= 0 || math.IsNaN(duration) {
		return
	}
	p.threshold = p.rule.Threshold(duration)
}

// HandleTimeUpdate reports a new playback position. Contiguous forward
// samples accumulate listening time; once it passes the threshold the play
// is counted and tracking stops until the next load.
func (p *Player) HandleTimeUpdate() {
	now := p.media.Position()
	p.bus.Emit(events.PositionUpdate, events.Position{Now: now, Duration: p.media.Duration()})

	if !p.tracking {
		return
	}
	diff := now - p.lastTime
	p.lastTime = now
	if diff <= 0 || diff >= p.rule.SampleWindow {
		return
	}

	p.listened += diff
	if p.listened <= p.threshold {
		return
	}

	p.tracking = false
	p.listened = 0
	count, err := p.store.Increment(p.statIdx, stats.Play)
	if err != nil {
		p.logger.WithError(err).WithField("index", p.statIdx).Warn("Failed to count play")
		return
	}
	p.store.ScheduleFlush()
	p.logger.WithFields(logrus.Fields{
		"index": p.statIdx,
		"plays": count,
	}).Debug("Play counted")
}

// HandleEnded reports the natural end of the track.
func (p *Player) HandleEnded() {
	p.PlayNext()
}

// HandleError reports a media failure; the track is skipped.
func (p *Player) HandleError(err error) {
	p.logger.WithError(err).WithField("index", p.statIdx).Warn("Media error, skipping track")
	p.PlayNext()
}
