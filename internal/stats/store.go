package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Default flush cadence.
const (
	DefaultDebounce = time.Second
	DefaultInterval = time.Minute
)

// ErrIndexOutOfRange is returned when addressing a row outside the catalog.
var ErrIndexOutOfRange = errors.New("stat index out of range")

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc satisfies it.
type AfterFunc func(d time.Duration, f func()) Timer

// Options tune a Store. Zero values select the defaults.
type Options struct {
	Debounce  time.Duration
	Interval  time.Duration // negative disables the periodic flush
	AfterFunc AfterFunc
	Logger    *logrus.Logger
}

// Store owns the per-song counters and keeps them in sync with a Backend.
// It is safe for concurrent use; timers flush from their own goroutines.
type Store struct {
	mutex     sync.Mutex
	backend   Backend
	size      int
	rows      []Stat
	debounce  time.Duration
	interval  time.Duration
	afterFunc AfterFunc
	logger    *logrus.Logger

	pending  Timer
	periodic Timer
	closed   bool
}

// Open creates a store for a catalog of catalogSize songs, loads persisted
// counters from backend and starts the periodic flush.
func Open(catalogSize int, backend Backend, opts Options) *Store {
	if catalogSize < 0 {
		catalogSize = 0
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
		opts.Logger.SetOutput(io.Discard)
	}

	s := &Store{
		backend:   backend,
		size:      catalogSize,
		debounce:  opts.Debounce,
		interval:  opts.Interval,
		afterFunc: opts.AfterFunc,
		logger:    opts.Logger,
	}
	s.Load()

	s.mutex.Lock()
	s.schedulePeriodicLocked()
	s.mutex.Unlock()
	return s
}

// Load reads the persisted counters and merges them with the catalog: one row
// per catalog index, missing rows zeroed, surplus rows dropped. Any read or
// parse failure resets all counters. The result is written back immediately.
func (s *Store) Load() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	data, err := s.backend.ReadStats()
	if err != nil {
		s.logger.WithError(err).Warn("Could not read stats, resetting")
		s.resetLocked()
		return
	}
	if data == nil {
		s.logger.Debug("No stored stats, starting fresh")
		s.resetLocked()
		return
	}

	stored, err := decodeRows(data)
	if err != nil {
		s.logger.WithError(err).Warn("Stored stats are corrupt, resetting")
		s.resetLocked()
		return
	}

	rows := make([]Stat, s.size)
	for i := range rows {
		if i < len(stored) && stored[i] != nil {
			rows[i] = *stored[i]
		}
	}
	s.rows = rows
	s.flushLocked()

	s.logger.WithFields(logrus.Fields{
		"stored":  len(stored),
		"catalog": s.size,
	}).Info("Stats loaded")
}

// Reset replaces every counter with zero and persists the result.
func (s *Store) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.resetLocked()
}

func (s *Store) resetLocked() {
	s.rows = make([]Stat, s.size)
	s.flushLocked()
}

// Flush writes the in-memory counters to the backend, replacing what was
// stored. Errors are logged and returned; the in-memory view stays
// authoritative either way. A closed store does not write.
func (s *Store) Flush() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	data, err := json.Marshal(s.rows)
	if err != nil {
		s.logger.WithError(err).Error("Failed to encode stats")
		return fmt.Errorf("failed to encode stats: %w", err)
	}
	if err := s.backend.WriteStats(data); err != nil {
		s.logger.WithError(err).Warn("Failed to persist stats")
		return err
	}
	return nil
}

// Increment adds one to a counter and returns its new value. It does not
// flush; callers schedule that with ScheduleFlush.
func (s *Store) Increment(index int, field Field) (uint64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if index < 0 || index >= len(s.rows) {
		return 0, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return s.rows[index].increment(field)
}

// Get returns a copy of one row.
func (s *Store) Get(index int) (Stat, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if index < 0 || index >= len(s.rows) {
		return Stat{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return s.rows[index], nil
}

// Snapshot returns a copy of all rows, indexed by catalog position.
func (s *Store) Snapshot() []Stat {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return append([]Stat(nil), s.rows...)
}

// Len returns the number of rows, always the catalog size.
func (s *Store) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return len(s.rows)
}

// ScheduleFlush (re)arms the debounced flush. Bursts of calls collapse into a
// single write one debounce period after the last call.
func (s *Store) ScheduleFlush() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return
	}
	if s.pending != nil {
		s.pending.Stop()
	}

	var timer Timer
	timer = s.afterFunc(s.debounce, func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		if s.closed || s.pending != timer {
			return
		}
		s.pending = nil
		s.flushLocked()
	})
	s.pending = timer
}

func (s *Store) schedulePeriodicLocked() {
	if s.interval < 0 || s.closed {
		return
	}

	var timer Timer
	timer = s.afterFunc(s.interval, func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		if s.closed || s.periodic != timer {
			return
		}
		s.flushLocked()
		s.schedulePeriodicLocked()
	})
	s.periodic = timer
}

// Close cancels pending timers and performs a final flush. Further Flush
// and ScheduleFlush calls are ignored.
func (s *Store) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	if s.periodic != nil {
		s.periodic.Stop()
		s.periodic = nil
	}
	return s.flushLocked()
}
