package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Field names one of the three per-song counters.
type Field string

const (
	Play    Field = "play"
	Like    Field = "like"
	Dislike Field = "dislike"
)

// ErrUnknownField is returned for counters other than play, like and dislike.
var ErrUnknownField = errors.New("unknown stat field")

// ParseField converts a counter name into a Field.
func ParseField(name string) (Field, error) {
	switch f := Field(strings.ToLower(strings.TrimSpace(name))); f {
	case Play, Like, Dislike:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
}

// Stat holds the engagement counters of one catalog song.
type Stat struct {
	Play    uint64 `json:"play"`
	Like    uint64 `json:"like"`
	Dislike uint64 `json:"dislike"`
}

// Value returns the counter named by f.
func (s Stat) Value(f Field) uint64 {
	switch f {
	case Play:
		return s.Play
	case Like:
		return s.Like
	case Dislike:
		return s.Dislike
	}
	return 0
}

func (s *Stat) increment(f Field) (uint64, error) {
	switch f {
	case Play:
		s.Play++
		return s.Play, nil
	case Like:
		s.Like++
		return s.Like, nil
	case Dislike:
		s.Dislike++
		return s.Dislike, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, f)
}

// decodeRows parses a persisted stats document. The top level must be a JSON
// array; individual entries are coerced leniently (see coerceRow). A nil
// entry in the result means "no record at this index".
func decodeRows(data []byte) ([]*Stat, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse stats: %w", err)
	}

	rows := make([]*Stat, len(raw))
	for i, entry := range raw {
		rows[i] = coerceRow(entry)
	}
	return rows, nil
}

// coerceRow turns one persisted entry into a Stat. null yields nil; anything
// that is not an object yields a zero row; fields that are missing, not
// numeric, NaN or negative become 0 and fractions are truncated.
func coerceRow(entry json.RawMessage) *Stat {
	if string(entry) == "null" {
		return nil
	}

	var fields map[string]any
	if err := json.Unmarshal(entry, &fields); err != nil {
		return &Stat{}
	}
	return &Stat{
		Play:    coerceCount(fields[string(Play)]),
		Like:    coerceCount(fields[string(Like)]),
		Dislike: coerceCount(fields[string(Dislike)]),
	}
}

func coerceCount(v any) uint64 {
	var f float64
	switch value := v.(type) {
	case float64:
		f = value
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0
		}
		f = parsed
	case bool:
		if value {
			return 1
		}
		return 0
	default:
		return 0
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f >= math.MaxUint64 {
		return math.MaxUint64
	}
	return uint64(f)
}
