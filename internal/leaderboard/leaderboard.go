// Package leaderboard serves season standings.
package leaderboard

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

//go:embed leaderboard.json
var defaultBoard []byte

type boardFile struct {
	Default string                               `json:"default"`
	Seasons map[string][]domain.LeaderboardEntry `json:"seasons"`
}

// Board holds the standings of every season.
type Board struct {
	def     string
	seasons map[string][]domain.LeaderboardEntry
}

// Default returns the standings shipped with the binary.
func Default() (*Board, error) {
	return Decode(bytes.NewReader(defaultBoard))
}

// Decode reads a board document. Entries are ordered by rank.
func Decode(r io.Reader) (*Board, error) {
	var f boardFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("leaderboard: decode: %w", err)
	}
	if _, ok := f.Seasons[f.Default]; !ok {
		return nil, fmt.Errorf("leaderboard: default season %q not present", f.Default)
	}
	for _, entries := range f.Seasons {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Rank < entries[j].Rank })
	}
	return &Board{def: f.Default, seasons: f.Seasons}, nil
}

// Seasons lists season keys, newest first.
func (b *Board) Seasons() []string {
	out := make([]string, 0, len(b.seasons))
	for k := range b.seasons {
		out = append(out, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

// DefaultSeason is the season shown when none is requested.
func (b *Board) DefaultSeason() string { return b.def }

// Standings returns season's entries whose username contains query
// (case-insensitive). An empty season means the default one.
func (b *Board) Standings(season, query string) ([]domain.LeaderboardEntry, error) {
	if season == "" {
		season = b.def
	}
	entries, ok := b.seasons[strings.ToLower(season)]
	if !ok {
		return nil, fmt.Errorf("leaderboard: season %q: %w", season, domain.ErrNotFound)
	}

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.LeaderboardEntry, 0, len(entries))
	for _, e := range entries {
		if q == "" || strings.Contains(strings.ToLower(e.Username), q) {
			out = append(out, e)
		}
	}
	return out, nil
}
