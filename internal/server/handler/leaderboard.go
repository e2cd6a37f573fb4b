package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// Leaderboard reads season standings.
type Leaderboard interface {
	Seasons() []string
	DefaultSeason() string
	Standings(season, query string) ([]domain.LeaderboardEntry, error)
}

// LeaderboardHandler serves season standings.
type LeaderboardHandler struct {
	board  Leaderboard
	logger *slog.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler.
func NewLeaderboardHandler(board Leaderboard, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{board: board, logger: logHandler(logger, "leaderboard")}
}

type leaderboardResponse struct {
	Season  string                    `json:"season"`
	Seasons []string                  `json:"seasons"`
	Entries []domain.LeaderboardEntry `json:"entries"`
}

// Get returns one season's standings filtered by username.
// GET /api/leaderboard?season=Season%201&q=ali
func (h *LeaderboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	season := q.Get("season")
	if season == "" {
		season = h.board.DefaultSeason()
	}
	entries, err := h.board.Standings(season, q.Get("q"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown season")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, leaderboardResponse{
		Season:  season,
		Seasons: h.board.Seasons(),
		Entries: entries,
	})
}
