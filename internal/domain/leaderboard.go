package domain

// LeaderboardEntry is one ranked row of a season leaderboard.
type LeaderboardEntry struct {
	Rank           int    `json:"rank"`
	Username       string `json:"username"`
	Avatar         string `json:"avatar"`
	AvatarFallback string `json:"avatarFallback"`
	SScore         int64  `json:"sScore"`
	RefScore       int64  `json:"refScore"`
	PtsScore       int64  `json:"ptsScore"`
	Multiplier     int64  `json:"multiplier"`
	TotalScore     int64  `json:"totalScore"`
}
