package market

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// SortBy orders the market list.
type SortBy string

const (
	SortTrending SortBy = "trending"
	SortNewest   SortBy = "newest"
	SortVolume   SortBy = "volume"
)

// ParseSort accepts "", trending, newest and volume.
func ParseSort(s string) (SortBy, error) {
	switch SortBy(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortTrending:
		return SortTrending, nil
	case SortNewest:
		return SortNewest, nil
	case SortVolume:
		return SortVolume, nil
	}
	return "", fmt.Errorf("unknown sort %q", s)
}

// Filter selects and orders markets for the browser. An empty Category or
// "All" keeps every category.
type Filter struct {
	Category domain.MarketCategory
	Query    string
	Sort     SortBy
}

// Apply filters and sorts markets in place and returns the result.
func (f Filter) Apply(markets []domain.Market) []domain.Market {
	out := markets[:0]
	q := strings.ToLower(strings.TrimSpace(f.Query))
	for _, m := range markets {
		if f.Category != "" && f.Category != "All" && m.Category != f.Category {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(m.Title), q) {
			continue
		}
		out = append(out, m)
	}

	switch f.Sort {
	case SortNewest:
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	case SortVolume:
		sort.SliceStable(out, func(i, j int) bool {
			return leadingInt(out[i].Volume) > leadingInt(out[j].Volume)
		})
	case SortTrending, "":
		// Most participants first, then volume.
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Participants != out[j].Participants {
				return out[i].Participants > out[j].Participants
			}
			return leadingInt(out[i].Volume) > leadingInt(out[j].Volume)
		})
	}
	return out
}

// leadingInt reads the integer prefix of s ("12k" is 12, "abc" is 0).
func leadingInt(s string) int64 {
	s = strings.TrimSpace(s)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg, s = true, s[1:]
	}
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int64(r-'0')
	}
	if neg {
		return -n
	}
	return n
}
