package leaderboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

func TestDefaultBoard(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "szn2", b.DefaultSeason())
	assert.Equal(t, []string{"szn2", "szn1"}, b.Seasons())

	entries, err := b.Standings("", "")
	require.NoError(t, err)
	require.Len(t, entries, 7)
	assert.Equal(t, "Ari_Defi", entries[0].Username)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Rank)
	}
}

func TestStandings_Search(t *testing.T) {
	b, err := Default()
	require.NoError(t, err)

	entries, err := b.Standings("SZN1", "0X")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2, entries[0].Rank)
	assert.Equal(t, 5, entries[1].Rank)

	_, err = b.Standings("szn9", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDecode_SortsByRank(t *testing.T) {
	doc := `{"default":"s","seasons":{"s":[{"rank":2,"username":"b"},{"rank":1,"username":"a"}]}}`
	b, err := Decode(strings.NewReader(doc))
	require.NoError(t, err)
	entries, _ := b.Standings("s", "")
	assert.Equal(t, "a", entries[0].Username)

	_, err = Decode(strings.NewReader(`{"default":"x","seasons":{}}`))
	assert.Error(t, err)
}
