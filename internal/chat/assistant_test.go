package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

type stubGen struct {
	system  string
	history []Message
	reply   string
	err     error
}

func (s *stubGen) Generate(_ context.Context, system string, history []Message) (string, error) {
	s.system, s.history = system, history
	return s.reply, s.err
}

type staticMarkets []domain.Market

func (s staticMarkets) All() []domain.Market { return s }

var markets = staticMarkets{{ID: 7, Title: "Gold vs ETH", OutcomeA: "Gold", OutcomeB: "ETH", YesPercentage: 50, NoPercentage: 50}}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestAssistant_Reply(t *testing.T) {
	gen := &stubGen{reply: "  It is **balanced**.  "}
	a := NewAssistant(gen, markets, discard())

	msg, err := a.Reply(context.Background(), []Message{{Role: RoleUser, Content: "Gold or ETH?"}})
	require.NoError(t, err)
	assert.Equal(t, Message{Role: RoleAssistant, Content: "It is **balanced**."}, msg)
	assert.Contains(t, gen.system, `"market_title": "Gold vs ETH"`)
	assert.Contains(t, gen.system, "True Bot")
}

func TestAssistant_Validation(t *testing.T) {
	a := NewAssistant(&stubGen{reply: "x"}, markets, discard())
	ctx := context.Background()

	_, err := a.Reply(ctx, nil)
	assert.ErrorIs(t, err, ErrInvalidHistory)
	_, err = a.Reply(ctx, []Message{{Role: RoleAssistant, Content: "hi"}})
	assert.ErrorIs(t, err, ErrInvalidHistory)
	_, err = a.Reply(ctx, []Message{{Role: "system", Content: "x"}, {Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, ErrInvalidHistory)
	_, err = a.Reply(ctx, []Message{{Role: RoleUser, Content: "   "}})
	assert.ErrorIs(t, err, ErrInvalidHistory)
}

func TestAssistant_TruncatesHistory(t *testing.T) {
	gen := &stubGen{reply: "ok"}
	a := NewAssistant(gen, markets, discard())

	var history []Message
	for i := 0; i < 31; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		history = append(history, Message{Role: role, Content: strings.Repeat("a", i+1)})
	}
	_, err := a.Reply(context.Background(), history)
	require.NoError(t, err)
	require.Len(t, gen.history, maxTurns)
	assert.Equal(t, history[len(history)-1], gen.history[maxTurns-1])
}

func TestAssistant_Disabled(t *testing.T) {
	a := NewAssistant(nil, markets, discard())
	assert.False(t, a.Enabled())
	_, err := a.Reply(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorIs(t, err, domain.ErrAssistantDisabled)
}

func TestAssistant_GeneratorError(t *testing.T) {
	a := NewAssistant(&stubGen{err: errors.New("quota")}, markets, discard())
	_, err := a.Reply(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	assert.ErrorContains(t, err, "quota")
}

func TestToContents(t *testing.T) {
	c := toContents([]Message{{Role: RoleUser, Content: "q"}, {Role: RoleAssistant, Content: "a"}})
	require.Len(t, c, 2)
	assert.Equal(t, genai.Role(genai.RoleUser), genai.Role(c[0].Role))
	assert.Equal(t, genai.Role(genai.RoleModel), genai.Role(c[1].Role))
	assert.Equal(t, "a", c[1].Parts[0].Text)
}

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "")
	assert.Error(t, err)
}
