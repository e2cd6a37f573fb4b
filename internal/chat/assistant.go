// Package chat is the market assistant: a Gemini-backed chatbot whose system
// prompt carries the live market catalog.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// Roles of a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// maxTurns caps how much history is forwarded to the model.
const maxTurns = 20

// ErrInvalidHistory reports a conversation the assistant cannot answer.
var ErrInvalidHistory = errors.New("chat: invalid conversation")

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces the next assistant turn.
type Generator interface {
	Generate(ctx context.Context, system string, history []Message) (string, error)
}

// MarketSource lists the markets the assistant may discuss.
type MarketSource interface {
	All() []domain.Market
}

// Assistant answers questions about the catalog.
type Assistant struct {
	gen     Generator
	markets MarketSource
	logger  *slog.Logger
}

// NewAssistant creates an Assistant. A nil gen disables it.
func NewAssistant(gen Generator, markets MarketSource, logger *slog.Logger) *Assistant {
	return &Assistant{
		gen:     gen,
		markets: markets,
		logger:  logger.With(slog.String("component", "chat")),
	}
}

// Enabled reports whether a model is configured.
func (a *Assistant) Enabled() bool { return a.gen != nil }

// Reply returns the assistant's answer to the conversation so far. The last
// message must be from the user.
func (a *Assistant) Reply(ctx context.Context, history []Message) (Message, error) {
	if a.gen == nil {
		return Message{}, domain.ErrAssistantDisabled
	}
	if len(history) == 0 {
		return Message{}, fmt.Errorf("%w: empty", ErrInvalidHistory)
	}
	if last := history[len(history)-1]; last.Role != RoleUser || strings.TrimSpace(last.Content) == "" {
		return Message{}, fmt.Errorf("%w: last message must be a non-empty user message", ErrInvalidHistory)
	}
	for _, m := range history {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return Message{}, fmt.Errorf("%w: unknown role %q", ErrInvalidHistory, m.Role)
		}
	}
	if len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}

	text, err := a.gen.Generate(ctx, SystemPrompt(a.markets.All()), history)
	if err != nil {
		a.logger.ErrorContext(ctx, "generate failed", slog.String("error", err.Error()))
		return Message{}, fmt.Errorf("chat: generate: %w", err)
	}
	return Message{Role: RoleAssistant, Content: strings.TrimSpace(text)}, nil
}

// promptMarket is the subset of a market shown to the model.
type promptMarket struct {
	ID            uint64 `json:"market_id"`
	Title         string `json:"market_title"`
	Category      string `json:"category"`
	OutcomeA      string `json:"outcome_a"`
	OutcomeB      string `json:"outcome_b"`
	YesPercentage int    `json:"yesPercentage"`
	NoPercentage  int    `json:"noPercentage"`
	Volume        string `json:"volume"`
	Participants  int    `json:"participants"`
	Deadline      string `json:"deadline"`
	Currency      string `json:"currency"`
	Rules         string `json:"market_data"`
}

// SystemPrompt renders the assistant persona and the current markets.
func SystemPrompt(markets []domain.Market) string {
	pm := make([]promptMarket, 0, len(markets))
	for _, m := range markets {
		pm = append(pm, promptMarket{
			ID:            m.ID,
			Title:         m.Title,
			Category:      string(m.Category),
			OutcomeA:      m.OutcomeA,
			OutcomeB:      m.OutcomeB,
			YesPercentage: m.YesPercentage,
			NoPercentage:  m.NoPercentage,
			Volume:        m.Volume,
			Participants:  m.Participants,
			Deadline:      m.Deadline,
			Currency:      m.Currency,
			Rules:         m.MarketData,
		})
	}
	list, _ := json.MarshalIndent(pm, "", "  ")

	var b strings.Builder
	b.WriteString(`You are **True Bot**, the assistant of the **True Markets** prediction platform.

### ROLE
You help users understand prediction markets, explain how outcomes will be
resolved and read YES/NO probabilities. Be concise and factual. Use Markdown.
Never speculate beyond the provided data.

### CURRENT MARKETS
`)
	b.Write(list)
	b.WriteString(`

When a user asks about a market:
1. Match their question to the market_title or keywords.
2. Explain what the market measures and its resolution rules.
3. If probabilities are equal, describe the market as balanced.
4. If data is missing, say so and suggest browsing the markets page.
`)
	return b.String()
}
