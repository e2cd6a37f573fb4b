package domain

import (
	"fmt"
	"strings"
	"time"
)

// TradeSide is the direction of a trade intent.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
)

// TradeIntent is transient ticket state: which outcome and how much, as the
// user typed it.
type TradeIntent struct {
	Side    TradeSide `json:"side"`
	Outcome string    `json:"outcome"` // "yes" or "no"
	Amount  string    `json:"amount"`
}

// ValidatedIntent is a TradeIntent that passed Validate.
type ValidatedIntent struct {
	Side      TradeSide
	OutcomeID uint32
	Value     Amount
}

// Validate checks the intent against the current balance: amount must be
// present, positive, representable, and not exceed balance.
func (t TradeIntent) Validate(balance Amount) (ValidatedIntent, error) {
	side := t.Side
	if side == "" {
		side = TradeSideBuy
	}
	if side == TradeSideSell {
		return ValidatedIntent{}, ErrSellUnsupported
	}
	if side != TradeSideBuy {
		return ValidatedIntent{}, fmt.Errorf("unknown trade side %q", t.Side)
	}

	var outcome uint32
	switch strings.ToLower(strings.TrimSpace(t.Outcome)) {
	case "yes", "", "0":
		outcome = OutcomeYes
	case "no", "1":
		outcome = OutcomeNo
	default:
		return ValidatedIntent{}, fmt.Errorf("unknown outcome %q", t.Outcome)
	}

	value, err := ParseHumanAmount(t.Amount)
	if err != nil {
		return ValidatedIntent{}, err
	}
	if value.IsZero() {
		return ValidatedIntent{}, fmt.Errorf("%w: amount must be greater than zero", ErrInvalidAmount)
	}
	if value.Cmp(balance) > 0 {
		return ValidatedIntent{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientFunds, balance.Human(), value.Human())
	}

	return ValidatedIntent{Side: side, OutcomeID: outcome, Value: value}, nil
}

// TradeRecord is a persisted, executed trade.
type TradeRecord struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	ChainID   string    `json:"chain_id"`
	MarketID  uint64    `json:"market_id"`
	OutcomeID uint32    `json:"outcome_id"`
	Side      TradeSide `json:"side"`
	Value     Amount    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}
