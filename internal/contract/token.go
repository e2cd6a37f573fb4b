package contract

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// Token is a proxy for the fungible token application.
type Token struct {
	*Proxy
}

// NewToken creates a token proxy.
func NewToken(appID string, session SessionSource) *Token {
	return &Token{Proxy: NewProxy(appID, session)}
}

// Balance returns owner's balance. An account the application has never seen
// reads as zero.
func (t *Token) Balance(ctx context.Context, owner string) (domain.Amount, error) {
	resp, err := t.Query(ctx, fmt.Sprintf(`{ balance(owner: %q) }`, owner))
	if err != nil {
		return domain.Amount{}, err
	}
	v := resp.Data("balance")
	if !v.Exists() || v.Type == gjson.Null {
		return domain.ZeroAmount(), nil
	}
	amt, err := domain.ParseHumanAmount(v.String())
	if err != nil {
		return domain.Amount{}, fmt.Errorf("contract: balance: %w: %w", domain.ErrMalformedResponse, err)
	}
	return amt, nil
}

// Mint credits amount to owner.
func (t *Token) Mint(ctx context.Context, owner string, amount domain.Amount) error {
	_, err := t.Mutate(ctx, fmt.Sprintf(`mint(owner: %q, amount: %q)`, owner, amount.Human()))
	return err
}

// Transfer moves amount from owner to targetOwner on targetChain.
func (t *Token) Transfer(ctx context.Context, owner string, amount domain.Amount, targetChain, targetOwner string) error {
	body := fmt.Sprintf(`transfer(owner: %q, amount: %q, targetAccount: { chainId: %q, owner: %q })`,
		owner, amount.Human(), targetChain, targetOwner)
	_, err := t.Mutate(ctx, body)
	return err
}
