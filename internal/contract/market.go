package contract

import (
	"context"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// Market is a proxy for the prediction market application. Purchases are
// paid in the token application identified by tokenAppID.
type Market struct {
	*Proxy
	tokenAppID string
}

// NewMarket creates a market proxy.
func NewMarket(appID, tokenAppID string, session SessionSource) *Market {
	return &Market{Proxy: NewProxy(appID, session), tokenAppID: tokenAppID}
}

// Buy spends value on outcomeID of marketID, requiring at least minShares
// outcome shares in return.
func (m *Market) Buy(ctx context.Context, marketID uint64, outcomeID uint32, value, minShares domain.Amount) error {
	body := fmt.Sprintf(`buy(marketId: %d, outcomeId: %d, minOutcomeSharesToBuy: %q, value: %q, token: %q)`,
		marketID, outcomeID, minShares.Atomic(), value.Human(), m.tokenAppID)
	_, err := m.Mutate(ctx, body)
	return err
}

// Sell is not offered by the market application's front end.
func (m *Market) Sell(context.Context, uint64, uint32, domain.Amount) error {
	return fmt.Errorf("contract: sell: %w", domain.ErrSellUnsupported)
}

// MyShares lists the caller's holdings in marketID.
func (m *Market) MyShares(ctx context.Context, marketID uint64) ([]domain.Share, error) {
	resp, err := m.Query(ctx, fmt.Sprintf(`{ myShares(marketId: %d) { marketId amount outcomeId } }`, marketID))
	if err != nil {
		return nil, err
	}

	var shares []domain.Share
	var perr error
	resp.Data("myShares").ForEach(func(_, s gjson.Result) bool {
		amt, err := domain.AmountFromAtomic(s.Get("amount").String())
		if err != nil {
			perr = fmt.Errorf("contract: my shares: %w: %w", domain.ErrMalformedResponse, err)
			return false
		}
		shares = append(shares, domain.Share{
			MarketID:  s.Get("marketId").Uint(),
			OutcomeID: uint32(s.Get("outcomeId").Uint()),
			Amount:    amt,
		})
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return shares, nil
}

// Market fetches the application's record of market id.
func (m *Market) Market(ctx context.Context, id uint64) (domain.OnChainMarket, error) {
	resp, err := m.Query(ctx, fmt.Sprintf(`{ market(id: %d) { id question image outcomeCount state } }`, id))
	if err != nil {
		return domain.OnChainMarket{}, err
	}
	v := resp.Data("market")
	if !v.Exists() || v.Type == gjson.Null {
		return domain.OnChainMarket{}, fmt.Errorf("contract: market %d: %w", id, domain.ErrNotFound)
	}
	var out domain.OnChainMarket
	if err := resp.Decode("data.market", &out); err != nil {
		return domain.OnChainMarket{}, err
	}
	return out, nil
}

// APIVersion returns the application's version string.
func (m *Market) APIVersion(ctx context.Context) (string, error) {
	resp, err := m.Query(ctx, `{ apiVersion }`)
	if err != nil {
		return "", err
	}
	return resp.Data("apiVersion").String(), nil
}
