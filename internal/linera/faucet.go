package linera

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/alanyoungcy/truemarket/internal/domain"
)

// DefaultFaucetURL is the public testnet faucet.
const DefaultFaucetURL = "https://faucet.testnet-conway.linera.net"

// Faucet is a client for the Linera faucet service.
type Faucet struct {
	url        string
	httpClient *http.Client
}

// CreateWallet fetches the network genesis configuration and wraps it in a
// fresh wallet with no chains.
func (f *Faucet) CreateWallet(ctx context.Context) (*domain.Wallet, error) {
	data, err := doQuery(ctx, f.httpClient, f.url, "query { genesisConfig }")
	if err != nil {
		return nil, fmt.Errorf("linera/faucet: create wallet: %w", err)
	}
	genesis := gjson.GetBytes(data, "genesisConfig")
	if !genesis.Exists() {
		return nil, fmt.Errorf("linera/faucet: create wallet: %w: missing genesisConfig", domain.ErrMalformedResponse)
	}
	return &domain.Wallet{Genesis: json.RawMessage(genesis.Raw)}, nil
}

// ClaimChain asks the faucet for a chain owned by owner and records it as the
// wallet's default chain.
func (f *Faucet) ClaimChain(ctx context.Context, wallet *domain.Wallet, owner string) (string, error) {
	q := fmt.Sprintf(`mutation { claim(owner: %q) }`, owner)
	data, err := doQuery(ctx, f.httpClient, f.url, q)
	if err != nil {
		return "", fmt.Errorf("linera/faucet: %w: %w", domain.ErrChainClaimFailed, err)
	}

	chainID := claimedChainID(gjson.GetBytes(data, "claim"))
	if chainID == "" {
		return "", fmt.Errorf("linera/faucet: %w: no chain id in %s", domain.ErrChainClaimFailed, string(data))
	}

	wallet.Owner = owner
	wallet.DefaultChain = chainID
	return chainID, nil
}

// claimedChainID accepts the claim result shapes faucet versions return: a
// bare chain id, an outcome object with chainId, or a chain description.
func claimedChainID(claim gjson.Result) string {
	switch {
	case claim.Type == gjson.String:
		return claim.String()
	case claim.Get("chainId").Exists():
		return claim.Get("chainId").String()
	case claim.Get("id").Exists():
		return claim.Get("id").String()
	}
	return ""
}

var _ domain.Faucet = (*Faucet)(nil)
