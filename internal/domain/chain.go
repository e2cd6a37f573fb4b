package domain

import (
	"context"
	"encoding/json"
)

// Wallet is the opaque wallet material a faucet issues to a new user. The
// gateway never inspects Genesis; it is handed back to the chain module when
// a client is constructed.
type Wallet struct {
	Genesis      json.RawMessage `json:"genesis"`
	Owner        string          `json:"owner,omitempty"`
	DefaultChain string          `json:"default_chain,omitempty"`
}

// ChainModule is the loadable chain-client library. Load must succeed before
// Faucet or Client are used.
type ChainModule interface {
	Load(ctx context.Context) error
	Faucet(url string) Faucet
	Client(ctx context.Context, wallet *Wallet, signer Signer, skipInbox bool) (ChainClient, error)
}

// Faucet issues wallets and claims per-user chains.
type Faucet interface {
	CreateWallet(ctx context.Context) (*Wallet, error)
	// ClaimChain requests (or reuses) a chain for owner and returns its id.
	ClaimChain(ctx context.Context, wallet *Wallet, owner string) (string, error)
}

// ChainClient is a client bound to one wallet, signer and chain.
type ChainClient interface {
	ChainID() string
	Application(ctx context.Context, appID string) (Application, error)
	// Notifications opens the client's notification stream. The channel is
	// closed when ctx is cancelled or the client is closed.
	Notifications(ctx context.Context) (<-chan Notification, error)
	Close() error
}

// Application is a handle to one deployed application on the client's chain.
// Query returns either a raw JSON string or an already decoded value,
// depending on the transport; callers normalise the result.
type Application interface {
	ID() string
	Query(ctx context.Context, payload string) (any, error)
}

// Signer holds the user's key. Owners are 0x-prefixed hex addresses.
type Signer interface {
	Address(ctx context.Context) (string, error)
	Sign(ctx context.Context, owner string, msg []byte) (string, error)
	ContainsKey(ctx context.Context, owner string) (bool, error)
}
