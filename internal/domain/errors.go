package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrChainUnavailable  = errors.New("chain client unavailable")
	ErrNotReady          = errors.New("chain client not ready")
	ErrNotConnected      = errors.New("wallet not connected")
	ErrSignerRejected    = errors.New("signer rejected request")
	ErrUnknownOwner      = errors.New("signer does not hold key for owner")
	ErrChainClaimFailed  = errors.New("chain claim failed")
	ErrAppNotInitialized = errors.New("application not initialized on chain")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrActionInFlight    = errors.New("action already in progress")
	ErrSellUnsupported   = errors.New("selling is not supported")
	ErrViewUnmounted     = errors.New("view unmounted")
	ErrMalformedResponse = errors.New("malformed application response")
	ErrWSDisconnect      = errors.New("websocket disconnected")
	ErrAssistantDisabled = errors.New("chat assistant disabled")
)
