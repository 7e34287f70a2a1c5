package susd

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stablemint/oracle"
	"stablemint/token"
)

// CollateralAsset is one registry entry. Entries are immutable after the
// registry is built; there is no runtime API to add, remove, or mutate them.
type CollateralAsset struct {
	// Address is the collateral token's ledger identity.
	Address common.Address
	// Symbol is the token's display symbol.
	Symbol string
	// Decimals is the token's native decimal precision.
	Decimals uint8
	// Ledger moves and reports balances for the token.
	Ledger token.Ledger
	// Feed resolves the asset's USD price in the feed's native scale.
	Feed oracle.Feed
	// Heartbeat is the maximum tolerable age of a price reading.
	Heartbeat time.Duration
}

// CollateralBalance pairs an asset with a user's deposited amount.
type CollateralBalance struct {
	Asset   common.Address
	Symbol  string
	Amount  *big.Int
	Decimal uint8
}

// Position is a read-model snapshot of one user's account: per-asset
// deposits, aggregate minted debt, and the health factor under current
// prices.
type Position struct {
	User         common.Address
	Collateral   []CollateralBalance
	Debt         *big.Int
	HealthFactor *big.Int
}
