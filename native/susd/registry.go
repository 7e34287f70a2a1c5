package susd

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is the append-only collateral asset set, built exactly once at
// engine construction and read-only thereafter. Iteration order is the
// registration order.
type Registry struct {
	order  []common.Address
	assets map[common.Address]CollateralAsset
}

// NewRegistry builds the registry from the provided entries. Duplicate
// assets, nil feeds, and nil ledgers are rejected.
func NewRegistry(entries ...CollateralAsset) (*Registry, error) {
	reg := &Registry{assets: make(map[common.Address]CollateralAsset, len(entries))}
	for _, entry := range entries {
		if entry.Address == (common.Address{}) {
			return nil, errors.New("susd engine: collateral token address required")
		}
		if entry.Feed == nil {
			return nil, errors.New("susd engine: price feed required for " + entry.Address.Hex())
		}
		if entry.Ledger == nil {
			return nil, errors.New("susd engine: token ledger required for " + entry.Address.Hex())
		}
		if entry.Heartbeat <= 0 {
			return nil, errors.New("susd engine: heartbeat required for " + entry.Address.Hex())
		}
		if _, exists := reg.assets[entry.Address]; exists {
			return nil, &AlreadyRegisteredError{Asset: entry.Address}
		}
		reg.assets[entry.Address] = entry
		reg.order = append(reg.order, entry.Address)
	}
	return reg, nil
}

// Asset looks up a registry entry by token address.
func (r *Registry) Asset(addr common.Address) (CollateralAsset, bool) {
	if r == nil {
		return CollateralAsset{}, false
	}
	entry, ok := r.assets[addr]
	return entry, ok
}

// Assets returns the entries in registration order.
func (r *Registry) Assets() []CollateralAsset {
	if r == nil {
		return nil
	}
	out := make([]CollateralAsset, 0, len(r.order))
	for _, addr := range r.order {
		out = append(out, r.assets[addr])
	}
	return out
}

// Len returns the number of registered assets.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
