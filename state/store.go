package state

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Store is the in-memory world state shared by the token ledgers and the
// issuance engine: per-token balances and supplies plus per-user collateral
// and minted-debt bookkeeping. Every mutation is journaled so a caller can
// take a snapshot before a compound operation and revert to it when any step
// fails, leaving no partial effect behind.
//
// The store performs no locking of its own. The engine's entry-point guard
// serializes all writers.
type Store struct {
	balances   map[common.Address]map[common.Address]*uint256.Int
	supplies   map[common.Address]*uint256.Int
	collateral map[common.Address]map[common.Address]*big.Int
	debt       map[common.Address]*big.Int

	journal []func()
}

// NewStore constructs an empty world state.
func NewStore() *Store {
	return &Store{
		balances:   make(map[common.Address]map[common.Address]*uint256.Int),
		supplies:   make(map[common.Address]*uint256.Int),
		collateral: make(map[common.Address]map[common.Address]*big.Int),
		debt:       make(map[common.Address]*big.Int),
	}
}

// Snapshot returns an identifier for the current journal position.
func (s *Store) Snapshot() int {
	return len(s.journal)
}

// RevertToSnapshot unwinds every mutation recorded after the snapshot was
// taken, most recent first.
func (s *Store) RevertToSnapshot(id int) {
	if id < 0 || id > len(s.journal) {
		return
	}
	for i := len(s.journal) - 1; i >= id; i-- {
		s.journal[i]()
	}
	s.journal = s.journal[:id]
}

// DiscardSnapshot drops journal entries recorded before the snapshot once the
// surrounding operation has committed. Keeping the journal bounded avoids
// unbounded growth across the process lifetime.
func (s *Store) DiscardSnapshot(id int) {
	if id != 0 || len(s.journal) == 0 {
		return
	}
	s.journal = s.journal[:0]
}

// Balance returns a copy of the holder's balance for the given token.
func (s *Store) Balance(token, holder common.Address) *uint256.Int {
	holders, ok := s.balances[token]
	if !ok {
		return uint256.NewInt(0)
	}
	bal, ok := holders[holder]
	if !ok {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(bal)
}

// SetBalance records the holder's balance for the given token.
func (s *Store) SetBalance(token, holder common.Address, amount *uint256.Int) {
	holders, ok := s.balances[token]
	if !ok {
		holders = make(map[common.Address]*uint256.Int)
		s.balances[token] = holders
	}
	prev, existed := holders[holder]
	s.journal = append(s.journal, func() {
		if existed {
			holders[holder] = prev
		} else {
			delete(holders, holder)
		}
	})
	holders[holder] = new(uint256.Int).Set(amount)
}

// Supply returns a copy of the token's total supply.
func (s *Store) Supply(token common.Address) *uint256.Int {
	supply, ok := s.supplies[token]
	if !ok {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(supply)
}

// SetSupply records the token's total supply.
func (s *Store) SetSupply(token common.Address, amount *uint256.Int) {
	prev, existed := s.supplies[token]
	s.journal = append(s.journal, func() {
		if existed {
			s.supplies[token] = prev
		} else {
			delete(s.supplies, token)
		}
	})
	s.supplies[token] = new(uint256.Int).Set(amount)
}

// Collateral returns a copy of the user's deposited amount for the asset.
func (s *Store) Collateral(user, asset common.Address) *big.Int {
	assets, ok := s.collateral[user]
	if !ok {
		return big.NewInt(0)
	}
	amount, ok := assets[asset]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(amount)
}

// SetCollateral records the user's deposited amount for the asset.
func (s *Store) SetCollateral(user, asset common.Address, amount *big.Int) {
	assets, ok := s.collateral[user]
	if !ok {
		assets = make(map[common.Address]*big.Int)
		s.collateral[user] = assets
	}
	prev, existed := assets[asset]
	s.journal = append(s.journal, func() {
		if existed {
			assets[asset] = prev
		} else {
			delete(assets, asset)
		}
	})
	assets[asset] = new(big.Int).Set(amount)
}

// Debt returns a copy of the user's aggregate minted debt.
func (s *Store) Debt(user common.Address) *big.Int {
	amount, ok := s.debt[user]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(amount)
}

// SetDebt records the user's aggregate minted debt.
func (s *Store) SetDebt(user common.Address, amount *big.Int) {
	prev, existed := s.debt[user]
	s.journal = append(s.journal, func() {
		if existed {
			s.debt[user] = prev
		} else {
			delete(s.debt, user)
		}
	})
	s.debt[user] = new(big.Int).Set(amount)
}
