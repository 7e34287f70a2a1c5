package token

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"stablemint/state"
)

// Ledger is the fungible-token capability the engine consumes for collateral
// assets. Transfers report success as a boolean: a false return is a transfer
// failure and must abort the calling operation. Allowance bookkeeping is out
// of scope, so both pulls and pushes name the debited holder explicitly.
type Ledger interface {
	Transfer(from, to common.Address, amount *big.Int) bool
	BalanceOf(holder common.Address) *big.Int
}

// Issuer extends Ledger with supply mutation restricted to a single
// authority fixed at construction.
type Issuer interface {
	Ledger
	Mint(caller, to common.Address, amount *big.Int) bool
	Burn(caller common.Address, amount *big.Int) bool
	TotalSupply() *big.Int
}

// Token is a fungible ledger token whose balances live in the shared world
// state. Token values are carried as big.Int at the API boundary and stored
// as uint256 so arithmetic matches on-chain word semantics.
type Token struct {
	store    *state.Store
	address  common.Address
	symbol   string
	decimals uint8
}

// NewToken constructs a token bound to the provided store. The address is the
// token's identity within the store; two tokens must not share one.
func NewToken(store *state.Store, address common.Address, symbol string, decimals uint8) *Token {
	return &Token{store: store, address: address, symbol: symbol, decimals: decimals}
}

// Address returns the token's ledger identity.
func (t *Token) Address() common.Address { return t.address }

// Symbol returns the token's display symbol.
func (t *Token) Symbol() string { return t.symbol }

// Decimals returns the token's native decimal precision.
func (t *Token) Decimals() uint8 { return t.decimals }

// BalanceOf returns the holder's balance.
func (t *Token) BalanceOf(holder common.Address) *big.Int {
	if t == nil || t.store == nil {
		return big.NewInt(0)
	}
	return t.store.Balance(t.address, holder).ToBig()
}

// TotalSupply returns the token's total supply.
func (t *Token) TotalSupply() *big.Int {
	if t == nil || t.store == nil {
		return big.NewInt(0)
	}
	return t.store.Supply(t.address).ToBig()
}

// Transfer moves amount from one holder to another. It returns false when the
// amount is not a positive uint256 value or the sender balance is
// insufficient.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) bool {
	if t == nil || t.store == nil {
		return false
	}
	value, ok := toWord(amount)
	if !ok {
		return false
	}
	fromBal := t.store.Balance(t.address, from)
	if fromBal.Lt(value) {
		return false
	}
	toBal := t.store.Balance(t.address, to)
	if _, overflow := new(uint256.Int).AddOverflow(toBal, value); overflow {
		return false
	}
	t.store.SetBalance(t.address, from, new(uint256.Int).Sub(fromBal, value))
	t.store.SetBalance(t.address, to, new(uint256.Int).Add(toBal, value))
	return true
}

func (t *Token) mint(to common.Address, amount *big.Int) bool {
	value, ok := toWord(amount)
	if !ok {
		return false
	}
	supply := t.store.Supply(t.address)
	newSupply, overflow := new(uint256.Int).AddOverflow(supply, value)
	if overflow {
		return false
	}
	balance := t.store.Balance(t.address, to)
	t.store.SetSupply(t.address, newSupply)
	t.store.SetBalance(t.address, to, new(uint256.Int).Add(balance, value))
	return true
}

func (t *Token) burn(from common.Address, amount *big.Int) bool {
	value, ok := toWord(amount)
	if !ok {
		return false
	}
	balance := t.store.Balance(t.address, from)
	if balance.Lt(value) {
		return false
	}
	supply := t.store.Supply(t.address)
	if supply.Lt(value) {
		return false
	}
	t.store.SetBalance(t.address, from, new(uint256.Int).Sub(balance, value))
	t.store.SetSupply(t.address, new(uint256.Int).Sub(supply, value))
	return true
}

// toWord validates that the amount is a positive integer representable in 256
// bits.
func toWord(amount *big.Int) (*uint256.Int, bool) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, false
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, false
	}
	return value, true
}

// DebtToken is the synthetic dollar. Supply mutation is restricted to the
// authority named at construction; the authority cannot be transferred, and
// there is no burn-from-arbitrary-account path.
type DebtToken struct {
	Token
	authority common.Address
}

// NewDebtToken constructs the debt token with its sole minting authority.
func NewDebtToken(store *state.Store, address common.Address, symbol string, decimals uint8, authority common.Address) *DebtToken {
	return &DebtToken{
		Token:     Token{store: store, address: address, symbol: symbol, decimals: decimals},
		authority: authority,
	}
}

// Authority returns the address allowed to mint and burn.
func (d *DebtToken) Authority() common.Address { return d.authority }

// Mint creates amount units for the recipient. Only the authority may mint.
func (d *DebtToken) Mint(caller, to common.Address, amount *big.Int) bool {
	if d == nil || d.store == nil || caller != d.authority {
		return false
	}
	return d.mint(to, amount)
}

// Burn destroys amount units held by the caller's own custody. Only the
// authority may burn, and only from its own balance.
func (d *DebtToken) Burn(caller common.Address, amount *big.Int) bool {
	if d == nil || d.store == nil || caller != d.authority {
		return false
	}
	return d.burn(caller, amount)
}

// Faucet mints collateral test tokens without authority checks. It exists for
// local bootstrap and tests only; the engine never calls it.
type Faucet struct {
	*Token
}

// NewFaucet wraps a token with unrestricted mint access.
func NewFaucet(t *Token) Faucet { return Faucet{Token: t} }

// Mint credits the recipient with amount units.
func (f Faucet) Mint(to common.Address, amount *big.Int) bool {
	if f.Token == nil || f.store == nil {
		return false
	}
	return f.mint(to, amount)
}
