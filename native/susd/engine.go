package susd

import (
	"errors"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"stablemint/oracle"
	"stablemint/state"
	"stablemint/token"
)

// Engine orchestrates the collateral ledger, the debt token, and the oracle
// validator into invariant-checked compound operations. It is the sole
// writer of the ledger: deposits, mints, burns, redemptions, and
// liquidations all pass through it.
//
// Each state-mutating entry point holds a process-wide guard for its
// duration and rejects any call attempted while the guard is held, so a
// token or feed that calls back into the engine mid-update fails instead of
// observing half-applied state. Within an operation, ledger and debt
// bookkeeping are updated before external transfers are issued and solvency
// is checked after; a failure at any step reverts the world state to the
// snapshot taken at entry.
type Engine struct {
	store         *state.Store
	registry      *Registry
	debt          token.Issuer
	validator     *oracle.Validator
	moduleAddress common.Address

	entered atomic.Bool
}

// NewEngine wires the engine to its collaborators. The module address is the
// engine's custody account on every token ledger and must match the debt
// token's minting authority.
func NewEngine(moduleAddr common.Address, registry *Registry, debt token.Issuer, validator *oracle.Validator, store *state.Store) (*Engine, error) {
	if moduleAddr == (common.Address{}) {
		return nil, errors.New("susd engine: module address required")
	}
	if registry == nil || registry.Len() == 0 {
		return nil, errors.New("susd engine: collateral registry required")
	}
	if debt == nil {
		return nil, errors.New("susd engine: debt token required")
	}
	if validator == nil {
		return nil, errors.New("susd engine: oracle validator required")
	}
	if store == nil {
		return nil, errors.New("susd engine: state store required")
	}
	return &Engine{
		store:         store,
		registry:      registry,
		debt:          debt,
		validator:     validator,
		moduleAddress: moduleAddr,
	}, nil
}

// ModuleAddress returns the engine's custody account.
func (e *Engine) ModuleAddress() common.Address { return e.moduleAddress }

// Registry returns the immutable collateral asset set.
func (e *Engine) Registry() *Registry { return e.registry }

// locked serializes a mutating operation behind the reentrancy guard and
// gives it all-or-nothing semantics against the world state.
func (e *Engine) locked(fn func() error) error {
	if !e.entered.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	defer e.entered.Store(false)

	snap := e.store.Snapshot()
	if err := fn(); err != nil {
		e.store.RevertToSnapshot(snap)
		return err
	}
	e.store.DiscardSnapshot(snap)
	return nil
}

// Deposit pulls amount of the asset token from the user into engine custody
// and credits the user's ledger entry. Collateral only increases, so no
// solvency check is needed.
func (e *Engine) Deposit(user, asset common.Address, amount *big.Int) error {
	return e.locked(func() error {
		return e.deposit(user, asset, amount)
	})
}

// Mint issues amount units of debt to the user after verifying the resulting
// health factor.
func (e *Engine) Mint(user common.Address, amount *big.Int) error {
	return e.locked(func() error {
		return e.mint(user, amount)
	})
}

// DepositAndMint composes Deposit and Mint; failure of either step undoes
// both.
func (e *Engine) DepositAndMint(user, asset common.Address, amount, mintAmount *big.Int) error {
	return e.locked(func() error {
		if err := e.deposit(user, asset, amount); err != nil {
			return err
		}
		return e.mint(user, mintAmount)
	})
}

// Burn retires amount of the user's own debt using debt tokens pulled from
// the user. Burning cannot break solvency.
func (e *Engine) Burn(user common.Address, amount *big.Int) error {
	return e.locked(func() error {
		return e.burn(user, user, amount)
	})
}

// Redeem releases amount of the asset from the user's ledger entry back to
// the user, then requires the user's remaining position to stay solvent.
func (e *Engine) Redeem(user, asset common.Address, amount *big.Int) error {
	return e.locked(func() error {
		if err := e.redeem(asset, amount, user, user); err != nil {
			return err
		}
		return e.requireSolvent(user)
	})
}

// RedeemForDebt burns debt and releases collateral in one operation with a
// single solvency check at the end.
func (e *Engine) RedeemForDebt(user, asset common.Address, amount, burnAmount *big.Int) error {
	return e.locked(func() error {
		if err := e.burn(user, user, burnAmount); err != nil {
			return err
		}
		if err := e.redeem(asset, amount, user, user); err != nil {
			return err
		}
		return e.requireSolvent(user)
	})
}

// Liquidate lets a third party cover part of an insolvent target's debt in
// exchange for the equivalent collateral plus the liquidation bonus. The
// operation either completes in full or leaves no trace; no partial
// liquidation persists.
func (e *Engine) Liquidate(liquidator, target, asset common.Address, debtToCover *big.Int) (*big.Int, error) {
	var seized *big.Int
	err := e.locked(func() error {
		var err error
		seized, err = e.liquidate(liquidator, target, asset, debtToCover)
		return err
	})
	if err != nil {
		return nil, err
	}
	return seized, nil
}

func (e *Engine) deposit(user, asset common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	entry, ok := e.registry.Asset(asset)
	if !ok {
		return &NotRegisteredError{Asset: asset}
	}

	balance := e.store.Collateral(user, asset)
	e.store.SetCollateral(user, asset, new(big.Int).Add(balance, amount))

	if !entry.Ledger.Transfer(user, e.moduleAddress, amount) {
		return ErrTransferFailed
	}
	return nil
}

func (e *Engine) mint(user common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	// Debt is incremented before the solvency check so the check sees the
	// projected position.
	debt := e.store.Debt(user)
	e.store.SetDebt(user, new(big.Int).Add(debt, amount))

	if err := e.requireSolvent(user); err != nil {
		return err
	}

	if !e.debt.Mint(e.moduleAddress, user, amount) {
		return ErrMintFailed
	}
	return nil
}

// burn retires onBehalfOf's debt using tokens pulled from payer. The two
// differ during liquidation.
func (e *Engine) burn(onBehalfOf, payer common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	debt := e.store.Debt(onBehalfOf)
	if amount.Cmp(debt) > 0 {
		return ErrExcessDebtToCover
	}
	e.store.SetDebt(onBehalfOf, new(big.Int).Sub(debt, amount))

	if !e.debt.Transfer(payer, e.moduleAddress, amount) {
		return ErrTransferFailed
	}
	if !e.debt.Burn(e.moduleAddress, amount) {
		return ErrBurnFailed
	}
	return nil
}

// redeem releases collateral from redeemFrom's ledger entry to redeemTo.
// Callers are responsible for any post-operation solvency check.
func (e *Engine) redeem(asset common.Address, amount *big.Int, redeemFrom, redeemTo common.Address) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	entry, ok := e.registry.Asset(asset)
	if !ok {
		return &NotRegisteredError{Asset: asset}
	}
	balance := e.store.Collateral(redeemFrom, asset)
	if amount.Cmp(balance) > 0 {
		return ErrExcessCollateralToRedeem
	}
	e.store.SetCollateral(redeemFrom, asset, new(big.Int).Sub(balance, amount))

	if !entry.Ledger.Transfer(e.moduleAddress, redeemTo, amount) {
		return ErrTransferFailed
	}
	return nil
}

func (e *Engine) liquidate(liquidator, target, asset common.Address, debtToCover *big.Int) (*big.Int, error) {
	if debtToCover == nil || debtToCover.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	entry, ok := e.registry.Asset(asset)
	if !ok {
		return nil, &NotRegisteredError{Asset: asset}
	}

	startFactor, err := e.healthFactorOf(target)
	if err != nil {
		return nil, err
	}
	if startFactor.Cmp(minHealthFactor) >= 0 {
		return nil, ErrGoodHealthFactor
	}
	if debtToCover.Cmp(e.store.Debt(target)) > 0 {
		return nil, ErrExcessDebtToCover
	}

	price, err := e.validator.Price(entry.Feed, entry.Heartbeat)
	if err != nil {
		return nil, err
	}
	equivalent := tokenAmountFromUSD(price, entry.Feed.Decimals(), entry.Decimals, debtToCover)
	seized := bonusCollateral(equivalent)
	if seized.Cmp(e.store.Collateral(target, asset)) > 0 {
		return nil, ErrExcessCollateralToRedeem
	}

	if err := e.burn(target, liquidator, debtToCover); err != nil {
		return nil, err
	}
	if err := e.redeem(asset, seized, target, liquidator); err != nil {
		return nil, err
	}

	endFactor, err := e.healthFactorOf(target)
	if err != nil {
		return nil, err
	}
	if endFactor.Cmp(startFactor) <= 0 {
		return nil, ErrNotImprovedHealthFactor
	}
	if err := e.requireSolvent(liquidator); err != nil {
		return nil, err
	}
	return seized, nil
}

func (e *Engine) requireSolvent(user common.Address) error {
	factor, err := e.healthFactorOf(user)
	if err != nil {
		return err
	}
	if factor.Cmp(minHealthFactor) < 0 {
		return &HealthFactorError{User: user, Factor: factor}
	}
	return nil
}

func (e *Engine) healthFactorOf(user common.Address) (*big.Int, error) {
	debt := e.store.Debt(user)
	if debt.Sign() == 0 {
		return MaxHealthFactor(), nil
	}
	collateral, err := e.collateralValueOf(user)
	if err != nil {
		return nil, err
	}
	return healthFactor(debt, collateral), nil
}

func (e *Engine) collateralValueOf(user common.Address) (*big.Int, error) {
	total := big.NewInt(0)
	for _, entry := range e.registry.Assets() {
		amount := e.store.Collateral(user, entry.Address)
		if amount.Sign() == 0 {
			continue
		}
		value, err := e.assetUSDValue(entry, amount)
		if err != nil {
			return nil, err
		}
		total.Add(total, value)
	}
	return total, nil
}

func (e *Engine) assetUSDValue(entry CollateralAsset, amount *big.Int) (*big.Int, error) {
	price, err := e.validator.Price(entry.Feed, entry.Heartbeat)
	if err != nil {
		return nil, err
	}
	return usdValue(price, entry.Feed.Decimals(), entry.Decimals, amount), nil
}

// USDValue quotes the 18-decimal USD value of a token amount under the
// current validated price.
func (e *Engine) USDValue(asset common.Address, amount *big.Int) (*big.Int, error) {
	entry, ok := e.registry.Asset(asset)
	if !ok {
		return nil, &NotRegisteredError{Asset: asset}
	}
	return e.assetUSDValue(entry, amount)
}

// TokenAmountFromUSD converts an 18-decimal USD value into the equivalent
// token amount, flooring on division.
func (e *Engine) TokenAmountFromUSD(asset common.Address, usd *big.Int) (*big.Int, error) {
	entry, ok := e.registry.Asset(asset)
	if !ok {
		return nil, &NotRegisteredError{Asset: asset}
	}
	price, err := e.validator.Price(entry.Feed, entry.Heartbeat)
	if err != nil {
		return nil, err
	}
	return tokenAmountFromUSD(price, entry.Feed.Decimals(), entry.Decimals, usd), nil
}

// CollateralOf returns the user's deposited amount for one asset.
func (e *Engine) CollateralOf(user, asset common.Address) *big.Int {
	return e.store.Collateral(user, asset)
}

// DebtOf returns the user's aggregate minted debt.
func (e *Engine) DebtOf(user common.Address) *big.Int {
	return e.store.Debt(user)
}

// HealthFactor computes the user's solvency ratio under current prices.
func (e *Engine) HealthFactor(user common.Address) (*big.Int, error) {
	return e.healthFactorOf(user)
}

// AccountCollateralValue sums the USD value of everything the user has
// deposited.
func (e *Engine) AccountCollateralValue(user common.Address) (*big.Int, error) {
	return e.collateralValueOf(user)
}

// PositionOf assembles the read model for one user.
func (e *Engine) PositionOf(user common.Address) (Position, error) {
	pos := Position{User: user, Debt: e.store.Debt(user)}
	for _, entry := range e.registry.Assets() {
		amount := e.store.Collateral(user, entry.Address)
		if amount.Sign() == 0 {
			continue
		}
		pos.Collateral = append(pos.Collateral, CollateralBalance{
			Asset:   entry.Address,
			Symbol:  entry.Symbol,
			Amount:  amount,
			Decimal: entry.Decimals,
		})
	}
	factor, err := e.healthFactorOf(user)
	if err != nil {
		return Position{}, err
	}
	pos.HealthFactor = factor
	return pos, nil
}

// TotalDebtSupply reports the debt token's outstanding supply.
func (e *Engine) TotalDebtSupply() *big.Int {
	return e.debt.TotalSupply()
}
