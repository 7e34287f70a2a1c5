package susd

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// The engine's failure modes form a closed set. Every failure aborts the
// whole operation with no partial effect; callers resubmit after conditions
// change. Errors that need diagnostic context wrap a sentinel so both
// errors.Is and errors.As work.
var (
	ErrInvalidAmount            = errors.New("susd engine: amount must be positive")
	ErrAssetNotRegistered       = errors.New("susd engine: collateral asset not registered")
	ErrCollateralAlreadySet     = errors.New("susd engine: collateral asset already registered")
	ErrTransferFailed           = errors.New("susd engine: token transfer failed")
	ErrMintFailed               = errors.New("susd engine: debt token mint failed")
	ErrBurnFailed               = errors.New("susd engine: debt token burn failed")
	ErrBrokenHealthFactor       = errors.New("susd engine: health factor below minimum")
	ErrGoodHealthFactor         = errors.New("susd engine: target health factor not below minimum")
	ErrExcessDebtToCover        = errors.New("susd engine: amount exceeds outstanding debt")
	ErrExcessCollateralToRedeem = errors.New("susd engine: amount exceeds deposited collateral")
	ErrNotImprovedHealthFactor  = errors.New("susd engine: liquidation did not improve health factor")
	ErrReentrantCall            = errors.New("susd engine: reentrant call rejected")
)

// NotRegisteredError names the asset that failed the registry lookup.
type NotRegisteredError struct {
	Asset common.Address
}

func (e *NotRegisteredError) Error() string {
	return fmt.Sprintf("susd engine: collateral asset %s not registered", e.Asset.Hex())
}

func (e *NotRegisteredError) Unwrap() error { return ErrAssetNotRegistered }

// AlreadyRegisteredError names the duplicate asset rejected at construction.
type AlreadyRegisteredError struct {
	Asset common.Address
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("susd engine: collateral asset %s already registered", e.Asset.Hex())
}

func (e *AlreadyRegisteredError) Unwrap() error { return ErrCollateralAlreadySet }

// HealthFactorError reports the computed factor that broke the solvency
// requirement, so callers and tests can assert on the exact value.
type HealthFactorError struct {
	User   common.Address
	Factor *big.Int
}

func (e *HealthFactorError) Error() string {
	return fmt.Sprintf("susd engine: health factor %s of %s below minimum", e.Factor, e.User.Hex())
}

func (e *HealthFactorError) Unwrap() error { return ErrBrokenHealthFactor }
