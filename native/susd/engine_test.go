package susd

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stablemint/oracle"
	"stablemint/state"
	"stablemint/token"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func makeAddress(b byte) common.Address {
	var a common.Address
	a[common.AddressLength-1] = b
	return a
}

type fixture struct {
	store    *state.Store
	engine   *Engine
	weth     *token.Token
	wbtc     *token.Token
	susd     *token.DebtToken
	wethFeed *oracle.ManualFeed
	wbtcFeed *oracle.ManualFeed

	module common.Address
}

func feedPrice(dollars int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(dollars), pow10(8))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := state.NewStore()
	module := makeAddress(0x01)

	weth := token.NewToken(store, makeAddress(0x02), "WETH", 18)
	wbtc := token.NewToken(store, makeAddress(0x03), "WBTC", 8)
	susd := token.NewDebtToken(store, makeAddress(0x04), "SUSD", 18, module)

	wethFeed := oracle.NewManualFeed(8)
	wethFeed.SetAnswer(feedPrice(3000), testNow)
	wbtcFeed := oracle.NewManualFeed(8)
	wbtcFeed.SetAnswer(feedPrice(60_000), testNow)

	validator := oracle.NewValidator(nil, 0).WithClock(func() time.Time { return testNow })

	reg, err := NewRegistry(
		CollateralAsset{Address: weth.Address(), Symbol: "WETH", Decimals: 18, Ledger: weth, Feed: wethFeed, Heartbeat: 3 * time.Hour},
		CollateralAsset{Address: wbtc.Address(), Symbol: "WBTC", Decimals: 8, Ledger: wbtc, Feed: wbtcFeed, Heartbeat: 3 * time.Hour},
	)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}

	engine, err := NewEngine(module, reg, susd, validator, store)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return &fixture{
		store:    store,
		engine:   engine,
		weth:     weth,
		wbtc:     wbtc,
		susd:     susd,
		wethFeed: wethFeed,
		wbtcFeed: wbtcFeed,
		module:   module,
	}
}

func (f *fixture) fund(t *testing.T, user common.Address, wethUnits int64) {
	t.Helper()
	if !token.NewFaucet(f.weth).Mint(user, eth(wethUnits)) {
		t.Fatal("faucet mint failed")
	}
}

func (f *fixture) custodyMatchesLedger(t *testing.T, users ...common.Address) {
	t.Helper()
	for _, asset := range []*token.Token{f.weth, f.wbtc} {
		total := big.NewInt(0)
		for _, user := range users {
			total.Add(total, f.engine.CollateralOf(user, asset.Address()))
		}
		if custody := asset.BalanceOf(f.module); custody.Cmp(total) != 0 {
			t.Fatalf("%s custody %s != ledger sum %s", asset.Symbol(), custody, total)
		}
	}
}

func TestDepositValidation(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, 10)

	if err := f.engine.Deposit(user, f.weth.Address(), big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero deposit: %v", err)
	}
	if err := f.engine.Deposit(user, f.weth.Address(), nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("nil deposit: %v", err)
	}
	err := f.engine.Deposit(user, makeAddress(0x99), eth(1))
	if !errors.Is(err, ErrAssetNotRegistered) {
		t.Fatalf("unregistered deposit: %v", err)
	}
	var notReg *NotRegisteredError
	if !errors.As(err, &notReg) || notReg.Asset != makeAddress(0x99) {
		t.Fatalf("error missing asset context: %v", err)
	}
}

func TestDepositMovesTokensIntoCustody(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, 10)

	if err := f.engine.Deposit(user, f.weth.Address(), eth(4)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := f.engine.CollateralOf(user, f.weth.Address()); got.Cmp(eth(4)) != 0 {
		t.Fatalf("ledger entry: %s", got)
	}
	if got := f.weth.BalanceOf(user); got.Cmp(eth(6)) != 0 {
		t.Fatalf("user balance: %s", got)
	}
	f.custodyMatchesLedger(t, user)
}

func TestDepositRevertsOnTransferFailure(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	// No faucet funding: the pull must fail and the ledger increment must
	// not survive.
	if err := f.engine.Deposit(user, f.weth.Address(), eth(1)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if got := f.engine.CollateralOf(user, f.weth.Address()); got.Sign() != 0 {
		t.Fatalf("ledger not reverted: %s", got)
	}
}

func TestMintBoundaryHealthFactor(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, 10)
	if err := f.engine.Deposit(user, f.weth.Address(), eth(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	// $30,000 collateral allows exactly $15,000 of debt.
	limit := eth(15_000)
	if err := f.engine.Mint(user, limit); err != nil {
		t.Fatalf("mint at boundary: %v", err)
	}
	factor, err := f.engine.HealthFactor(user)
	if err != nil {
		t.Fatalf("health factor: %v", err)
	}
	if factor.Cmp(MinHealthFactor()) != 0 {
		t.Fatalf("boundary factor = %s", factor)
	}
	if got := f.susd.BalanceOf(user); got.Cmp(limit) != 0 {
		t.Fatalf("debt token balance: %s", got)
	}

	// One more wei breaks solvency, and the debt increment is undone.
	err = f.engine.Mint(user, big.NewInt(1))
	if !errors.Is(err, ErrBrokenHealthFactor) {
		t.Fatalf("expected ErrBrokenHealthFactor, got %v", err)
	}
	var hfErr *HealthFactorError
	if !errors.As(err, &hfErr) {
		t.Fatalf("error missing context: %v", err)
	}
	if hfErr.User != user || hfErr.Factor.Cmp(MinHealthFactor()) >= 0 {
		t.Fatalf("unexpected context: user=%s factor=%s", hfErr.User.Hex(), hfErr.Factor)
	}
	if got := f.engine.DebtOf(user); got.Cmp(limit) != 0 {
		t.Fatalf("debt not reverted: %s", got)
	}
	if got := f.engine.TotalDebtSupply(); got.Cmp(limit) != 0 {
		t.Fatalf("supply drifted: %s", got)
	}
}

func TestMintFailsClosedOnStalePrice(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, 10)
	if err := f.engine.Deposit(user, f.weth.Address(), eth(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	f.wethFeed.SetAnswer(feedPrice(3000), testNow.Add(-4*time.Hour))
	err := f.engine.Mint(user, eth(1))
	if !errors.Is(err, oracle.ErrStalePrice) {
		t.Fatalf("expected ErrStalePrice, got %v", err)
	}
	if got := f.engine.DebtOf(user); got.Sign() != 0 {
		t.Fatalf("debt not reverted: %s", got)
	}
}

func TestDepositAndMintIsAtomic(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, 10)

	// Minting far beyond the threshold fails, and the deposit leg must be
	// undone with it.
	err := f.engine.DepositAndMint(user, f.weth.Address(), eth(10), eth(20_000))
	if !errors.Is(err, ErrBrokenHealthFactor) {
		t.Fatalf("expected ErrBrokenHealthFactor, got %v", err)
	}
	if got := f.weth.BalanceOf(user); got.Cmp(eth(10)) != 0 {
		t.Fatalf("deposit not reverted: %s", got)
	}
	if got := f.engine.CollateralOf(user, f.weth.Address()); got.Sign() != 0 {
		t.Fatalf("ledger not reverted: %s", got)
	}
	if got := f.engine.DebtOf(user); got.Sign() != 0 {
		t.Fatalf("debt not reverted: %s", got)
	}

	if err := f.engine.DepositAndMint(user, f.weth.Address(), eth(10), eth(100)); err != nil {
		t.Fatalf("deposit and mint: %v", err)
	}
	if got := f.susd.BalanceOf(user); got.Cmp(eth(100)) != 0 {
		t.Fatalf("debt token balance: %s", got)
	}
	f.custodyMatchesLedger(t, user)
}

func TestBurnReducesDebt(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, 10)
	if err := f.engine.DepositAndMint(user, f.weth.Address(), eth(10), eth(100)); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := f.engine.Burn(user, eth(40)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := f.engine.DebtOf(user); got.Cmp(eth(60)) != 0 {
		t.Fatalf("debt: %s", got)
	}
	if got := f.engine.TotalDebtSupply(); got.Cmp(eth(60)) != 0 {
		t.Fatalf("supply: %s", got)
	}

	if err := f.engine.Burn(user, eth(100)); !errors.Is(err, ErrExcessDebtToCover) {
		t.Fatalf("over-burn: %v", err)
	}
	if err := f.engine.Burn(user, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("zero burn: %v", err)
	}
}

func TestBurnRevertsWhenPayerCannotPay(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	other := makeAddress(0x11)
	f.fund(t, user, 10)
	if err := f.engine.DepositAndMint(user, f.weth.Address(), eth(10), eth(100)); err != nil {
		t.Fatalf("setup: %v", err)
	}
	// Hand the debt tokens away so the pull fails.
	if !f.susd.Transfer(user, other, eth(100)) {
		t.Fatal("transfer away failed")
	}

	if err := f.engine.Burn(user, eth(50)); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if got := f.engine.DebtOf(user); got.Cmp(eth(100)) != 0 {
		t.Fatalf("debt not reverted: %s", got)
	}
}

func TestRedeemKeepsPositionSolvent(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, 10)
	if err := f.engine.DepositAndMint(user, f.weth.Address(), eth(10), eth(15_000)); err != nil {
		t.Fatalf("setup: %v", err)
	}

	// At the boundary any withdrawal breaks solvency; everything reverts.
	err := f.engine.Redeem(user, f.weth.Address(), eth(1))
	if !errors.Is(err, ErrBrokenHealthFactor) {
		t.Fatalf("expected ErrBrokenHealthFactor, got %v", err)
	}
	if got := f.engine.CollateralOf(user, f.weth.Address()); got.Cmp(eth(10)) != 0 {
		t.Fatalf("ledger not reverted: %s", got)
	}
	if got := f.weth.BalanceOf(user); got.Sign() != 0 {
		t.Fatalf("payout not reverted: %s", got)
	}

	if err := f.engine.Burn(user, eth(15_000)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	if err := f.engine.Redeem(user, f.weth.Address(), eth(10)); err != nil {
		t.Fatalf("redeem after burn: %v", err)
	}
	if got := f.weth.BalanceOf(user); got.Cmp(eth(10)) != 0 {
		t.Fatalf("user balance: %s", got)
	}
	f.custodyMatchesLedger(t, user)
}

func TestRedeemValidation(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, 10)
	if err := f.engine.Deposit(user, f.weth.Address(), eth(5)); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := f.engine.Redeem(user, f.weth.Address(), eth(6)); !errors.Is(err, ErrExcessCollateralToRedeem) {
		t.Fatalf("over-redeem: %v", err)
	}
	if err := f.engine.Redeem(user, makeAddress(0x99), eth(1)); !errors.Is(err, ErrAssetNotRegistered) {
		t.Fatalf("unregistered redeem: %v", err)
	}
}

func TestRedeemForDebtClosesPosition(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, 10)
	if err := f.engine.DepositAndMint(user, f.weth.Address(), eth(10), eth(100)); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if err := f.engine.RedeemForDebt(user, f.weth.Address(), eth(10), eth(100)); err != nil {
		t.Fatalf("redeem for debt: %v", err)
	}
	if got := f.engine.DebtOf(user); got.Sign() != 0 {
		t.Fatalf("debt remains: %s", got)
	}
	if got := f.engine.CollateralOf(user, f.weth.Address()); got.Sign() != 0 {
		t.Fatalf("collateral remains: %s", got)
	}
	if got := f.weth.BalanceOf(user); got.Cmp(eth(10)) != 0 {
		t.Fatalf("user balance: %s", got)
	}
	if got := f.engine.TotalDebtSupply(); got.Sign() != 0 {
		t.Fatalf("supply remains: %s", got)
	}
}

func TestPositionReadModel(t *testing.T) {
	f := newFixture(t)
	user := makeAddress(0x10)
	f.fund(t, user, 10)
	if !token.NewFaucet(f.wbtc).Mint(user, big.NewInt(2_0000_0000)) {
		t.Fatal("wbtc faucet failed")
	}
	if err := f.engine.Deposit(user, f.weth.Address(), eth(10)); err != nil {
		t.Fatalf("deposit weth: %v", err)
	}
	if err := f.engine.Deposit(user, f.wbtc.Address(), big.NewInt(2_0000_0000)); err != nil {
		t.Fatalf("deposit wbtc: %v", err)
	}
	if err := f.engine.Mint(user, eth(1_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	pos, err := f.engine.PositionOf(user)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if len(pos.Collateral) != 2 {
		t.Fatalf("collateral entries: %d", len(pos.Collateral))
	}
	if pos.Debt.Cmp(eth(1_000)) != 0 {
		t.Fatalf("debt: %s", pos.Debt)
	}
	if pos.HealthFactor.Cmp(MinHealthFactor()) <= 0 {
		t.Fatalf("health factor: %s", pos.HealthFactor)
	}

	// $30,000 WETH + $120,000 WBTC.
	value, err := f.engine.AccountCollateralValue(user)
	if err != nil {
		t.Fatalf("collateral value: %v", err)
	}
	if value.Cmp(eth(150_000)) != 0 {
		t.Fatalf("collateral value: %s", value)
	}
}

// reentrantLedger calls back into the engine from inside a transfer, the way
// a malicious token contract would.
type reentrantLedger struct {
	token.Ledger
	engine *Engine
	user   common.Address
	got    error
	armed  bool
}

func (r *reentrantLedger) Transfer(from, to common.Address, amount *big.Int) bool {
	if r.armed {
		r.armed = false
		r.got = r.engine.Mint(r.user, big.NewInt(1))
	}
	return r.Ledger.Transfer(from, to, amount)
}

func TestReentrantCallRejected(t *testing.T) {
	store := state.NewStore()
	module := makeAddress(0x01)
	weth := token.NewToken(store, makeAddress(0x02), "WETH", 18)
	susd := token.NewDebtToken(store, makeAddress(0x04), "SUSD", 18, module)
	feed := oracle.NewManualFeed(8)
	feed.SetAnswer(feedPrice(3000), testNow)
	validator := oracle.NewValidator(nil, 0).WithClock(func() time.Time { return testNow })

	hostile := &reentrantLedger{Ledger: weth}
	reg, err := NewRegistry(CollateralAsset{
		Address:   weth.Address(),
		Symbol:    "WETH",
		Decimals:  18,
		Ledger:    hostile,
		Feed:      feed,
		Heartbeat: 3 * time.Hour,
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	engine, err := NewEngine(module, reg, susd, validator, store)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	hostile.engine = engine

	user := makeAddress(0x10)
	hostile.user = user
	token.NewFaucet(weth).Mint(user, eth(10))

	hostile.armed = true
	if err := engine.Deposit(user, weth.Address(), eth(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !errors.Is(hostile.got, ErrReentrantCall) {
		t.Fatalf("expected ErrReentrantCall, got %v", hostile.got)
	}
	if got := engine.DebtOf(user); got.Sign() != 0 {
		t.Fatalf("reentrant mint took effect: %s", got)
	}
}
