package susd

import "math/big"

// Fixed-point constants. USD values and health factors are expressed in
// 18-decimal fixed point; a health factor of one whole unit marks the
// solvency boundary. All divisions truncate toward zero, which biases every
// derived quantity toward flagging positions as riskier rather than safer.
var (
	precision            = mustBigInt("1000000000000000000") // 1e18 common precision
	minHealthFactor      = mustBigInt("1000000000000000000") // 1.0 in fixed point
	maxHealthFactor      = maxWord()                         // debt-free positions
	liquidationThreshold = big.NewInt(50)
	liquidationPrecision = big.NewInt(100)
	liquidationBonus     = big.NewInt(10)
	hundred              = big.NewInt(100)
)

// MinHealthFactor returns one whole health-factor unit.
func MinHealthFactor() *big.Int { return new(big.Int).Set(minHealthFactor) }

// MaxHealthFactor returns the factor reported for debt-free positions.
func MaxHealthFactor() *big.Int { return new(big.Int).Set(maxHealthFactor) }

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

func maxWord() *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	return max.Sub(max, big.NewInt(1))
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// normalizePrice rescales a feed-native price into the 18-decimal common
// precision: price * precision / 10^feedDecimals.
func normalizePrice(price *big.Int, feedDecimals uint8) *big.Int {
	scaled := new(big.Int).Mul(price, precision)
	return scaled.Quo(scaled, pow10(feedDecimals))
}

// usdValue converts a token amount into an 18-decimal USD value:
// amount * normalizedPrice / 10^tokenDecimals. The decimals-aware form holds
// for any feed/token decimal pairing.
func usdValue(price *big.Int, feedDecimals, tokenDecimals uint8, amount *big.Int) *big.Int {
	value := new(big.Int).Mul(amount, normalizePrice(price, feedDecimals))
	return value.Quo(value, pow10(tokenDecimals))
}

// tokenAmountFromUSD inverts usdValue, flooring on the final division:
// usd * 10^tokenDecimals / normalizedPrice.
func tokenAmountFromUSD(price *big.Int, feedDecimals, tokenDecimals uint8, usd *big.Int) *big.Int {
	norm := normalizePrice(price, feedDecimals)
	if norm.Sign() == 0 {
		return big.NewInt(0)
	}
	amount := new(big.Int).Mul(usd, pow10(tokenDecimals))
	return amount.Quo(amount, norm)
}

// healthFactor maps (debt, risk-adjusted collateral) to the solvency ratio.
// A debt-free position reports the maximum representable factor and is never
// liquidatable. Collateral is first discounted by the liquidation threshold
// (50/100, requiring 200% over-collateralization), then scaled into
// fixed point against the debt.
func healthFactor(totalDebt, collateralValueUSD *big.Int) *big.Int {
	if totalDebt == nil || totalDebt.Sign() == 0 {
		return MaxHealthFactor()
	}
	adjusted := new(big.Int).Mul(collateralValueUSD, liquidationThreshold)
	adjusted.Quo(adjusted, liquidationPrecision)
	adjusted.Mul(adjusted, precision)
	return adjusted.Quo(adjusted, totalDebt)
}

// bonusCollateral scales a seizure amount by the liquidator incentive:
// amount * (100 + bonus) / 100.
func bonusCollateral(amount *big.Int) *big.Int {
	seized := new(big.Int).Mul(amount, new(big.Int).Add(hundred, liquidationBonus))
	return seized.Quo(seized, hundred)
}
