package oracle

import (
	"errors"
	"math/big"
	"time"
)

// Validation failures. Every failure blocks the calling operation outright;
// there is no fallback or cached-price substitution.
var (
	ErrSequencerDown      = errors.New("oracle: sequencer down")
	ErrGracePeriodNotOver = errors.New("oracle: sequencer grace period not over")
	ErrStalePrice         = errors.New("oracle: stale price")
	ErrIncompleteRound    = errors.New("oracle: round not complete")
)

// DefaultGracePeriod is the mandatory wait after a sequencer recovers before
// its prices are trusted again. Feeds keep serving the last cached answer
// during an outage, so prices observed immediately after recovery are suspect.
const DefaultGracePeriod = time.Hour

// Validator applies fail-closed freshness rules to raw feed readings. A nil
// sequencer feed disables the uptime check; the grace period defaults to one
// hour. The clock is injectable for tests.
type Validator struct {
	sequencer Feed
	grace     time.Duration
	now       func() time.Time
}

// NewValidator constructs a validator. sequencer may be nil when the
// execution environment has no uptime feed.
func NewValidator(sequencer Feed, grace time.Duration) *Validator {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &Validator{sequencer: sequencer, grace: grace, now: time.Now}
}

// WithClock overrides the validator's time source.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	if v != nil && now != nil {
		v.now = now
	}
	return v
}

// Price returns the feed's latest answer in the feed's native decimal scale
// after checking sequencer status and freshness against the asset heartbeat.
func (v *Validator) Price(feed Feed, heartbeat time.Duration) (*big.Int, error) {
	if v == nil {
		return nil, errors.New("oracle: validator not configured")
	}
	if feed == nil {
		return nil, errors.New("oracle: feed not configured")
	}
	now := v.now()

	if v.sequencer != nil {
		status, err := v.sequencer.LatestRoundData()
		if err != nil {
			return nil, err
		}
		// answer == 0 means up.
		if status.Answer == nil || status.Answer.Sign() != 0 {
			return nil, ErrSequencerDown
		}
		if now.Sub(status.StartedAt) <= v.grace {
			return nil, ErrGracePeriodNotOver
		}
	}

	round, err := feed.LatestRoundData()
	if err != nil {
		return nil, err
	}
	if round.UpdatedAt.IsZero() {
		return nil, ErrStalePrice
	}
	if round.AnsweredInRound == nil || round.RoundID == nil ||
		round.AnsweredInRound.Cmp(round.RoundID) < 0 {
		return nil, ErrIncompleteRound
	}
	if heartbeat > 0 && now.Sub(round.UpdatedAt) > heartbeat {
		return nil, ErrStalePrice
	}
	if round.Answer == nil {
		return nil, ErrStalePrice
	}
	return new(big.Int).Set(round.Answer), nil
}
