package oracle

import (
	"errors"
	"math/big"
	"sync"
	"time"
)

// RoundData is one published price round: the answer in the feed's native
// decimal scale together with the round bookkeeping needed to judge whether
// the reading is complete and fresh.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       time.Time
	UpdatedAt       time.Time
	AnsweredInRound *big.Int
}

// Clone returns a deep copy so callers cannot mutate feed-held state.
func (r RoundData) Clone() RoundData {
	clone := RoundData{StartedAt: r.StartedAt, UpdatedAt: r.UpdatedAt}
	if r.RoundID != nil {
		clone.RoundID = new(big.Int).Set(r.RoundID)
	}
	if r.Answer != nil {
		clone.Answer = new(big.Int).Set(r.Answer)
	}
	if r.AnsweredInRound != nil {
		clone.AnsweredInRound = new(big.Int).Set(r.AnsweredInRound)
	}
	return clone
}

// Feed resolves the latest round for one asset. A sequencer-status feed uses
// the same shape: a zero answer means the sequencer is up and StartedAt is
// the time of the last status change.
type Feed interface {
	LatestRoundData() (RoundData, error)
	Decimals() uint8
}

var errNoRound = errors.New("oracle: no round published")

// ManualFeed is an in-memory feed used by tests and local bootstrap. Values
// are set explicitly and returned verbatim.
type ManualFeed struct {
	mu       sync.RWMutex
	round    RoundData
	decimals uint8
	set      bool
}

// NewManualFeed constructs an empty manual feed with the given decimal scale.
func NewManualFeed(decimals uint8) *ManualFeed {
	return &ManualFeed{decimals: decimals}
}

// Set replaces the current round wholesale.
func (m *ManualFeed) Set(round RoundData) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.round = round.Clone()
	m.set = true
	m.mu.Unlock()
}

// SetAnswer publishes a fresh, complete round with the provided answer at the
// given timestamp. Round identifiers advance monotonically.
func (m *ManualFeed) SetAnswer(answer *big.Int, updatedAt time.Time) {
	if m == nil || answer == nil {
		return
	}
	m.mu.Lock()
	next := big.NewInt(1)
	if m.set && m.round.RoundID != nil {
		next = new(big.Int).Add(m.round.RoundID, big.NewInt(1))
	}
	m.round = RoundData{
		RoundID:         next,
		Answer:          new(big.Int).Set(answer),
		StartedAt:       updatedAt,
		UpdatedAt:       updatedAt,
		AnsweredInRound: new(big.Int).Set(next),
	}
	m.set = true
	m.mu.Unlock()
}

// LatestRoundData returns the stored round.
func (m *ManualFeed) LatestRoundData() (RoundData, error) {
	if m == nil {
		return RoundData{}, errNoRound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.set {
		return RoundData{}, errNoRound
	}
	return m.round.Clone(), nil
}

// Decimals returns the feed's native decimal precision.
func (m *ManualFeed) Decimals() uint8 {
	if m == nil {
		return 0
	}
	return m.decimals
}
