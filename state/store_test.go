package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func addr(b byte) common.Address {
	var a common.Address
	a[common.AddressLength-1] = b
	return a
}

func TestStoreBalancesRoundTrip(t *testing.T) {
	store := NewStore()
	token := addr(0x01)
	holder := addr(0x02)

	if bal := store.Balance(token, holder); bal.Sign() != 0 {
		t.Fatalf("expected zero balance, got %s", bal)
	}

	store.SetBalance(token, holder, uint256.NewInt(500))
	if bal := store.Balance(token, holder); bal.Uint64() != 500 {
		t.Fatalf("expected 500, got %s", bal)
	}

	// Returned values must be copies.
	store.Balance(token, holder).SetUint64(999)
	if bal := store.Balance(token, holder); bal.Uint64() != 500 {
		t.Fatalf("balance mutated through returned copy: %s", bal)
	}
}

func TestStoreRevertUnwindsAllWrites(t *testing.T) {
	store := NewStore()
	token := addr(0x01)
	user := addr(0x02)
	asset := addr(0x03)

	store.SetBalance(token, user, uint256.NewInt(100))
	store.SetDebt(user, big.NewInt(40))

	snap := store.Snapshot()

	store.SetBalance(token, user, uint256.NewInt(10))
	store.SetSupply(token, uint256.NewInt(90))
	store.SetCollateral(user, asset, big.NewInt(77))
	store.SetDebt(user, big.NewInt(0))

	store.RevertToSnapshot(snap)

	if bal := store.Balance(token, user); bal.Uint64() != 100 {
		t.Fatalf("balance not reverted: %s", bal)
	}
	if supply := store.Supply(token); supply.Sign() != 0 {
		t.Fatalf("supply not reverted: %s", supply)
	}
	if col := store.Collateral(user, asset); col.Sign() != 0 {
		t.Fatalf("collateral not reverted: %s", col)
	}
	if debt := store.Debt(user); debt.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("debt not reverted: %s", debt)
	}
}

func TestStoreNestedSnapshots(t *testing.T) {
	store := NewStore()
	user := addr(0x0A)

	store.SetDebt(user, big.NewInt(1))
	outer := store.Snapshot()
	store.SetDebt(user, big.NewInt(2))
	inner := store.Snapshot()
	store.SetDebt(user, big.NewInt(3))

	store.RevertToSnapshot(inner)
	if debt := store.Debt(user); debt.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("inner revert: got %s", debt)
	}
	store.RevertToSnapshot(outer)
	if debt := store.Debt(user); debt.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("outer revert: got %s", debt)
	}
}

func TestStoreDiscardSnapshotBoundsJournal(t *testing.T) {
	store := NewStore()
	user := addr(0x0B)

	snap := store.Snapshot()
	store.SetDebt(user, big.NewInt(9))
	store.DiscardSnapshot(snap)

	if len(store.journal) != 0 {
		t.Fatalf("expected empty journal, got %d entries", len(store.journal))
	}
	if debt := store.Debt(user); debt.Cmp(big.NewInt(9)) != 0 {
		t.Fatalf("commit lost: %s", debt)
	}
}
