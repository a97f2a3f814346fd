package ledger

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

var (
	alice = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob   = common.HexToAddress("0xBB00000000000000000000000000000000000000")
)

func TestDeposit(t *testing.T) {
	m := NewManager()

	if err := m.Deposit(alice, 1000); err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if got := m.Free(alice); got != 1000 {
		t.Errorf("free = %d, want 1000", got)
	}

	if err := m.Deposit(alice, 0); err == nil {
		t.Error("expected error for zero deposit")
	}
	if err := m.Deposit(alice, -5); err == nil {
		t.Error("expected error for negative deposit")
	}
}

func TestReserveRelease(t *testing.T) {
	m := NewManager()
	m.Deposit(alice, 1000)

	if err := m.Reserve(alice, 300); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if m.Free(alice) != 700 || m.Reserved(alice) != 300 {
		t.Errorf("free=%d reserved=%d, want 700/300", m.Free(alice), m.Reserved(alice))
	}

	// Cannot reserve more than free
	err := m.Reserve(alice, 701)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}

	if err := m.Release(alice, 300); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if m.Free(alice) != 1000 || m.Reserved(alice) != 0 {
		t.Errorf("free=%d reserved=%d, want 1000/0", m.Free(alice), m.Reserved(alice))
	}

	// Release beyond reserved is an inconsistency
	err = m.Release(alice, 1)
	if !errors.Is(err, ErrReservedUnderflow) {
		t.Errorf("err = %v, want ErrReservedUnderflow", err)
	}
	err = m.Release(bob, 1)
	if !errors.Is(err, ErrReservedUnderflow) {
		t.Errorf("unknown account: err = %v, want ErrReservedUnderflow", err)
	}
}

func TestZeroAmountsAreNoops(t *testing.T) {
	m := NewManager()

	if err := m.Reserve(alice, 0); err != nil {
		t.Errorf("reserve 0: %v", err)
	}
	if err := m.Release(alice, 0); err != nil {
		t.Errorf("release 0: %v", err)
	}
	if err := m.Transfer(alice, bob, 0); err != nil {
		t.Errorf("transfer 0: %v", err)
	}
	if err := m.Reserve(alice, -1); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("negative reserve: err = %v, want ErrInvalidAmount", err)
	}
}

func TestTransfer(t *testing.T) {
	m := NewManager()
	m.Deposit(alice, 500)
	m.Reserve(alice, 200)

	if err := m.Transfer(alice, bob, 300); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if m.Free(alice) != 0 || m.Free(bob) != 300 {
		t.Errorf("alice=%d bob=%d, want 0/300", m.Free(alice), m.Free(bob))
	}

	// Reserved funds are not spendable
	if err := m.Transfer(alice, bob, 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("err = %v, want ErrInsufficientBalance", err)
	}

	if got := m.TotalIssued(); got != 500 {
		t.Errorf("total issued = %d, want 500", got)
	}

	acc := m.Account(bob)
	if acc == nil || acc.TotalReceived != 300 {
		t.Errorf("bob stats = %+v, want TotalReceived 300", acc)
	}
}

func TestNonce(t *testing.T) {
	m := NewManager()

	if err := m.SetNonce(alice, 1); err != nil {
		t.Fatalf("set nonce: %v", err)
	}
	if err := m.SetNonce(alice, 1); err == nil {
		t.Error("expected error for replayed nonce")
	}
	if err := m.SetNonce(alice, 5); err != nil {
		t.Fatalf("set nonce: %v", err)
	}
	if m.Nonce(alice) != 5 {
		t.Errorf("nonce = %d, want 5", m.Nonce(alice))
	}
}

func TestLoadAndAccountsSorted(t *testing.T) {
	m := NewManager()
	err := m.Load([]*Account{
		{Address: bob, Free: 10},
		{Address: alice, Free: 20, Reserved: 5},
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	accs := m.Accounts()
	if len(accs) != 2 || accs[0].Address != alice || accs[1].Address != bob {
		t.Fatalf("accounts not sorted: %+v", accs)
	}

	// Returned accounts are copies
	accs[0].Free = 9999
	if m.Free(alice) != 20 {
		t.Error("Accounts() leaked internal state")
	}

	if err := m.Load([]*Account{{Address: alice, Free: -1}}); err == nil {
		t.Error("expected error loading invalid account")
	}
}

func TestRevertTransfer(t *testing.T) {
	m := NewManager()
	m.Deposit(alice, 500)
	m.Deposit(bob, 50)
	carol := common.HexToAddress("0xCC00000000000000000000000000000000000000")

	before := m.Accounts()
	if err := m.Transfer(alice, bob, 200); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := m.Transfer(alice, carol, 100); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if err := m.RevertTransfer(alice, carol, 100); err != nil {
		t.Fatalf("revert: %v", err)
	}
	if err := m.RevertTransfer(alice, bob, 200); err != nil {
		t.Fatalf("revert: %v", err)
	}

	after := m.Accounts()
	if len(after) != len(before) {
		t.Fatalf("accounts = %d, want %d (created recipient not dropped)", len(after), len(before))
	}
	for i := range before {
		if *before[i] != *after[i] {
			t.Errorf("account changed: %+v -> %+v", before[i], after[i])
		}
	}

	if err := m.RevertTransfer(alice, bob, 10); err == nil {
		t.Error("expected error reverting a transfer that never happened")
	}
}

func TestFailedDebitCreatesNoAccount(t *testing.T) {
	m := NewManager()
	if err := m.Reserve(alice, 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("reserve err = %v", err)
	}
	if err := m.Transfer(alice, bob, 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("transfer err = %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("count = %d, want 0", m.Count())
	}
}
