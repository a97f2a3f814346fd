package ledger

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientBalance is returned when the free balance cannot cover a reserve or transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrReservedUnderflow is returned when releasing more than is reserved.
	// For a caller that tracks its own reservations this signals an inconsistency.
	ErrReservedUnderflow = errors.New("reserved balance underflow")
	// ErrInvalidAmount is returned for negative amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// Manager is the balance ledger: free/reserved balances per address.
// Zero amounts are accepted and are no-ops.
type Manager struct {
	mu       sync.RWMutex
	accounts map[common.Address]*Account
}

// NewManager creates an empty ledger
func NewManager() *Manager {
	return &Manager{accounts: make(map[common.Address]*Account)}
}

// getLocked returns the account, creating it when missing (assumes lock is held)
func (m *Manager) getLocked(addr common.Address) *Account {
	acc, ok := m.accounts[addr]
	if !ok {
		acc = NewAccount(addr)
		m.accounts[addr] = acc
	}
	return acc
}

func checkAmount(amount Balance) error {
	if amount < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	return nil
}

// Deposit credits free balance (genesis allocation or bridge mint)
func (m *Manager) Deposit(addr common.Address, amount Balance) error {
	if amount <= 0 {
		return fmt.Errorf("deposit amount must be positive: %d", amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.getLocked(addr)
	acc.Free += amount
	acc.TotalReceived += amount
	return nil
}

// Reserve moves amount from free to reserved
func (m *Manager) Reserve(addr common.Address, amount Balance) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[addr]
	if !ok || acc.Free < amount {
		return fmt.Errorf("%w: %s has %d free, need %d", ErrInsufficientBalance, addr.Hex(), freeOf(acc), amount)
	}
	acc.Free -= amount
	acc.Reserved += amount
	return nil
}

// Release moves amount from reserved back to free
func (m *Manager) Release(addr common.Address, amount Balance) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acc, ok := m.accounts[addr]
	if !ok || acc.Reserved < amount {
		reserved := Balance(0)
		if ok {
			reserved = acc.Reserved
		}
		return fmt.Errorf("%w: %s has %d reserved, release %d", ErrReservedUnderflow, addr.Hex(), reserved, amount)
	}
	acc.Reserved -= amount
	acc.Free += amount
	return nil
}

// Transfer moves free balance between two addresses
func (m *Manager) Transfer(from, to common.Address, amount Balance) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount == 0 || from == to {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.accounts[from]
	if !ok || src.Free < amount {
		return fmt.Errorf("%w: %s has %d free, need %d", ErrInsufficientBalance, from.Hex(), freeOf(src), amount)
	}
	dst := m.getLocked(to)
	src.Free -= amount
	src.TotalSent += amount
	dst.Free += amount
	dst.TotalReceived += amount
	return nil
}

// RevertTransfer undoes a Transfer(from, to, amount) that succeeded,
// counters included. A recipient account that the transfer created is
// dropped again.
func (m *Manager) RevertTransfer(from, to common.Address, amount Balance) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if amount == 0 || from == to {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	src, okSrc := m.accounts[from]
	dst, okDst := m.accounts[to]
	if !okSrc || !okDst || dst.Free < amount || dst.TotalReceived < amount || src.TotalSent < amount {
		return fmt.Errorf("%w: no transfer of %d from %s to %s to revert", ErrInsufficientBalance, amount, from.Hex(), to.Hex())
	}
	dst.Free -= amount
	dst.TotalReceived -= amount
	src.Free += amount
	src.TotalSent -= amount
	if dst.Nonce == 0 && dst.Total() == 0 && dst.TotalReceived == 0 && dst.TotalSent == 0 {
		delete(m.accounts, to)
	}
	return nil
}

func freeOf(acc *Account) Balance {
	if acc == nil {
		return 0
	}
	return acc.Free
}

// Free returns the spendable balance of addr
func (m *Manager) Free(addr common.Address) Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[addr]; ok {
		return acc.Free
	}
	return 0
}

// Reserved returns the reserved balance of addr
func (m *Manager) Reserved(addr common.Address) Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[addr]; ok {
		return acc.Reserved
	}
	return 0
}

// Nonce returns the highest accepted nonce of addr
func (m *Manager) Nonce(addr common.Address) uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[addr]; ok {
		return acc.Nonce
	}
	return 0
}

// SetNonce records a newly accepted nonce. Nonces never move backwards.
func (m *Manager) SetNonce(addr common.Address, nonce uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := m.getLocked(addr)
	if nonce <= acc.Nonce {
		return fmt.Errorf("nonce too low: have %d, got %d", acc.Nonce, nonce)
	}
	acc.Nonce = nonce
	return nil
}

// Account returns a copy of the account, or nil if it was never touched
func (m *Manager) Account(addr common.Address) *Account {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if acc, ok := m.accounts[addr]; ok {
		return acc.clone()
	}
	return nil
}

// Accounts returns copies of all accounts sorted by address
func (m *Manager) Accounts() []*Account {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		out = append(out, acc.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out
}

// TotalIssued returns the sum of all balances (free + reserved)
func (m *Manager) TotalIssued() Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := Balance(0)
	for _, acc := range m.accounts {
		total += acc.Total()
	}
	return total
}

// Load replaces the ledger contents (used when restoring from storage)
func (m *Manager) Load(accounts []*Account) error {
	loaded := make(map[common.Address]*Account, len(accounts))
	for _, acc := range accounts {
		if err := acc.Validate(); err != nil {
			return fmt.Errorf("account %s: %w", acc.Address.Hex(), err)
		}
		loaded[acc.Address] = acc.clone()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = loaded
	return nil
}

// Count returns the number of known accounts
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
