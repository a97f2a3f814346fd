package ledger

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Balance is an amount of the native fungible token, in base units.
type Balance = int64

// Account tracks the fungible balance of one address.
// Free is spendable; Reserved is held on behalf of open bids and stakes.
type Account struct {
	Address common.Address `json:"address"`
	Nonce   uint64         `json:"nonce"` // Highest accepted transaction nonce (replay protection)

	Free     Balance `json:"free"`
	Reserved Balance `json:"reserved"`

	// Cumulative statistics
	TotalReceived Balance `json:"totalReceived"` // Sum of all incoming transfers and deposits
	TotalSent     Balance `json:"totalSent"`     // Sum of all outgoing transfers
}

// NewAccount creates an account with zero balance
func NewAccount(addr common.Address) *Account {
	return &Account{Address: addr}
}

// Total returns free + reserved
func (a *Account) Total() Balance {
	return a.Free + a.Reserved
}

// Validate checks account invariants
func (a *Account) Validate() error {
	if a.Free < 0 {
		return fmt.Errorf("negative free balance: %d", a.Free)
	}
	if a.Reserved < 0 {
		return fmt.Errorf("negative reserved balance: %d", a.Reserved)
	}
	return nil
}

func (a *Account) clone() *Account {
	cp := *a
	return &cp
}
