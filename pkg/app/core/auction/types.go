package auction

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperbid/pkg/app/core/item"
	"github.com/uhyunpark/hyperbid/pkg/app/core/ledger"
)

// Height is a block height, the only clock the engine knows
type Height = uint64

// Balance is an amount in base units
type Balance = ledger.Balance

// State of an order. Settled and Cancelled are terminal.
type State uint8

const (
	StateOpen State = iota
	StateSettled
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateSettled:
		return "settled"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "open":
		*s = StateOpen
	case "settled":
		*s = StateSettled
	case "cancelled":
		*s = StateCancelled
	default:
		return fmt.Errorf("unknown order state %q", b)
	}
	return nil
}

// Order is one auction instance for one item
type Order struct {
	ID         uint64         `json:"id"`
	ItemID     uint64         `json:"itemId"`
	Seller     common.Address `json:"seller"`
	StartPrice Balance        `json:"startPrice"`
	MaxPrice   Balance        `json:"maxPrice"`
	OpenedAt   Height         `json:"openedAt"`
	KeepUntil  Height         `json:"keepUntil"` // bidding closes at this height
	State      State          `json:"state"`
	BidCount   uint32         `json:"bidCount"`

	// Set when the order leaves Open
	FinalPrice Balance        `json:"finalPrice,omitempty"`
	Buyer      common.Address `json:"buyer,omitempty"`
	ClosedAt   Height         `json:"closedAt,omitempty"`
}

func (o *Order) clone() *Order {
	cp := *o
	return &cp
}

// Bid is the single live high bid of an order; its amount is reserved from the bidder
type Bid struct {
	OrderID  uint64         `json:"orderId"`
	Bidder   common.Address `json:"bidder"`
	Amount   Balance        `json:"amount"`
	PlacedAt Height         `json:"placedAt"`
}

// Stake is the collateral one backer locked on one order
type Stake struct {
	OrderID  uint64         `json:"orderId"`
	Backer   common.Address `json:"backer"`
	Amount   Balance        `json:"amount"`
	StakedAt Height         `json:"stakedAt"` // height of the first stake
}

// Ledger moves fungible balance. Reserve and Transfer fail with
// ledger.ErrInsufficientBalance when the free balance is short.
type Ledger interface {
	Free(addr common.Address) Balance
	Reserve(addr common.Address, amount Balance) error
	Release(addr common.Address, amount Balance) error
	Transfer(from, to common.Address, amount Balance) error
	// RevertTransfer exactly undoes a successful Transfer
	RevertTransfer(from, to common.Address, amount Balance) error
}

// Registry owns item ownership and the auction lock
type Registry interface {
	Create(owner common.Address, metadata string) (*item.Item, error)
	Owner(id uint64) (common.Address, error)
	SetOwner(id uint64, owner common.Address) error
	Transfer(id uint64, caller, to common.Address) error
	Remove(id uint64, caller common.Address) error
	LockForAuction(id, orderID uint64) error
	Unlock(id uint64) error
	Locked(id uint64) bool
}

// Clock supplies the current height; it never decreases
type Clock interface {
	CurrentHeight() Height
}
