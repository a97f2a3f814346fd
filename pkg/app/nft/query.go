package nft

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperbid/pkg/app/core/auction"
	"github.com/uhyunpark/hyperbid/pkg/app/core/item"
	"github.com/uhyunpark/hyperbid/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperbid/pkg/consensus"
)

// OrderView is an order with its live bid and stakes
type OrderView struct {
	*auction.Order
	HighBid    *auction.Bid     `json:"highBid,omitempty"`
	Stakes     []*auction.Stake `json:"stakes"`
	TotalStake ledger.Balance   `json:"totalStake"`
}

// ChainStatus summarizes the last executed block
type ChainStatus struct {
	Height      uint64         `json:"height"`
	AppHash     consensus.Hash `json:"-"`
	AppHashHex  string         `json:"appHash"`
	Accounts    int            `json:"accounts"`
	Items       int            `json:"items"`
	Orders      uint64         `json:"orders"`
	OpenOrders  int            `json:"openOrders"`
	Mempool     int            `json:"mempool"`
	TotalSupply ledger.Balance `json:"totalSupply"`
}

func (a *App) Status() ChainStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return ChainStatus{
		Height:      a.clock.height,
		AppHash:     a.appHash,
		AppHashHex:  "0x" + a.appHash.String(),
		Accounts:    a.ledger.Count(),
		Items:       a.items.Count(),
		Orders:      a.engine.NextOrderID(),
		OpenOrders:  len(a.engine.OpenOrders()),
		Mempool:     a.mempool.Len(),
		TotalSupply: a.ledger.TotalIssued(),
	}
}

func (a *App) Height() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.clock.height
}

func (a *App) AppHash() consensus.Hash {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.appHash
}

func (a *App) Params() auction.Params { return a.cfg.Params }

// Account returns the account, or a zero account for an unknown address
func (a *App) Account(addr common.Address) *ledger.Account {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if acc := a.ledger.Account(addr); acc != nil {
		return acc
	}
	return ledger.NewAccount(addr)
}

func (a *App) Item(id uint64) (*item.Item, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	it, err := a.items.Get(id)
	if err != nil {
		return nil, false
	}
	return it, true
}

// Items returns all items, or only those of owner when owner is non-nil
func (a *App) Items(owner *common.Address) []*item.Item {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if owner != nil {
		return a.items.ItemsOf(*owner)
	}
	return a.items.Items()
}

func (a *App) Order(id uint64) (*OrderView, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	o, ok := a.engine.Order(id)
	if !ok {
		return nil, false
	}
	return a.viewLocked(o), true
}

// Orders lists orders, optionally only open ones
func (a *App) Orders(openOnly bool) []*OrderView {
	a.mu.RLock()
	defer a.mu.RUnlock()

	orders := a.engine.Orders()
	if openOnly {
		orders = a.engine.OpenOrders()
	}
	out := make([]*OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, a.viewLocked(o))
	}
	return out
}

func (a *App) viewLocked(o *auction.Order) *OrderView {
	v := &OrderView{Order: o, Stakes: a.engine.Stakes(o.ID), TotalStake: a.engine.TotalStake(o.ID)}
	if b, ok := a.engine.HighBid(o.ID); ok {
		v.HighBid = b
	}
	return v
}

// PreviewSplit shows how price would be divided if the order settled now
func (a *App) PreviewSplit(orderID uint64, price ledger.Balance) (auction.Split, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.engine.PreviewSplit(orderID, price)
}

func (a *App) Receipt(hash string) (*Receipt, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.receipts[hash]
	return r, ok
}

func (a *App) MempoolSize() int { return a.mempool.Len() }
