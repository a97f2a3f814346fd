package auction

import (
	"github.com/ethereum/go-ethereum/common"
)

// txn is one atomic operation. Every mutation goes through it and records an
// undo step; on error the steps are replayed in reverse and buffered events dropped.
type txn struct {
	e      *Engine
	now    Height
	undo   []func()
	events []Event
}

func (tx *txn) record(fn func()) {
	tx.undo = append(tx.undo, fn)
}

func (tx *txn) emit(ev Event) {
	ev.Height = tx.now
	tx.events = append(tx.events, ev)
}

func (tx *txn) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.events = nil
}

// Ledger steps. The inverse of a successful step cannot fail on a consistent
// ledger; if it does, the engine logs it.

func (tx *txn) reserve(addr common.Address, amount Balance) error {
	if err := tx.e.ledger.Reserve(addr, amount); err != nil {
		return mapErr(err)
	}
	tx.record(func() { tx.e.undoErr("release", tx.e.ledger.Release(addr, amount)) })
	return nil
}

func (tx *txn) release(addr common.Address, amount Balance) error {
	if err := tx.e.ledger.Release(addr, amount); err != nil {
		return mapErr(err)
	}
	tx.record(func() { tx.e.undoErr("reserve", tx.e.ledger.Reserve(addr, amount)) })
	return nil
}

func (tx *txn) transfer(from, to common.Address, amount Balance) error {
	if err := tx.e.ledger.Transfer(from, to, amount); err != nil {
		return mapErr(err)
	}
	tx.record(func() { tx.e.undoErr("transfer", tx.e.ledger.RevertTransfer(from, to, amount)) })
	return nil
}

// Registry steps

func (tx *txn) lockItem(itemID, orderID uint64) error {
	if err := tx.e.items.LockForAuction(itemID, orderID); err != nil {
		return mapErr(err)
	}
	tx.record(func() { tx.e.undoErr("unlock", tx.e.items.Unlock(itemID)) })
	return nil
}

func (tx *txn) unlockItem(itemID, orderID uint64) error {
	if err := tx.e.items.Unlock(itemID); err != nil {
		return mapErr(err)
	}
	tx.record(func() { tx.e.undoErr("lock", tx.e.items.LockForAuction(itemID, orderID)) })
	return nil
}

func (tx *txn) setOwner(itemID uint64, owner common.Address) error {
	prev, err := tx.e.items.Owner(itemID)
	if err != nil {
		return mapErr(err)
	}
	if err := tx.e.items.SetOwner(itemID, owner); err != nil {
		return mapErr(err)
	}
	tx.record(func() { tx.e.undoErr("set_owner", tx.e.items.SetOwner(itemID, prev)) })
	return nil
}

// Engine state steps

func (tx *txn) putOrder(o *Order) {
	id := o.ID
	prev, existed := tx.e.orders[id]
	tx.e.orders[id] = o
	tx.record(func() {
		if existed {
			tx.e.orders[id] = prev
		} else {
			delete(tx.e.orders, id)
		}
	})
}

func (tx *txn) allocOrderID() uint64 {
	id := tx.e.nextOrderID
	tx.e.nextOrderID++
	tx.record(func() { tx.e.nextOrderID = id })
	return id
}

func (tx *txn) putBid(b *Bid) {
	id := b.OrderID
	prev, existed := tx.e.bids[id]
	tx.e.bids[id] = b
	tx.record(func() {
		if existed {
			tx.e.bids[id] = prev
		} else {
			delete(tx.e.bids, id)
		}
	})
}

func (tx *txn) deleteBid(orderID uint64) {
	prev, existed := tx.e.bids[orderID]
	if !existed {
		return
	}
	delete(tx.e.bids, orderID)
	tx.record(func() { tx.e.bids[orderID] = prev })
}

func (tx *txn) putStakes(orderID uint64, stakes []*Stake) {
	prev, existed := tx.e.stakes[orderID]
	tx.e.stakes[orderID] = stakes
	tx.record(func() {
		if existed {
			tx.e.stakes[orderID] = prev
		} else {
			delete(tx.e.stakes, orderID)
		}
	})
}

func (tx *txn) deleteStakes(orderID uint64) {
	prev, existed := tx.e.stakes[orderID]
	if !existed {
		return
	}
	delete(tx.e.stakes, orderID)
	tx.record(func() { tx.e.stakes[orderID] = prev })
}
