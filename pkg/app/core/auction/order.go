package auction

import "github.com/ethereum/go-ethereum/common"

// OpenOrder puts an item up for auction. The item stays locked until the order
// is settled or cancelled.
func (e *Engine) OpenOrder(seller common.Address, itemID uint64, startPrice, maxPrice Balance, keepWindow Height) (uint64, error) {
	var orderID uint64
	err := e.run("open_order", func(tx *txn) error {
		owner, err := e.items.Owner(itemID)
		if err != nil {
			return mapErr(err)
		}
		if owner != seller {
			return fail(ErrNotOwner, "item %d owned by %s", itemID, owner.Hex())
		}
		if e.items.Locked(itemID) {
			return fail(ErrItemInAuction, "item %d", itemID)
		}
		if startPrice > maxPrice {
			return fail(ErrInvalidRange, "start price %d above max price %d", startPrice, maxPrice)
		}
		if keepWindow < e.params.MinKeepBlocks || keepWindow > e.params.MaxKeepBlocks {
			return fail(ErrInvalidWindow, "window %d outside [%d, %d]", keepWindow, e.params.MinKeepBlocks, e.params.MaxKeepBlocks)
		}
		if startPrice < e.params.MinimumPrice {
			return fail(ErrPriceTooLow, "start price %d below minimum %d", startPrice, e.params.MinimumPrice)
		}

		orderID = tx.allocOrderID()
		if err := tx.lockItem(itemID, orderID); err != nil {
			return err
		}
		o := &Order{
			ID:         orderID,
			ItemID:     itemID,
			Seller:     seller,
			StartPrice: startPrice,
			MaxPrice:   maxPrice,
			OpenedAt:   tx.now,
			KeepUntil:  tx.now + keepWindow,
			State:      StateOpen,
		}
		tx.putOrder(o)
		tx.emit(Event{Type: EventOrderOpened, OrderID: orderID, ItemID: itemID, Account: seller,
			Amount: startPrice, KeepUntil: o.KeepUntil})
		return nil
	})
	return orderID, err
}

// CancelOrder withdraws an order that never received a bid. Only the seller may cancel.
func (e *Engine) CancelOrder(orderID uint64, caller common.Address) error {
	return e.run("cancel_order", func(tx *txn) error {
		o, ok := e.orders[orderID]
		if !ok {
			return fail(ErrOrderNotFound, "order %d", orderID)
		}
		if o.Seller != caller {
			return fail(ErrNotSeller, "order %d sold by %s", orderID, o.Seller.Hex())
		}
		if o.State != StateOpen {
			return fail(ErrOrderNotOpen, "order %d is %s", orderID, o.State)
		}
		if o.BidCount > 0 {
			return fail(ErrHasBids, "order %d has %d bids", orderID, o.BidCount)
		}
		return tx.cancel(o, caller)
	})
}

// cancel releases every stake at par, unlocks the item and closes the order
func (tx *txn) cancel(o *Order, caller common.Address) error {
	for _, s := range tx.e.stakes[o.ID] {
		if err := tx.release(s.Backer, s.Amount); err != nil {
			return err
		}
		tx.emit(Event{Type: EventStakeReleased, OrderID: o.ID, ItemID: o.ItemID, Account: s.Backer, Amount: s.Amount})
	}
	tx.deleteStakes(o.ID)

	if err := tx.unlockItem(o.ItemID, o.ID); err != nil {
		return err
	}

	closed := o.clone()
	closed.State = StateCancelled
	closed.ClosedAt = tx.now
	tx.putOrder(closed)
	tx.emit(Event{Type: EventOrderCancelled, OrderID: o.ID, ItemID: o.ItemID, Account: caller, Counterparty: o.Seller})
	return nil
}
