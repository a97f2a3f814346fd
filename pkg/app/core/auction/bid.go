package auction

import "github.com/ethereum/go-ethereum/common"

// PlaceBid replaces the order's high bid. The new amount is reserved from the
// bidder and the displaced bid is released in full. An amount at or above the
// max price is capped there and the order settles in the same operation.
func (e *Engine) PlaceBid(orderID uint64, bidder common.Address, amount Balance) error {
	return e.run("place_bid", func(tx *txn) error {
		if amount <= 0 {
			return fail(ErrInvalidAmount, "bid %d", amount)
		}
		o, err := e.openOrder(orderID)
		if err != nil {
			return err
		}
		if tx.now >= o.KeepUntil {
			return fail(ErrDeadlinePassed, "order %d closed at %d, now %d", orderID, o.KeepUntil, tx.now)
		}
		if bidder == o.Seller {
			return fail(ErrSellerCannotBid, "order %d", orderID)
		}

		prev, hasPrev := e.bids[orderID]
		floor := o.StartPrice
		if hasPrev {
			floor = prev.Amount
		}
		// Reaching the max price always wins, which also lets an order with
		// start == max be bought.
		if amount <= floor && amount < o.MaxPrice {
			return fail(ErrBidTooLow, "bid %d must exceed %d", amount, floor)
		}
		if amount > o.MaxPrice {
			amount = o.MaxPrice
		}

		// A bidder raising their own bid only needs the difference
		available := e.ledger.Free(bidder)
		if hasPrev && prev.Bidder == bidder {
			available += prev.Amount
		}
		if available < amount {
			return fail(ErrInsufficientBalance, "%s has %d available, bid %d", bidder.Hex(), available, amount)
		}

		if hasPrev {
			if err := tx.release(prev.Bidder, prev.Amount); err != nil {
				return err
			}
			tx.emit(Event{Type: EventBidRefunded, OrderID: orderID, ItemID: o.ItemID, Account: prev.Bidder, Amount: prev.Amount})
		}
		if err := tx.reserve(bidder, amount); err != nil {
			return err
		}
		tx.putBid(&Bid{OrderID: orderID, Bidder: bidder, Amount: amount, PlacedAt: tx.now})

		updated := o.clone()
		updated.BidCount++
		tx.putOrder(updated)
		tx.emit(Event{Type: EventBidAccepted, OrderID: orderID, ItemID: o.ItemID, Account: bidder, Amount: amount})

		if amount == o.MaxPrice {
			return tx.settle(updated, bidder)
		}
		tx.extendDeadline(updated)
		return nil
	})
}

// extendDeadline pushes KeepUntil when a bid lands in the trailing window,
// never past OpenedAt + MaxKeepBlocks
func (tx *txn) extendDeadline(o *Order) {
	window := tx.e.params.AntiSnipeBlocks
	if window == 0 || o.KeepUntil-tx.now > window {
		return
	}
	limit := o.OpenedAt + tx.e.params.MaxKeepBlocks
	next := o.KeepUntil + window
	if next > limit {
		next = limit
	}
	if next <= o.KeepUntil {
		return
	}

	extended := o.clone()
	extended.KeepUntil = next
	tx.putOrder(extended)
	tx.emit(Event{Type: EventDeadlineExtended, OrderID: o.ID, ItemID: o.ItemID, KeepUntil: next})
}
