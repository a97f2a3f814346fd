package auction

import "github.com/ethereum/go-ethereum/common"

// SettleOrder closes an order once its deadline has passed or its max price
// was reached. Any account may call it. An order that never received a bid is
// cancelled instead. A failed disbursement rewinds the whole settlement and
// leaves the order Open with all funds reserved.
func (e *Engine) SettleOrder(orderID uint64, caller common.Address) error {
	return e.run("settle_order", func(tx *txn) error {
		o, err := e.openOrder(orderID)
		if err != nil {
			return err
		}
		bid, hasBid := e.bids[orderID]
		// PlaceBid settles a max-price bid inline; an open order can only hold
		// one after Restore.
		maxReached := hasBid && bid.Amount >= o.MaxPrice
		if tx.now < o.KeepUntil && !maxReached {
			return fail(ErrDeadlineNotPassed, "order %d open until %d, now %d", orderID, o.KeepUntil, tx.now)
		}
		if !hasBid {
			return tx.cancel(o, caller)
		}
		return tx.settle(o, caller)
	})
}

// settle disburses the high bid, returns every stake with its reward and
// hands the item to the buyer
func (tx *txn) settle(o *Order, caller common.Address) error {
	e := tx.e
	bid := e.bids[o.ID]
	stakes := e.stakes[o.ID]
	buyer := bid.Bidder
	split := ComputeSplit(bid.Amount, o.StartPrice, stakes, e.params.FixRate, e.params.ProfitRate)

	// The buyer's escrow becomes free and is paid out from there
	if err := tx.release(buyer, bid.Amount); err != nil {
		return err
	}
	if err := tx.transfer(buyer, o.Seller, split.Seller); err != nil {
		return err
	}
	if err := tx.transfer(buyer, e.params.Treasury, split.Treasury); err != nil {
		return err
	}
	for i, r := range split.Rewards {
		if err := tx.transfer(buyer, r.Backer, r.Reward); err != nil {
			return err
		}
		if err := tx.release(r.Backer, stakes[i].Amount); err != nil {
			return err
		}
		tx.emit(Event{Type: EventStakeReleased, OrderID: o.ID, ItemID: o.ItemID, Account: r.Backer,
			Amount: r.Stake, Reward: r.Reward})
	}

	if err := tx.setOwner(o.ItemID, buyer); err != nil {
		return err
	}
	if err := tx.unlockItem(o.ItemID, o.ID); err != nil {
		return err
	}
	tx.deleteBid(o.ID)
	tx.deleteStakes(o.ID)

	closed := o.clone()
	closed.State = StateSettled
	closed.FinalPrice = bid.Amount
	closed.Buyer = buyer
	closed.ClosedAt = tx.now
	tx.putOrder(closed)

	tx.emit(Event{Type: EventOrderSettled, OrderID: o.ID, ItemID: o.ItemID, Account: buyer, Counterparty: o.Seller,
		Amount: bid.Amount, Split: &split})
	if e.Logger != nil {
		e.Logger.Debugw("order_split", "order", o.ID, "caller", caller.Hex(), "seller", split.Seller,
			"treasury", split.Treasury, "pool", split.Pool, "dust", split.Dust)
	}
	return nil
}
