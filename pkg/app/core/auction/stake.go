package auction

import "github.com/ethereum/go-ethereum/common"

// AddStake locks collateral on an open order. Repeated stakes by the same
// backer accumulate into one entry. Stakes are released only when the order
// closes.
func (e *Engine) AddStake(orderID uint64, backer common.Address, amount Balance) error {
	return e.run("add_stake", func(tx *txn) error {
		o, err := e.openOrder(orderID)
		if err != nil {
			return err
		}
		if tx.now >= o.KeepUntil {
			return fail(ErrDeadlinePassed, "order %d closed at %d, now %d", orderID, o.KeepUntil, tx.now)
		}
		if amount < e.params.MinimumVotingLock {
			return fail(ErrBelowMinimumVoting, "stake %d below minimum %d", amount, e.params.MinimumVotingLock)
		}
		if free := e.ledger.Free(backer); free < amount {
			return fail(ErrInsufficientBalance, "%s has %d free, stake %d", backer.Hex(), free, amount)
		}
		if err := tx.reserve(backer, amount); err != nil {
			return err
		}

		current := e.stakes[orderID]
		next := make([]*Stake, 0, len(current)+1)
		total := amount
		found := false
		for _, s := range current {
			if s.Backer == backer {
				acc := *s
				acc.Amount += amount
				total = acc.Amount
				next = append(next, &acc)
				found = true
				continue
			}
			next = append(next, s)
		}
		if !found {
			next = append(next, &Stake{OrderID: orderID, Backer: backer, Amount: amount, StakedAt: tx.now})
		}
		tx.putStakes(orderID, next)

		tx.emit(Event{Type: EventStakeAdded, OrderID: orderID, ItemID: o.ItemID, Account: backer, Amount: total})
		return nil
	})
}
