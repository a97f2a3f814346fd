package auction

import "github.com/ethereum/go-ethereum/common"

// Item bookkeeping. The registry enforces ownership and the auction lock;
// these wrappers map its errors and emit events.

// CreateItem registers a new item owned by owner
func (e *Engine) CreateItem(owner common.Address, metadata string) (uint64, error) {
	var id uint64
	err := e.run("create_item", func(tx *txn) error {
		it, err := e.items.Create(owner, metadata)
		if err != nil {
			return mapErr(err)
		}
		id = it.ID
		tx.emit(Event{Type: EventItemCreated, ItemID: id, Account: owner})
		return nil
	})
	return id, err
}

// TransferItem moves an item that is not in an auction
func (e *Engine) TransferItem(itemID uint64, caller, to common.Address) error {
	return e.run("transfer_item", func(tx *txn) error {
		if err := e.items.Transfer(itemID, caller, to); err != nil {
			return mapErr(err)
		}
		tx.emit(Event{Type: EventItemTransferred, ItemID: itemID, Account: caller, Counterparty: to})
		return nil
	})
}

// RemoveItem deletes an item that is not in an auction
func (e *Engine) RemoveItem(itemID uint64, caller common.Address) error {
	return e.run("remove_item", func(tx *txn) error {
		if err := e.items.Remove(itemID, caller); err != nil {
			return mapErr(err)
		}
		tx.emit(Event{Type: EventItemRemoved, ItemID: itemID, Account: caller})
		return nil
	})
}
