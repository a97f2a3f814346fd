package auction

import "github.com/ethereum/go-ethereum/common"

type EventType string

const (
	EventItemCreated      EventType = "item_created"
	EventItemTransferred  EventType = "item_transferred"
	EventItemRemoved      EventType = "item_removed"
	EventOrderOpened      EventType = "order_opened"
	EventBidAccepted      EventType = "bid_accepted"
	EventBidRefunded      EventType = "bid_refunded"
	EventDeadlineExtended EventType = "deadline_extended"
	EventStakeAdded       EventType = "stake_added"
	EventStakeReleased    EventType = "stake_released"
	EventOrderSettled     EventType = "order_settled"
	EventOrderCancelled   EventType = "order_cancelled"
)

// Event is emitted after an operation commits. Fields not relevant to the type are zero.
//
//	Account:      actor (creator, seller, bidder, backer, buyer)
//	Counterparty: receiver or previous holder (new owner, refunded bidder, seller)
type Event struct {
	Type         EventType      `json:"type"`
	Height       Height         `json:"height"`
	ItemID       uint64         `json:"itemId"`
	OrderID      uint64         `json:"orderId"`
	Account      common.Address `json:"account"`
	Counterparty common.Address `json:"counterparty,omitempty"`
	Amount       Balance        `json:"amount,omitempty"`
	Reward       Balance        `json:"reward,omitempty"`
	KeepUntil    Height         `json:"keepUntil,omitempty"`
	Split        *Split         `json:"split,omitempty"`
}

// IsItemEvent reports whether the event concerns an item outside any order
func (e Event) IsItemEvent() bool {
	switch e.Type {
	case EventItemCreated, EventItemTransferred, EventItemRemoved:
		return true
	}
	return false
}
