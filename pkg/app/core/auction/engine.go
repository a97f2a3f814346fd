package auction

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Engine owns orders, bids and stakes and drives them through the ledger and
// item registry. It is not safe for concurrent use: the caller applies
// operations one at a time in transaction order.
type Engine struct {
	params Params
	ledger Ledger
	items  Registry
	clock  Clock

	orders      map[uint64]*Order
	bids        map[uint64]*Bid     // order id -> current high bid
	stakes      map[uint64][]*Stake // order id -> stakes in first-stake order
	nextOrderID uint64

	Logger  *zap.SugaredLogger
	OnEvent func(Event) // called for each event of a committed operation
}

func NewEngine(params Params, l Ledger, items Registry, clock Clock) *Engine {
	return &Engine{
		params: params,
		ledger: l,
		items:  items,
		clock:  clock,
		orders: make(map[uint64]*Order),
		bids:   make(map[uint64]*Bid),
		stakes: make(map[uint64][]*Stake),
	}
}

func (e *Engine) Params() Params {
	return e.params
}

// run executes fn as one all-or-nothing operation
func (e *Engine) run(op string, fn func(tx *txn) error) error {
	tx := &txn{e: e, now: e.clock.CurrentHeight()}
	if err := fn(tx); err != nil {
		tx.rollback()
		if e.Logger != nil {
			e.Logger.Debugw("auction_op_rejected", "op", op, "height", tx.now, "err", err)
		}
		return err
	}
	for _, ev := range tx.events {
		if e.Logger != nil {
			e.Logger.Infow(string(ev.Type), "height", ev.Height, "order", ev.OrderID, "item", ev.ItemID,
				"account", ev.Account.Hex(), "amount", ev.Amount)
		}
		if e.OnEvent != nil {
			e.OnEvent(ev)
		}
	}
	return nil
}

func (e *Engine) undoErr(step string, err error) {
	if err != nil && e.Logger != nil {
		e.Logger.Errorw("auction_rollback_step_failed", "step", step, "err", err)
	}
}

// openOrder returns the order if it exists and is Open
func (e *Engine) openOrder(orderID uint64) (*Order, error) {
	o, ok := e.orders[orderID]
	if !ok {
		return nil, fail(ErrOrderNotFound, "order %d", orderID)
	}
	if o.State != StateOpen {
		return nil, fail(ErrOrderNotOpen, "order %d is %s", orderID, o.State)
	}
	return o, nil
}

// Order returns a copy of the order
func (e *Engine) Order(id uint64) (*Order, bool) {
	o, ok := e.orders[id]
	if !ok {
		return nil, false
	}
	return o.clone(), true
}

// Orders returns copies of all orders sorted by id
func (e *Engine) Orders() []*Order {
	out := make([]*Order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, o.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// OpenOrders returns copies of the Open orders sorted by id
func (e *Engine) OpenOrders() []*Order {
	out := make([]*Order, 0)
	for _, o := range e.Orders() {
		if o.State == StateOpen {
			out = append(out, o)
		}
	}
	return out
}

// DueOrders returns the ids of Open orders whose deadline has passed at height h
func (e *Engine) DueOrders(h Height) []uint64 {
	ids := make([]uint64, 0)
	for _, o := range e.OpenOrders() {
		if h >= o.KeepUntil {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// HighBid returns a copy of the current high bid
func (e *Engine) HighBid(orderID uint64) (*Bid, bool) {
	b, ok := e.bids[orderID]
	if !ok {
		return nil, false
	}
	cp := *b
	return &cp, true
}

// Stakes returns copies of the order's stakes in first-stake order
func (e *Engine) Stakes(orderID uint64) []*Stake {
	src := e.stakes[orderID]
	out := make([]*Stake, len(src))
	for i, s := range src {
		cp := *s
		out[i] = &cp
	}
	return out
}

// TotalStake returns the collateral locked on an order
func (e *Engine) TotalStake(orderID uint64) Balance {
	total := Balance(0)
	for _, s := range e.stakes[orderID] {
		total += s.Amount
	}
	return total
}

// Escrow returns, per account, the amount the engine holds reserved for live bids and stakes
func (e *Engine) Escrow() map[common.Address]Balance {
	out := make(map[common.Address]Balance)
	for _, b := range e.bids {
		out[b.Bidder] += b.Amount
	}
	for _, list := range e.stakes {
		for _, s := range list {
			out[s.Backer] += s.Amount
		}
	}
	return out
}

func (e *Engine) NextOrderID() uint64 {
	return e.nextOrderID
}

// Snapshot is the persisted engine state
type Snapshot struct {
	Orders      []*Order `json:"orders"`
	Bids        []*Bid   `json:"bids"`
	Stakes      []*Stake `json:"stakes"`
	NextOrderID uint64   `json:"nextOrderId"`
}

// Snapshot exports the engine state in deterministic order
func (e *Engine) Snapshot() *Snapshot {
	s := &Snapshot{Orders: e.Orders(), NextOrderID: e.nextOrderID}

	s.Bids = make([]*Bid, 0, len(e.bids))
	for _, b := range e.bids {
		cp := *b
		s.Bids = append(s.Bids, &cp)
	}
	sort.Slice(s.Bids, func(i, j int) bool { return s.Bids[i].OrderID < s.Bids[j].OrderID })

	s.Stakes = make([]*Stake, 0)
	for _, o := range s.Orders {
		s.Stakes = append(s.Stakes, e.Stakes(o.ID)...)
	}
	return s
}

// Restore replaces the engine state. Stakes keep their order within each order.
func (e *Engine) Restore(s *Snapshot) error {
	orders := make(map[uint64]*Order, len(s.Orders))
	for _, o := range s.Orders {
		if o.ID >= s.NextOrderID {
			return fmt.Errorf("order %d not below counter %d", o.ID, s.NextOrderID)
		}
		orders[o.ID] = o.clone()
	}

	bids := make(map[uint64]*Bid, len(s.Bids))
	for _, b := range s.Bids {
		o, ok := orders[b.OrderID]
		if !ok || o.State != StateOpen {
			return fmt.Errorf("bid for order %d which is not open", b.OrderID)
		}
		cp := *b
		bids[b.OrderID] = &cp
	}

	stakes := make(map[uint64][]*Stake)
	for _, st := range s.Stakes {
		o, ok := orders[st.OrderID]
		if !ok || o.State != StateOpen {
			return fmt.Errorf("stake for order %d which is not open", st.OrderID)
		}
		for _, existing := range stakes[st.OrderID] {
			if existing.Backer == st.Backer {
				return fmt.Errorf("duplicate stake by %s on order %d", st.Backer.Hex(), st.OrderID)
			}
		}
		cp := *st
		stakes[st.OrderID] = append(stakes[st.OrderID], &cp)
	}

	e.orders = orders
	e.bids = bids
	e.stakes = stakes
	e.nextOrderID = s.NextOrderID
	return nil
}
