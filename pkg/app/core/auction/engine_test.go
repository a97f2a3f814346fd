package auction

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperbid/pkg/app/core/item"
	"github.com/uhyunpark/hyperbid/pkg/app/core/ledger"
)

var (
	seller   = common.HexToAddress("0x5e11e50000000000000000000000000000000000")
	bidderA  = common.HexToAddress("0xA000000000000000000000000000000000000001")
	bidderB  = common.HexToAddress("0xB000000000000000000000000000000000000002")
	backer1  = common.HexToAddress("0xBAC0000000000000000000000000000000000001")
	backer2  = common.HexToAddress("0xBAC0000000000000000000000000000000000002")
	treasury = common.HexToAddress("0x000000000000000000000000000000000000fee5")
)

type manualClock struct{ h Height }

func (c *manualClock) CurrentHeight() Height { return c.h }

// failingLedger wraps a real ledger and fails the n-th Transfer call (1-based)
type failingLedger struct {
	*ledger.Manager
	failOn    int
	transfers int
}

func (f *failingLedger) Transfer(from, to common.Address, amount Balance) error {
	f.transfers++
	if f.transfers == f.failOn {
		return ledger.ErrReservedUnderflow
	}
	return f.Manager.Transfer(from, to, amount)
}

type fixture struct {
	t      *testing.T
	eng    *Engine
	ledger *ledger.Manager
	items  *item.Registry
	clock  *manualClock
	events []Event
}

func testParams() Params {
	return Params{
		MinKeepBlocks:     10,
		MaxKeepBlocks:     1000,
		MinimumPrice:      100,
		MinimumVotingLock: 10,
		FixRate:           10,
		ProfitRate:        decimal.RequireFromString("0.5"),
		AntiSnipeBlocks:   0,
		Treasury:          treasury,
	}
}

func newFixture(t *testing.T, p Params) *fixture {
	t.Helper()
	return newFixtureWithLedger(t, p, ledger.NewManager(), nil)
}

func newFixtureWithLedger(t *testing.T, p Params, m *ledger.Manager, l Ledger) *fixture {
	t.Helper()
	if l == nil {
		l = m
	}
	f := &fixture{t: t, ledger: m, items: item.NewRegistry(), clock: &manualClock{h: 1}}
	f.eng = NewEngine(p, l, f.items, f.clock)
	f.eng.OnEvent = func(ev Event) { f.events = append(f.events, ev) }
	for _, a := range []common.Address{seller, bidderA, bidderB, backer1, backer2} {
		if err := m.Deposit(a, 1000); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}
	return f
}

// openDefault creates an item for the seller and opens start=100 max=500 window=100
func (f *fixture) openDefault() uint64 {
	f.t.Helper()
	itemID, err := f.eng.CreateItem(seller, "item")
	if err != nil {
		f.t.Fatalf("create item: %v", err)
	}
	id, err := f.eng.OpenOrder(seller, itemID, 100, 500, 100)
	if err != nil {
		f.t.Fatalf("open order: %v", err)
	}
	return id
}

func (f *fixture) mustOK(err error) {
	f.t.Helper()
	if err != nil {
		f.t.Fatalf("unexpected error: %v", err)
	}
}

func (f *fixture) eventCount(typ EventType) int {
	n := 0
	for _, ev := range f.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// checkEscrow asserts the ledger holds exactly what the engine thinks is escrowed
func (f *fixture) checkEscrow() {
	f.t.Helper()
	escrow := f.eng.Escrow()
	for _, acc := range f.ledger.Accounts() {
		if acc.Reserved != escrow[acc.Address] {
			f.t.Errorf("%s reserved %d, engine escrow %d", acc.Address.Hex(), acc.Reserved, escrow[acc.Address])
		}
	}
}

func TestErrorMatching(t *testing.T) {
	err := fail(ErrBidTooLow, "bid %d", 5)

	if !errors.Is(err, ErrBidTooLow) {
		t.Error("code sentinel should match")
	}
	if !errors.Is(err, ErrValidation) {
		t.Error("kind sentinel should match")
	}
	if errors.Is(err, ErrState) || errors.Is(err, ErrPriceTooLow) {
		t.Error("unrelated sentinel matched")
	}
	if KindOf(err) != KindValidation || CodeOf(err) != "BidTooLow" {
		t.Errorf("kind=%s code=%s", KindOf(err), CodeOf(err))
	}

	mapped := mapErr(ledger.ErrInsufficientBalance)
	if !errors.Is(mapped, ErrInsufficientBalance) || !errors.Is(mapped, ErrFunds) {
		t.Errorf("mapped ledger error = %v", mapped)
	}
	if !errors.Is(mapped, ledger.ErrInsufficientBalance) {
		t.Error("mapped error should unwrap to the ledger cause")
	}
	if !errors.Is(mapErr(item.ErrItemInAuction), ErrItemInAuction) {
		t.Error("item lock error not mapped")
	}
}

func TestParamsValidate(t *testing.T) {
	if err := DefaultParams().Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *Params)
	}{
		{"zero min window", func(p *Params) { p.MinKeepBlocks = 0 }},
		{"max below min", func(p *Params) { p.MaxKeepBlocks = p.MinKeepBlocks - 1 }},
		{"zero minimum price", func(p *Params) { p.MinimumPrice = 0 }},
		{"zero voting lock", func(p *Params) { p.MinimumVotingLock = 0 }},
		{"negative fix rate", func(p *Params) { p.FixRate = -1 }},
		{"profit rate above one", func(p *Params) { p.ProfitRate = decimal.RequireFromString("1.01") }},
		{"negative profit rate", func(p *Params) { p.ProfitRate = decimal.RequireFromString("-0.1") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestItemOperations(t *testing.T) {
	f := newFixture(t, testParams())

	id, err := f.eng.CreateItem(seller, "meta")
	f.mustOK(err)
	f.mustOK(f.eng.TransferItem(id, seller, bidderA))

	if err := f.eng.TransferItem(id, seller, bidderB); !errors.Is(err, ErrNotOwner) {
		t.Errorf("err = %v, want NotOwner", err)
	}
	if _, err := f.eng.OpenOrder(bidderA, id, 100, 200, 10); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := f.eng.TransferItem(id, bidderA, bidderB); !errors.Is(err, ErrItemInAuction) {
		t.Errorf("transfer in auction: err = %v, want ItemInAuction", err)
	}
	if err := f.eng.RemoveItem(id, bidderA); !errors.Is(err, ErrItemInAuction) {
		t.Errorf("remove in auction: err = %v, want ItemInAuction", err)
	}
	if err := f.eng.RemoveItem(99, bidderA); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("remove missing: err = %v, want ItemNotFound", err)
	}

	if f.eventCount(EventItemCreated) != 1 || f.eventCount(EventItemTransferred) != 1 {
		t.Errorf("item events = %+v", f.events)
	}
}

func TestSnapshotRestore(t *testing.T) {
	f := newFixture(t, testParams())
	id := f.openDefault()
	f.mustOK(f.eng.AddStake(id, backer1, 40))
	f.mustOK(f.eng.AddStake(id, backer2, 60))
	f.mustOK(f.eng.PlaceBid(id, bidderA, 150))
	other := f.openDefault()
	f.mustOK(f.eng.CancelOrder(other, seller))

	snap := f.eng.Snapshot()
	if len(snap.Orders) != 2 || len(snap.Bids) != 1 || len(snap.Stakes) != 2 || snap.NextOrderID != 2 {
		t.Fatalf("snapshot = %+v", snap)
	}

	restored := NewEngine(testParams(), f.ledger, f.items, f.clock)
	f.mustOK(restored.Restore(snap))

	if restored.TotalStake(id) != 100 {
		t.Errorf("total stake = %d, want 100", restored.TotalStake(id))
	}
	stakes := restored.Stakes(id)
	if stakes[0].Backer != backer1 || stakes[1].Backer != backer2 {
		t.Error("stake order not preserved")
	}
	if b, ok := restored.HighBid(id); !ok || b.Amount != 150 {
		t.Errorf("high bid = %+v", b)
	}
	if restored.NextOrderID() != 2 {
		t.Errorf("next order id = %d, want 2", restored.NextOrderID())
	}

	// A bid on a closed order is rejected
	bad := *snap
	bad.Bids = []*Bid{{OrderID: other, Bidder: bidderA, Amount: 1}}
	if err := restored.Restore(&bad); err == nil {
		t.Error("expected error for bid on cancelled order")
	}
}
