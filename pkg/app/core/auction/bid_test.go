package auction

import (
	"errors"
	"testing"
)

func TestPlaceBidRefundsPreviousBidder(t *testing.T) {
	f := newFixture(t, testParams())
	id := f.openDefault()

	f.mustOK(f.eng.PlaceBid(id, bidderA, 150))
	if f.ledger.Reserved(bidderA) != 150 || f.ledger.Free(bidderA) != 850 {
		t.Fatalf("A free=%d reserved=%d", f.ledger.Free(bidderA), f.ledger.Reserved(bidderA))
	}

	f.mustOK(f.eng.PlaceBid(id, bidderB, 200))
	if f.ledger.Reserved(bidderA) != 0 || f.ledger.Free(bidderA) != 1000 {
		t.Errorf("A not refunded: free=%d reserved=%d", f.ledger.Free(bidderA), f.ledger.Reserved(bidderA))
	}
	if f.ledger.Reserved(bidderB) != 200 {
		t.Errorf("B reserved=%d, want 200", f.ledger.Reserved(bidderB))
	}

	b, _ := f.eng.HighBid(id)
	if b.Bidder != bidderB || b.Amount != 200 {
		t.Errorf("high bid = %+v", b)
	}
	o, _ := f.eng.Order(id)
	if o.BidCount != 2 {
		t.Errorf("bid count = %d, want 2", o.BidCount)
	}
	if f.eventCount(EventBidRefunded) != 1 || f.eventCount(EventBidAccepted) != 2 {
		t.Errorf("events = %+v", f.events)
	}
	f.checkEscrow()
}

func TestPlaceBidRejections(t *testing.T) {
	f := newFixture(t, testParams())
	id := f.openDefault()
	f.mustOK(f.eng.PlaceBid(id, bidderA, 150))

	tests := []struct {
		name    string
		orderID uint64
		amount  Balance
		bidder  int
		wantErr error
	}{
		{"equal to high bid", id, 150, 1, ErrBidTooLow},
		{"below high bid", id, 120, 1, ErrBidTooLow},
		{"zero", id, 0, 1, ErrInvalidAmount},
		{"seller", id, 300, 2, ErrSellerCannotBid},
		{"missing order", 42, 300, 1, ErrOrderNotFound},
		{"insufficient", id, 400, 3, ErrInsufficientBalance},
	}

	poor := backer2
	f.mustOK(f.ledger.Transfer(poor, backer1, 700)) // 300 left

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			who := bidderB
			switch tt.bidder {
			case 2:
				who = seller
			case 3:
				who = poor
			}
			before := f.ledger.Reserved(who)
			err := f.eng.PlaceBid(tt.orderID, who, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if f.ledger.Reserved(who) != before {
				t.Error("rejected bid moved funds")
			}
		})
	}

	b, _ := f.eng.HighBid(id)
	if b.Bidder != bidderA || b.Amount != 150 {
		t.Errorf("high bid changed: %+v", b)
	}
	f.checkEscrow()
}

func TestFirstBidMustExceedStart(t *testing.T) {
	f := newFixture(t, testParams())
	id := f.openDefault()

	if err := f.eng.PlaceBid(id, bidderA, 100); !errors.Is(err, ErrBidTooLow) {
		t.Fatalf("err = %v, want BidTooLow", err)
	}
	f.mustOK(f.eng.PlaceBid(id, bidderA, 101))
}

func TestBidAfterDeadline(t *testing.T) {
	f := newFixture(t, testParams())
	id := f.openDefault() // keep until 101

	f.clock.h = 101
	if err := f.eng.PlaceBid(id, bidderA, 150); !errors.Is(err, ErrDeadlinePassed) {
		t.Fatalf("err = %v, want DeadlinePassed", err)
	}
}

func TestRaiseOwnBidNeedsOnlyDifference(t *testing.T) {
	f := newFixture(t, testParams())
	id := f.openDefault()

	f.mustOK(f.eng.PlaceBid(id, bidderA, 400))
	// Leave only 20 free next to the 400 in escrow
	f.mustOK(f.ledger.Transfer(bidderA, bidderB, 580)) // 20 free

	f.mustOK(f.eng.PlaceBid(id, bidderA, 420))
	if f.ledger.Reserved(bidderA) != 420 || f.ledger.Free(bidderA) != 0 {
		t.Errorf("free=%d reserved=%d, want 0/420", f.ledger.Free(bidderA), f.ledger.Reserved(bidderA))
	}

	if err := f.eng.PlaceBid(id, bidderA, 421); !errors.Is(err, ErrInsufficientBalance) {
		t.Errorf("err = %v, want InsufficientBalance", err)
	}
	f.checkEscrow()
}

func TestBidAtMaxPriceSettlesInline(t *testing.T) {
	f := newFixture(t, testParams())
	id := f.openDefault()
	f.mustOK(f.eng.PlaceBid(id, bidderA, 150))

	// Above max is capped at max
	f.mustOK(f.eng.PlaceBid(id, bidderB, 900))

	o, _ := f.eng.Order(id)
	if o.State != StateSettled || o.FinalPrice != 500 || o.Buyer != bidderB {
		t.Fatalf("order = %+v", o)
	}
	if f.ledger.Free(bidderB) != 500 || f.ledger.Reserved(bidderB) != 0 {
		t.Errorf("B free=%d reserved=%d, want 500/0", f.ledger.Free(bidderB), f.ledger.Reserved(bidderB))
	}
	if f.ledger.Free(bidderA) != 1000 {
		t.Errorf("A free=%d, want 1000", f.ledger.Free(bidderA))
	}
	if owner, _ := f.items.Owner(0); owner != bidderB {
		t.Errorf("owner = %s, want bidderB", owner.Hex())
	}
	if f.items.Locked(0) {
		t.Error("item still locked")
	}
	f.checkEscrow()
}

func TestBidOnStartEqualsMaxOrder(t *testing.T) {
	f := newFixture(t, testParams())
	itemID, _ := f.eng.CreateItem(seller, "")
	id, err := f.eng.OpenOrder(seller, itemID, 200, 200, 10)
	f.mustOK(err)

	f.mustOK(f.eng.PlaceBid(id, bidderA, 200))
	o, _ := f.eng.Order(id)
	if o.State != StateSettled || o.FinalPrice != 200 {
		t.Fatalf("order = %+v", o)
	}
	// No profit: seller gets everything
	if f.ledger.Free(seller) != 1200 {
		t.Errorf("seller free = %d, want 1200", f.ledger.Free(seller))
	}
}

func TestAntiSnipeExtension(t *testing.T) {
	p := testParams()
	p.AntiSnipeBlocks = 20
	p.MaxKeepBlocks = 130
	f := newFixture(t, p)
	id := f.openDefault() // opened 1, keep until 101, hard limit 131

	// Outside the trailing window: no change
	f.clock.h = 50
	f.mustOK(f.eng.PlaceBid(id, bidderA, 150))
	if o, _ := f.eng.Order(id); o.KeepUntil != 101 {
		t.Fatalf("keep until = %d, want 101", o.KeepUntil)
	}

	f.clock.h = 85
	f.mustOK(f.eng.PlaceBid(id, bidderB, 160))
	if o, _ := f.eng.Order(id); o.KeepUntil != 121 {
		t.Fatalf("keep until = %d, want 121", o.KeepUntil)
	}

	// Capped at OpenedAt + MaxKeepBlocks
	f.clock.h = 120
	f.mustOK(f.eng.PlaceBid(id, bidderA, 170))
	if o, _ := f.eng.Order(id); o.KeepUntil != 131 {
		t.Fatalf("keep until = %d, want 131", o.KeepUntil)
	}

	// At the cap no further extension
	f.clock.h = 125
	f.mustOK(f.eng.PlaceBid(id, bidderB, 180))
	if o, _ := f.eng.Order(id); o.KeepUntil != 131 {
		t.Fatalf("keep until = %d, want 131", o.KeepUntil)
	}

	if f.eventCount(EventDeadlineExtended) != 2 {
		t.Errorf("extension events = %d, want 2", f.eventCount(EventDeadlineExtended))
	}
}
