package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperbid/pkg/app/core/auction"
	"github.com/uhyunpark/hyperbid/pkg/app/core/item"
	"github.com/uhyunpark/hyperbid/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperbid/pkg/consensus"
)

func openStore(t *testing.T, dir string) *PebbleStore {
	t.Helper()
	s, err := NewPebbleStore(filepath.Join(dir, "db"))
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	return s
}

func TestPebbleBlocks(t *testing.T) {
	s := openStore(t, t.TempDir())
	defer s.Close()

	if _, ok := s.GetCommitted(); ok {
		t.Fatal("fresh store should have no committed block")
	}

	b := consensus.Block{Height: 7, Payload: []byte("tx"), Proposer: "n1", Time: time.Unix(42, 0)}
	s.SaveBlock(b)
	h := consensus.HashOfBlock(b)
	s.SetCommitted(h)

	got, ok := s.GetBlock(h)
	if !ok || got.Height != 7 || string(got.Payload) != "tx" {
		t.Fatalf("GetBlock = %+v, %v", got, ok)
	}
	byHeight, ok := s.GetBlockByHeight(7)
	if !ok || consensus.HashOfBlock(byHeight) != h {
		t.Fatal("height index should point at saved block")
	}
	if _, ok := s.GetBlockByHeight(8); ok {
		t.Fatal("unexpected block at height 8")
	}
	if c, ok := s.GetCommitted(); !ok || c != h {
		t.Fatal("committed pointer mismatch")
	}
}

func sampleState() *State {
	seller := common.HexToAddress("0x01")
	bidder := common.HexToAddress("0x02")
	backer1 := common.HexToAddress("0x03")
	backer2 := common.HexToAddress("0x04")
	orderID := uint64(0)

	return &State{
		Height:  12,
		AppHash: consensus.Hash{9, 9, 9},
		Accounts: []*ledger.Account{
			{Address: seller, Free: 100, Nonce: 3},
			{Address: bidder, Free: 50, Reserved: 150},
		},
		Items: []*item.Item{
			{ID: 0, Owner: seller, Metadata: "ipfs://a", OrderID: &orderID},
			{ID: 2, Owner: bidder, Metadata: "ipfs://b"},
		},
		NextItemID: 3,
		Auction: &auction.Snapshot{
			Orders: []*auction.Order{
				{ID: 0, ItemID: 0, Seller: seller, StartPrice: 100, MaxPrice: 500, OpenedAt: 1, KeepUntil: 101, BidCount: 1},
				{ID: 1, ItemID: 1, Seller: seller, StartPrice: 100, MaxPrice: 200, State: auction.StateSettled, FinalPrice: 200, Buyer: bidder, ClosedAt: 5},
			},
			Bids: []*auction.Bid{{OrderID: 0, Bidder: bidder, Amount: 150, PlacedAt: 3}},
			// backer2 staked first; order must survive the round trip
			Stakes: []*auction.Stake{
				{OrderID: 0, Backer: backer2, Amount: 10, StakedAt: 2},
				{OrderID: 0, Backer: backer1, Amount: 30, StakedAt: 4},
			},
			NextOrderID: 2,
		},
	}
}

func TestPebbleStateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir)

	if _, ok, err := s.LoadState(); err != nil || ok {
		t.Fatalf("fresh store: ok=%v err=%v", ok, err)
	}

	want := sampleState()
	if err := s.SaveState(want); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s = openStore(t, dir)
	defer s.Close()
	got, ok, err := s.LoadState()
	if err != nil || !ok {
		t.Fatalf("LoadState: ok=%v err=%v", ok, err)
	}

	if got.Height != 12 || got.AppHash != want.AppHash || got.NextItemID != 3 || got.Auction.NextOrderID != 2 {
		t.Fatalf("meta mismatch: %+v", got)
	}
	if len(got.Accounts) != 2 || len(got.Items) != 2 || len(got.Auction.Orders) != 2 {
		t.Fatalf("counts: accounts=%d items=%d orders=%d", len(got.Accounts), len(got.Items), len(got.Auction.Orders))
	}
	if got.Items[0].OrderID == nil || *got.Items[0].OrderID != 0 {
		t.Error("item lock lost")
	}
	if got.Auction.Orders[1].State != auction.StateSettled || got.Auction.Orders[1].Buyer != want.Auction.Orders[1].Buyer {
		t.Errorf("settled order mismatch: %+v", got.Auction.Orders[1])
	}
	if len(got.Auction.Bids) != 1 || got.Auction.Bids[0].Amount != 150 {
		t.Errorf("bids: %+v", got.Auction.Bids)
	}
	if len(got.Auction.Stakes) != 2 || got.Auction.Stakes[0].Backer != want.Auction.Stakes[0].Backer {
		t.Errorf("stake order not preserved: %+v", got.Auction.Stakes)
	}
}

func TestPebbleSaveStateReplaces(t *testing.T) {
	s := openStore(t, t.TempDir())
	defer s.Close()

	if err := s.SaveState(sampleState()); err != nil {
		t.Fatal(err)
	}

	next := sampleState()
	next.Height = 13
	next.Items = next.Items[:1]
	next.Auction.Bids = nil
	next.Auction.Stakes = nil
	if err := s.SaveState(next); err != nil {
		t.Fatal(err)
	}

	got, _, err := s.LoadState()
	if err != nil {
		t.Fatal(err)
	}
	if got.Height != 13 || len(got.Items) != 1 || len(got.Auction.Bids) != 0 || len(got.Auction.Stakes) != 0 {
		t.Fatalf("stale rows survived: height=%d items=%d bids=%d stakes=%d",
			got.Height, len(got.Items), len(got.Auction.Bids), len(got.Auction.Stakes))
	}
}

func TestInMemoryBlockStore(t *testing.T) {
	s := NewInMemoryBlockStore()
	b := consensus.Block{Height: 1, Time: time.Unix(1, 0)}
	s.SaveBlock(b)
	if _, ok := s.GetBlockByHeight(1); !ok {
		t.Fatal("block by height missing")
	}
	if _, ok := s.GetCommitted(); ok {
		t.Fatal("nothing committed yet")
	}
	s.SetCommitted(consensus.HashOfBlock(b))
	if h, ok := s.GetCommitted(); !ok || h != consensus.HashOfBlock(b) {
		t.Fatal("committed mismatch")
	}
}

func TestFileWAL(t *testing.T) {
	w, err := NewFileWAL(filepath.Join(t.TempDir(), "wal.log"))
	if err != nil {
		t.Fatal(err)
	}
	w.Append("commit height=1")
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
}
