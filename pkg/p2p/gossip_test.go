package p2p

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

func newNode(t *testing.T, ctx context.Context) *Gossip {
	t.Helper()
	g, err := NewGossip(ctx, Config{ListenAddr: "/ip4/127.0.0.1/tcp/0"})
	if err != nil {
		t.Fatalf("NewGossip: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestGossipTxAndBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := newNode(t, ctx)
	b := newNode(t, ctx)

	txs := make(chan []byte, 4)
	blocks := make(chan BlockWire, 4)
	b.SetHandlers(Handlers{
		OnTx:    func(raw []byte, _ peer.ID) { txs <- raw },
		OnBlock: func(bw BlockWire, _ peer.ID) { blocks <- bw },
	})
	selfTxs := make(chan []byte, 4)
	a.SetHandlers(Handlers{OnTx: func(raw []byte, _ peer.ID) { selfTxs <- raw }})

	if err := a.Connect(ctx, peer.AddrInfo{ID: b.Host().ID(), Addrs: b.Host().Addrs()}); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, "topic peers", func() bool {
		return len(a.TopicPeers(TopicTx)) > 0 && len(a.TopicPeers(TopicBlocks)) > 0
	})

	raw := []byte(`{"type":"place_bid","nonce":1}`)
	if err := a.PublishTx(ctx, raw); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-txs:
		if !bytes.Equal(got, raw) {
			t.Fatalf("tx = %s", got)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("tx not delivered")
	}

	if err := a.AnnounceBlock(ctx, BlockWire{Height: 9, Txs: 1, Proposer: "n1"}); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-blocks:
		if got.Height != 9 || got.Proposer != "n1" {
			t.Fatalf("block = %+v", got)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("block not delivered")
	}

	select {
	case <-selfTxs:
		t.Fatal("publisher received its own tx")
	case <-time.After(200 * time.Millisecond):
	}
}
