package nft

import (
	"testing"

	"github.com/uhyunpark/hyperbid/pkg/abci"
)

func TestTxGeneratorTraffic(t *testing.T) {
	cfg := testConfig(t)
	cfg.AutoSettle = true
	app, err := NewApp(cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	gen, err := NewTxGenerator(4, 7, app, cfg.Domain)
	if err != nil {
		t.Fatal(err)
	}

	supply := app.Status().TotalSupply
	seen := map[string]int{}
	for height := int64(1); height <= 60; height++ {
		resp := app.FinalizeBlock(abci.RequestFinalizeBlock{Height: height, Txs: gen.GenerateBatch(4)})
		for _, r := range resp.TxResults {
			if r.Code == CodeInvalidSignature || r.Code == CodeNonceTooLow || r.Code == CodeInvalidTx {
				t.Fatalf("height %d: generator produced a malformed tx: %+v", height, r)
			}
			seen[r.Code]++
		}
	}

	if seen[""] == 0 {
		t.Fatal("no generated tx succeeded")
	}
	if got := app.Status().TotalSupply; got != supply {
		t.Fatalf("supply moved from %d to %d", supply, got)
	}
	if len(app.Items(nil)) == 0 {
		t.Fatal("generator never minted")
	}
}

func TestTxGeneratorDeterministic(t *testing.T) {
	cfg := testConfig(t)
	a1, _ := NewApp(cfg, nil, nil)
	a2, _ := NewApp(cfg, nil, nil)
	g1, _ := NewTxGenerator(4, 99, a1, cfg.Domain)
	g2, _ := NewTxGenerator(4, 99, a2, cfg.Domain)

	for height := int64(1); height <= 10; height++ {
		r1 := a1.FinalizeBlock(abci.RequestFinalizeBlock{Height: height, Txs: g1.GenerateBatch(3)})
		r2 := a2.FinalizeBlock(abci.RequestFinalizeBlock{Height: height, Txs: g2.GenerateBatch(3)})
		if r1.AppHash != r2.AppHash {
			t.Fatalf("height %d: same seed diverged", height)
		}
	}
}

func TestNewTxGeneratorNeedsTwoAccounts(t *testing.T) {
	app, _ := NewApp(testConfig(t), nil, nil)
	if _, err := NewTxGenerator(1, 1, app, testConfig(t).Domain); err == nil {
		t.Fatal("expected error for a single account")
	}
}
