package params

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func missingEnv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestDefaultsWithoutEnv(t *testing.T) {
	cfg, err := LoadFromEnv(missingEnv(t))
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	def := Default()
	if cfg.Node.MinBlockTime != def.Node.MinBlockTime || cfg.Node.APIAddr != def.Node.APIAddr {
		t.Fatalf("node = %+v", cfg.Node)
	}
	if cfg.Auction.MinKeepBlocks != def.Auction.MinKeepBlocks || !cfg.Auction.ProfitRate.Equal(def.Auction.ProfitRate) {
		t.Fatalf("auction = %+v", cfg.Auction)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MIN_KEEP_BLOCKS", "5")
	t.Setenv("MAX_KEEP_BLOCKS", "50")
	t.Setenv("ANTI_SNIPE_BLOCKS", "3")
	t.Setenv("PROFIT_RATE", "0.25")
	t.Setenv("TREASURY_ADDRESS", "0x00000000000000000000000000000000000000aa")
	t.Setenv("NODE_MIN_BLOCK_TIME_MS", "0")
	t.Setenv("NODE_IN_MEMORY", "true")
	t.Setenv("P2P_BOOTSTRAP", "/ip4/10.0.0.1/tcp/1/p2p/a, /ip4/10.0.0.2/tcp/1/p2p/b")
	t.Setenv("TXFEEDER_INTERVAL_MS", "50")
	t.Setenv("FIX_RATE", "not-a-number")

	cfg, err := LoadFromEnv(missingEnv(t))
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	a := cfg.Auction
	if a.MinKeepBlocks != 5 || a.MaxKeepBlocks != 50 || a.AntiSnipeBlocks != 3 {
		t.Errorf("keep window = %d/%d/%d", a.MinKeepBlocks, a.MaxKeepBlocks, a.AntiSnipeBlocks)
	}
	if a.ProfitRate.String() != "0.25" {
		t.Errorf("profit rate = %s", a.ProfitRate)
	}
	if a.Treasury != common.HexToAddress("0xaa") {
		t.Errorf("treasury = %s", a.Treasury.Hex())
	}
	if a.FixRate != Default().Auction.FixRate {
		t.Errorf("malformed FIX_RATE should keep default, got %d", a.FixRate)
	}
	if cfg.Node.MinBlockTime != 0 || !cfg.Node.InMemory {
		t.Errorf("node = %+v", cfg.Node)
	}
	if len(cfg.Node.P2PBootstrap) != 2 || cfg.Node.P2PBootstrap[1] != "/ip4/10.0.0.2/tcp/1/p2p/b" {
		t.Errorf("bootstrap = %v", cfg.Node.P2PBootstrap)
	}
	if cfg.Feeder.Interval != 50*time.Millisecond {
		t.Errorf("feeder interval = %v", cfg.Feeder.Interval)
	}
}

func TestEnvFileBelowProcessEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	body := "API_ADDR=:9999\nNODE_ID=from-file\nMINIMUM_PRICE=250\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	// godotenv sets keys it loads; drop them so other tests see a clean env
	t.Cleanup(func() {
		os.Unsetenv("API_ADDR")
		os.Unsetenv("MINIMUM_PRICE")
	})
	t.Setenv("NODE_ID", "from-env")

	cfg, err := LoadFromEnv(path)
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Node.APIAddr != ":9999" || cfg.Auction.MinimumPrice != 250 {
		t.Errorf(".env values not applied: %+v", cfg.Node)
	}
	if cfg.Node.ID != "from-env" {
		t.Errorf("process env should win, got %q", cfg.Node.ID)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := []struct {
		key, value string
	}{
		{"PROFIT_RATE", "half"},
		{"PROFIT_RATE", "1.5"},
		{"TREASURY_ADDRESS", "fee5"},
		{"GENESIS_BALANCES", "0x00000000000000000000000000000000000000aa"},
		{"MAX_KEEP_BLOCKS", "1"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := LoadFromEnv(missingEnv(t)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseGenesisBalances(t *testing.T) {
	got, err := ParseGenesisBalances("0x00000000000000000000000000000000000000aa:100, 0x00000000000000000000000000000000000000bb:0")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Balance != 100 || got[1].Address != common.HexToAddress("0xbb") {
		t.Fatalf("balances = %+v", got)
	}

	bad := []string{
		"0x00000000000000000000000000000000000000aa:-1",
		"0x00000000000000000000000000000000000000aa:1,0x00000000000000000000000000000000000000aa:2",
		"nothex:5",
	}
	for _, s := range bad {
		if _, err := ParseGenesisBalances(s); err == nil {
			t.Errorf("ParseGenesisBalances(%q) should fail", s)
		}
	}
}

func TestGenesisFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	body := "accounts:\n  - address: \"0x00000000000000000000000000000000000000cc\"\n    balance: 42\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GENESIS_BALANCES", "0x00000000000000000000000000000000000000aa:7")
	t.Setenv("GENESIS_FILE", path)

	cfg, err := LoadFromEnv(missingEnv(t))
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	got := cfg.Genesis.Balances
	if len(got) != 2 || got[1].Address != common.HexToAddress("0xcc") || got[1].Balance != 42 {
		t.Fatalf("balances = %+v", got)
	}

	if err := os.WriteFile(path, []byte("accounts:\n  - address: nope\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromEnv(missingEnv(t)); err == nil {
		t.Fatal("invalid address in genesis file should fail")
	}
}
