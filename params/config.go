package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/uhyunpark/hyperbid/pkg/app/core/auction"
)

type Node struct {
	ID string
	// MinBlockTime throttles block production. 200ms gives 5 blocks/sec on devnet.
	MinBlockTime time.Duration
	SkipEmpty    bool

	DataDir  string
	InMemory bool // no Pebble, state is lost on exit

	APIAddr     string
	CORSOrigins []string

	P2PListen    string
	P2PBootstrap []string

	LogFile    string
	LogLevel   string
	Verbose    bool
	AutoSettle bool
}

type Feeder struct {
	Enabled     bool
	BatchSize   int
	Interval    time.Duration
	NumAccounts int
	Seed        int64
}

// GenesisBalance funds one account at height 0
type GenesisBalance struct {
	Address common.Address
	Balance int64
}

type Genesis struct {
	Balances []GenesisBalance
	// DevnetAccounts funds the first N deterministic devnet keys with DevnetBalance each
	DevnetAccounts int
	DevnetBalance  int64
}

type Config struct {
	Auction auction.Params
	Node    Node
	Feeder  Feeder
	Genesis Genesis
}

func Default() Config {
	return Config{
		Auction: auction.DefaultParams(),
		Node: Node{
			ID:           "node-1",
			MinBlockTime: 200 * time.Millisecond,
			DataDir:      "data",
			APIAddr:      ":8080",
			CORSOrigins:  []string{"*"},
			P2PListen:    "/ip4/0.0.0.0/tcp/26656",
			LogFile:      "data/node.log",
			LogLevel:     "info",
			AutoSettle:   true,
		},
		Feeder: Feeder{
			BatchSize:   5,
			Interval:    500 * time.Millisecond,
			NumAccounts: 10,
			Seed:        1,
		},
		Genesis: Genesis{
			DevnetAccounts: 10,
			DevnetBalance:  1_000_000,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
//
// Malformed integers and booleans are ignored; malformed rates, addresses
// and genesis entries are errors.
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	// Auction
	a := &cfg.Auction
	a.MinKeepBlocks = getUint("MIN_KEEP_BLOCKS", a.MinKeepBlocks)
	a.MaxKeepBlocks = getUint("MAX_KEEP_BLOCKS", a.MaxKeepBlocks)
	a.AntiSnipeBlocks = getUint("ANTI_SNIPE_BLOCKS", a.AntiSnipeBlocks)
	a.MinimumPrice = getInt("MINIMUM_PRICE", a.MinimumPrice)
	a.MinimumVotingLock = getInt("MINIMUM_VOTING_LOCK", a.MinimumVotingLock)
	a.FixRate = getInt("FIX_RATE", a.FixRate)

	if v := os.Getenv("PROFIT_RATE"); v != "" {
		rate, err := decimal.NewFromString(v)
		if err != nil {
			return cfg, fmt.Errorf("PROFIT_RATE: %w", err)
		}
		a.ProfitRate = rate
	}
	if v := os.Getenv("TREASURY_ADDRESS"); v != "" {
		if !common.IsHexAddress(v) {
			return cfg, fmt.Errorf("TREASURY_ADDRESS: invalid address %q", v)
		}
		a.Treasury = common.HexToAddress(v)
	}
	if err := a.Validate(); err != nil {
		return cfg, fmt.Errorf("auction params: %w", err)
	}

	// Node
	n := &cfg.Node
	n.ID = getEnv("NODE_ID", n.ID)
	if ms := getInt("NODE_MIN_BLOCK_TIME_MS", -1); ms >= 0 {
		n.MinBlockTime = time.Duration(ms) * time.Millisecond
	}
	n.SkipEmpty = getBool("NODE_SKIP_EMPTY_BLOCKS", n.SkipEmpty)
	n.DataDir = getEnv("DATA_DIR", n.DataDir)
	n.InMemory = getBool("NODE_IN_MEMORY", n.InMemory)
	n.APIAddr = getEnv("API_ADDR", n.APIAddr)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		n.CORSOrigins = splitList(v)
	}
	n.P2PListen = getEnv("P2P_LISTEN", n.P2PListen)
	if v := os.Getenv("P2P_BOOTSTRAP"); v != "" {
		n.P2PBootstrap = splitList(v)
	}
	n.LogFile = getEnv("LOG_FILE", n.LogFile)
	n.LogLevel = getEnv("LOG_LEVEL", n.LogLevel)
	n.Verbose = getBool("VERBOSE", n.Verbose)
	n.AutoSettle = getBool("AUTO_SETTLE", n.AutoSettle)

	// Feeder
	f := &cfg.Feeder
	f.Enabled = getBool("TXFEEDER_ENABLED", f.Enabled)
	f.BatchSize = int(getInt("TXFEEDER_BATCH", int64(f.BatchSize)))
	if ms := getInt("TXFEEDER_INTERVAL_MS", 0); ms > 0 {
		f.Interval = time.Duration(ms) * time.Millisecond
	}
	f.NumAccounts = int(getInt("TXFEEDER_ACCOUNTS", int64(f.NumAccounts)))
	f.Seed = getInt("TXFEEDER_SEED", f.Seed)

	// Genesis
	g := &cfg.Genesis
	g.DevnetAccounts = int(getInt("DEVNET_ACCOUNTS", int64(g.DevnetAccounts)))
	g.DevnetBalance = getInt("DEVNET_BALANCE", g.DevnetBalance)
	if v := os.Getenv("GENESIS_BALANCES"); v != "" {
		balances, err := ParseGenesisBalances(v)
		if err != nil {
			return cfg, fmt.Errorf("GENESIS_BALANCES: %w", err)
		}
		g.Balances = balances
	}
	if path := os.Getenv("GENESIS_FILE"); path != "" {
		balances, err := LoadGenesisFile(path)
		if err != nil {
			return cfg, fmt.Errorf("GENESIS_FILE: %w", err)
		}
		g.Balances = append(g.Balances, balances...)
	}
	if f.Enabled && g.DevnetAccounts < f.NumAccounts {
		return cfg, fmt.Errorf("feeder uses %d accounts but only %d devnet accounts are funded", f.NumAccounts, g.DevnetAccounts)
	}

	return cfg, nil
}

// ParseGenesisBalances parses "0xaddr:amount,0xaddr:amount"
func ParseGenesisBalances(s string) ([]GenesisBalance, error) {
	var out []GenesisBalance
	seen := make(map[common.Address]bool)
	for _, entry := range splitList(s) {
		addr, amt, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("entry %q: want address:amount", entry)
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("entry %q: invalid address", entry)
		}
		bal, err := strconv.ParseInt(strings.TrimSpace(amt), 10, 64)
		if err != nil || bal < 0 {
			return nil, fmt.Errorf("entry %q: invalid amount", entry)
		}
		a := common.HexToAddress(addr)
		if seen[a] {
			return nil, fmt.Errorf("entry %q: duplicate address", entry)
		}
		seen[a] = true
		out = append(out, GenesisBalance{Address: a, Balance: bal})
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getUint(key string, def uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
