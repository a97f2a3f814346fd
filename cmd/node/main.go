package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperbid/params"
	"github.com/uhyunpark/hyperbid/pkg/abci"
	"github.com/uhyunpark/hyperbid/pkg/api"
	"github.com/uhyunpark/hyperbid/pkg/app/core/auction"
	"github.com/uhyunpark/hyperbid/pkg/app/nft"
	"github.com/uhyunpark/hyperbid/pkg/consensus"
	"github.com/uhyunpark/hyperbid/pkg/crypto"
	"github.com/uhyunpark/hyperbid/pkg/p2p"
	"github.com/uhyunpark/hyperbid/pkg/storage"
	"github.com/uhyunpark/hyperbid/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile, "level", cfg.Node.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Storage ----
	var (
		blocks consensus.BlockStore
		state  nft.StateStore
		wal    consensus.WAL = storage.NewNopWAL()
	)
	if cfg.Node.InMemory {
		blocks = storage.NewInMemoryBlockStore()
		sugar.Warn("in_memory_mode - state is lost on exit")
	} else {
		db, err := storage.NewPebbleStore(filepath.Join(cfg.Node.DataDir, "chain"))
		if err != nil {
			sugar.Fatalw("pebble_open_failed", "dir", cfg.Node.DataDir, "err", err)
		}
		defer db.Close()
		blocks, state = db, db

		fw, err := storage.NewFileWAL(filepath.Join(cfg.Node.DataDir, "commits.wal"))
		if err != nil {
			sugar.Fatalw("wal_open_failed", "err", err)
		}
		defer fw.Close()
		wal = fw
	}

	// ---- App ----
	genesis, err := buildGenesis(cfg.Genesis)
	if err != nil {
		sugar.Fatalw("genesis_failed", "err", err)
	}
	app, err := nft.NewApp(nft.Config{
		Params:     cfg.Auction,
		Genesis:    genesis,
		Domain:     crypto.DefaultDomain(),
		AutoSettle: cfg.Node.AutoSettle,
	}, state, sugar)
	if err != nil {
		sugar.Fatalw("app_init_failed", "err", err)
	}
	bridge := &abci.Bridge{App: app, Logger: sugar}

	// ---- Block production ----
	producer := consensus.NewProducer(bridge, blocks, util.RealClock{}, consensus.NodeID(cfg.Node.ID))
	producer.MinBlockTime = cfg.Node.MinBlockTime
	producer.SkipEmpty = cfg.Node.SkipEmpty
	producer.Logger = sugar
	producer.VerboseLogging = cfg.Node.Verbose
	producer.WAL = wal

	sugar.Infow("block_time_config", "min_block_time_ms", cfg.Node.MinBlockTime.Milliseconds(), "skip_empty", cfg.Node.SkipEmpty)

	// ---- P2P ----
	gossip, err := p2p.NewGossip(ctx, p2p.Config{
		ListenAddr: cfg.Node.P2PListen,
		Bootstrap:  cfg.Node.P2PBootstrap,
		Logger:     sugar,
	})
	if err != nil {
		sugar.Fatalw("p2p_init_failed", "err", err)
	}
	defer gossip.Close()
	gossip.SetHandlers(p2p.Handlers{
		OnTx: func(raw []byte, from peer.ID) {
			if _, err := app.PushTx(raw); err != nil && cfg.Node.Verbose {
				sugar.Debugw("gossip_tx_rejected", "from", from.String(), "err", err)
			}
		},
		OnBlock: func(b p2p.BlockWire, from peer.ID) {
			sugar.Infow("peer_block", "from", from.String(), "height", b.Height, "txs", b.Txs)
		},
	})

	// ---- API Server ----
	apiServer := api.NewServer(app, sugar)
	apiServer.AllowedOrigins = cfg.Node.CORSOrigins
	apiServer.OnSubmit = func(raw []byte) {
		if err := gossip.PublishTx(ctx, raw); err != nil && ctx.Err() == nil {
			sugar.Warnw("gossip_publish_failed", "err", err)
		}
	}

	// Hook app and producer to the API and the network
	app.OnEvent = func(ev auction.Event) { apiServer.BroadcastEvent(ev) }
	app.OnBlock = func(height uint64, receipts []*nft.Receipt) { apiServer.BroadcastBlock(height, receipts) }
	producer.OnBlockCommit = func(b consensus.Block) {
		_ = gossip.AnnounceBlock(ctx, p2p.BlockWire{
			Height:   uint64(b.Height),
			Hash:     consensus.HashOfBlock(b),
			AppHash:  b.AppHash,
			Proposer: string(b.Proposer),
			Txs:      len(abci.SplitPayload(b.Payload)),
		})
	}

	go func() {
		if err := apiServer.Start(ctx, cfg.Node.APIAddr); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	// ---- Transaction Feeder (optional) ----
	if cfg.Feeder.Enabled {
		cancelFeeder, err := nft.StartTxFeeder(ctx, app, nft.TxFeederConfig{
			BatchSize:   cfg.Feeder.BatchSize,
			Interval:    cfg.Feeder.Interval,
			NumAccounts: cfg.Feeder.NumAccounts,
			Seed:        cfg.Feeder.Seed,
		}, sugar)
		if err != nil {
			sugar.Fatalw("txfeeder_failed", "err", err)
		}
		defer cancelFeeder()
	} else {
		sugar.Info("txfeeder_disabled")
	}

	sugar.Infow("node_starting",
		"id", cfg.Node.ID,
		"height", producer.Head().Height,
		"peer_id", gossip.Host().ID().String(),
		"api", cfg.Node.APIAddr,
		"auto_settle", cfg.Node.AutoSettle)

	go func() {
		if err := producer.Run(ctx); err != nil && ctx.Err() == nil {
			sugar.Fatalw("producer_failed", "err", err)
		}
	}()

	progressLoop(ctx, sugar, app)
}

// buildGenesis funds the devnet keys, then the explicit balances
func buildGenesis(g params.Genesis) ([]nft.GenesisAccount, error) {
	out, err := nft.DevnetGenesis(g.DevnetAccounts, g.DevnetBalance)
	if err != nil {
		return nil, err
	}
	for _, b := range g.Balances {
		out = append(out, nft.GenesisAccount{Address: b.Address, Balance: b.Balance})
	}
	return out, nil
}

// progressLoop logs chain status every 100 blocks (and the first few) until ctx ends
func progressLoop(ctx context.Context, sugar *zap.SugaredLogger, app *nft.App) {
	const logInterval = uint64(100)
	lastLogged := uint64(0)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sugar.Infow("node_stopping", "height", app.Height())
			return
		case <-ticker.C:
			st := app.Status()
			if st.Height-lastLogged >= logInterval || st.Height <= 5 {
				sugar.Infow("chain_progress",
					"height", st.Height,
					"open_orders", st.OpenOrders,
					"mempool", st.Mempool,
					"supply", st.TotalSupply)
				lastLogged = st.Height
			}
		}
	}
}
