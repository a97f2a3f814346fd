package nft

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// TxFeederConfig controls devnet traffic generation
type TxFeederConfig struct {
	BatchSize   int           // txs per batch
	Interval    time.Duration // how often to generate a batch
	NumAccounts int           // devnet accounts taking part
	Seed        int64         // rng seed; same seed, same plan
}

func DefaultFeederConfig() TxFeederConfig {
	return TxFeederConfig{
		BatchSize:   5,
		Interval:    500 * time.Millisecond,
		NumAccounts: 10,
		Seed:        1,
	}
}

// StartTxFeeder pushes generated txs into the app until the returned cancel
// is called or ctx ends
func StartTxFeeder(ctx context.Context, app *App, cfg TxFeederConfig, logger *zap.SugaredLogger) (context.CancelFunc, error) {
	gen, err := NewTxGenerator(cfg.NumAccounts, cfg.Seed, app, app.cfg.Domain)
	if err != nil {
		return nil, err
	}

	feedCtx, cancel := context.WithCancel(ctx)

	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		startTime := time.Now()
		accepted, rejected := 0, 0
		lastReport := startTime

		if logger != nil {
			logger.Infow("txfeeder_started", "batch", cfg.BatchSize, "interval", cfg.Interval, "accounts", cfg.NumAccounts)
		}

		for {
			select {
			case <-feedCtx.Done():
				if logger != nil {
					logger.Infow("txfeeder_stopped", "accepted", accepted, "rejected", rejected,
						"elapsed", time.Since(startTime).Round(time.Second))
				}
				return

			case <-ticker.C:
				for _, tx := range gen.GenerateBatch(cfg.BatchSize) {
					if _, err := app.PushTx(tx); err != nil {
						rejected++
						continue
					}
					accepted++
				}

				if time.Since(lastReport) >= 10*time.Second && logger != nil {
					lastReport = time.Now()
					logger.Infow("txfeeder_stats", "accepted", accepted, "rejected", rejected,
						"mempool", app.MempoolSize(), "height", app.Height())
				}
			}
		}
	}()

	return cancel, nil
}
