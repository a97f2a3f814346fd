package consensus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uhyunpark/hyperbid/pkg/util"
)

// Producer is a single-node block producer. Every MinBlockTime it asks the
// app for a payload, builds the next block on the committed head, executes
// it through the app and stores it. Block height is the only clock the
// application sees.
type Producer struct {
	App   AppHook
	Store BlockStore
	Clock util.Clock
	ID    NodeID

	MinBlockTime time.Duration
	SkipEmpty    bool // when true, empty payloads do not produce blocks

	Logger         *zap.SugaredLogger
	VerboseLogging bool // if false, only log non-empty commits and errors
	WAL            WAL

	// OnBlockCommit fires after a block is stored and marked committed
	OnBlockCommit func(Block)

	mu   sync.RWMutex
	head Block
}

// NewProducer resumes from the committed block in store, or from genesis
func NewProducer(app AppHook, store BlockStore, clock util.Clock, id NodeID) *Producer {
	p := &Producer{
		App: app, Store: store, Clock: clock, ID: id,
		MinBlockTime: 200 * time.Millisecond,
		head:         GenesisBlock(),
	}
	if h, ok := store.GetCommitted(); ok {
		if b, ok := store.GetBlock(h); ok {
			p.head = b
		}
	}
	return p
}

// Head returns the last committed block
func (p *Producer) Head() Block {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.head
}

// ProduceBlock builds, executes and commits one block.
// Returns false when SkipEmpty is set and there was nothing to include.
func (p *Producer) ProduceBlock() (Block, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	parent := p.head
	next := parent.Height + 1
	payload := p.App.PreparePayload(parent, next)
	if p.SkipEmpty && len(payload) == 0 {
		return Block{}, false, nil
	}

	b := Block{
		Height:   next,
		Parent:   HashOfBlock(parent),
		Payload:  payload,
		Proposer: p.ID,
		Time:     p.Clock.Now(),
	}
	b.AppHash = p.App.OnCommit(b)
	if b.AppHash == (Hash{}) {
		return Block{}, false, fmt.Errorf("app rejected block %d", next)
	}

	if p.Store != nil {
		p.Store.SaveBlock(b)
		p.Store.SetCommitted(HashOfBlock(b))
	}
	if p.WAL != nil {
		p.WAL.Append(fmt.Sprintf("commit height=%d hash=%s apphash=0x%x", b.Height, HashOfBlock(b), b.AppHash[:]))
	}
	p.head = b

	if p.Logger != nil && (p.VerboseLogging || len(payload) > 0) {
		p.Logger.Infow("commit", "height", b.Height, "payload_bytes", len(payload), "apphash", fmt.Sprintf("0x%x", b.AppHash[:8]))
	}
	if p.OnBlockCommit != nil {
		p.OnBlockCommit(b)
	}
	return b, true, nil
}

// Run produces blocks until ctx is cancelled
func (p *Producer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.Clock.After(p.MinBlockTime):
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, _, err := p.ProduceBlock(); err != nil {
			if p.Logger != nil {
				p.Logger.Errorw("produce_block_failed", "height", p.Head().Height+1, "err", err)
			}
			return err
		}
	}
}

// RunN produces n blocks back to back (tests and tooling)
func (p *Producer) RunN(n int) error {
	for i := 0; i < n; i++ {
		if _, _, err := p.ProduceBlock(); err != nil {
			return err
		}
	}
	return nil
}
