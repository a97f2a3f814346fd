package nft

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"

	"github.com/uhyunpark/hyperbid/pkg/abci"
	"github.com/uhyunpark/hyperbid/pkg/app/core/auction"
	"github.com/uhyunpark/hyperbid/pkg/app/core/item"
	"github.com/uhyunpark/hyperbid/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperbid/pkg/app/core/mempool"
	"github.com/uhyunpark/hyperbid/pkg/app/core/transaction"
	"github.com/uhyunpark/hyperbid/pkg/consensus"
	"github.com/uhyunpark/hyperbid/pkg/crypto"
	"github.com/uhyunpark/hyperbid/pkg/storage"
)

const DefaultMaxReceipts = 10000

type GenesisAccount struct {
	Address common.Address
	Balance ledger.Balance
}

type Config struct {
	Params  auction.Params
	Genesis []GenesisAccount
	Domain  crypto.EIP712Domain

	// AutoSettle settles every due order at the end of each block,
	// with the treasury as caller
	AutoSettle  bool
	MaxReceipts int
}

// StateStore persists the full application state on every block
type StateStore interface {
	SaveState(st *storage.State) error
	LoadState() (*storage.State, bool, error)
}

// blockClock exposes the height of the block being executed to the engine
type blockClock struct{ height uint64 }

func (c *blockClock) CurrentHeight() auction.Height { return c.height }

// App is the auction application behind the ABCI bridge. One mutex
// serializes block execution with queries; the engine itself is unlocked.
type App struct {
	mu sync.RWMutex

	cfg      Config
	mempool  *mempool.Mempool
	verifier *transaction.Verifier
	ledger   *ledger.Manager
	items    *item.Registry
	engine   *auction.Engine
	clock    *blockClock
	store    StateStore

	appHash consensus.Hash
	halted  error // set when state could not be persisted; every later block is refused

	receipts     map[string]*Receipt
	receiptOrder []string

	txEvents    []auction.Event // events of the tx being executed
	blockEvents []auction.Event // events of the block being executed

	logger *zap.SugaredLogger

	// OnEvent receives every committed event after its block is persisted
	OnEvent func(auction.Event)
	// OnBlock receives the height and receipts of each finalized block
	OnBlock func(height uint64, receipts []*Receipt)
}

var ErrDuplicateTx = errors.New("transaction already in mempool")

// NewApp builds the app. With a store holding state it resumes from it;
// otherwise it applies the genesis balances (and persists them when store is set).
func NewApp(cfg Config, store StateStore, logger *zap.SugaredLogger) (*App, error) {
	if err := cfg.Params.Validate(); err != nil {
		return nil, fmt.Errorf("auction params: %w", err)
	}
	if cfg.MaxReceipts <= 0 {
		cfg.MaxReceipts = DefaultMaxReceipts
	}
	if cfg.Domain.Name == "" {
		cfg.Domain = crypto.DefaultDomain()
	}

	a := &App{
		cfg:      cfg,
		mempool:  mempool.NewMempool(),
		verifier: transaction.NewVerifier(cfg.Domain),
		ledger:   ledger.NewManager(),
		items:    item.NewRegistry(),
		clock:    &blockClock{},
		store:    store,
		receipts: make(map[string]*Receipt),
		logger:   logger,
	}
	a.engine = auction.NewEngine(cfg.Params, a.ledger, a.items, a.clock)
	a.engine.Logger = logger
	a.engine.OnEvent = func(ev auction.Event) { a.txEvents = append(a.txEvents, ev) }

	restored, err := a.restore()
	if err != nil {
		return nil, err
	}
	if !restored {
		if err := a.applyGenesis(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *App) restore() (bool, error) {
	if a.store == nil {
		return false, nil
	}
	st, ok, err := a.store.LoadState()
	if err != nil {
		return false, fmt.Errorf("load state: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := a.ledger.Load(st.Accounts); err != nil {
		return false, fmt.Errorf("restore ledger: %w", err)
	}
	if err := a.items.Load(st.Items, st.NextItemID); err != nil {
		return false, fmt.Errorf("restore items: %w", err)
	}
	if st.Auction != nil {
		if err := a.engine.Restore(st.Auction); err != nil {
			return false, fmt.Errorf("restore orders: %w", err)
		}
	}
	a.clock.height = st.Height
	a.appHash = st.AppHash
	if a.logger != nil {
		a.logger.Infow("state_restored", "height", st.Height, "accounts", len(st.Accounts),
			"items", len(st.Items), "orders", a.engine.NextOrderID())
	}
	return true, nil
}

func (a *App) applyGenesis() error {
	for _, g := range a.cfg.Genesis {
		if err := a.ledger.Deposit(g.Address, g.Balance); err != nil {
			return fmt.Errorf("genesis %s: %w", g.Address.Hex(), err)
		}
	}
	a.appHash = a.computeStateHash(0)
	if a.logger != nil {
		a.logger.Infow("genesis_applied", "accounts", len(a.cfg.Genesis), "supply", a.ledger.TotalIssued())
	}
	return a.persist(0)
}

func (a *App) persist(height uint64) error {
	if a.store == nil {
		return nil
	}
	return a.store.SaveState(a.stateAt(height))
}

func (a *App) stateAt(height uint64) *storage.State {
	return &storage.State{
		Height:     height,
		AppHash:    a.appHash,
		Accounts:   a.ledger.Accounts(),
		Items:      a.items.Items(),
		NextItemID: a.items.NextID(),
		Auction:    a.engine.Snapshot(),
	}
}

// PushTx admits a signed transaction to the mempool after structural,
// signature and nonce checks. It returns the tx hash.
func (a *App) PushTx(raw []byte) (string, error) {
	tx, err := transaction.ParseTransaction(raw)
	if err != nil {
		return "", err
	}
	sender, err := a.verifier.Verify(tx)
	if err != nil {
		return "", err
	}

	a.mu.RLock()
	current := a.ledger.Nonce(sender)
	a.mu.RUnlock()
	if tx.Nonce <= current {
		return "", fmt.Errorf("nonce too low: account nonce %d, tx nonce %d", current, tx.Nonce)
	}

	if !a.mempool.PushRaw(raw) {
		return "", ErrDuplicateTx
	}
	return TxHash(raw), nil
}

func (a *App) PrepareProposal(req abci.RequestPrepareProposal) abci.ResponsePrepareProposal {
	return abci.ResponsePrepareProposal{Txs: a.mempool.SelectForProposal(req.MaxTxBytes)}
}

// ProcessProposal rejects blocks carrying undecodable txs. Business failures
// are not grounds for rejection; they produce failed receipts.
func (a *App) ProcessProposal(req abci.RequestProcessProposal) abci.ResponseProcessProposal {
	for _, raw := range req.Txs {
		if _, err := transaction.Deserialize(raw); err != nil {
			if a.logger != nil {
				a.logger.Warnw("proposal_bad_tx", "height", req.Height, "err", err)
			}
			return abci.ResponseProcessProposal{Accept: false}
		}
	}
	return abci.ResponseProcessProposal{Accept: true}
}

func (a *App) FinalizeBlock(req abci.RequestFinalizeBlock) abci.ResponseFinalizeBlock {
	a.mu.Lock()

	if a.halted != nil {
		err := a.halted
		a.mu.Unlock()
		if a.logger != nil {
			a.logger.Errorw("block_refused_halted", "height", req.Height, "err", err)
		}
		return abci.ResponseFinalizeBlock{}
	}

	height := uint64(req.Height)
	if height <= a.clock.height {
		// Already applied (replay after restart)
		hash, current := a.appHash, a.clock.height
		a.mu.Unlock()
		if a.logger != nil {
			a.logger.Warnw("block_already_applied", "height", height, "current", current)
		}
		return abci.ResponseFinalizeBlock{AppHash: hash}
	}
	a.clock.height = height
	a.blockEvents = a.blockEvents[:0]

	receipts := make([]*Receipt, 0, len(req.Txs))
	results := make([]abci.TxResult, 0, len(req.Txs))
	for i, raw := range req.Txs {
		r := a.deliverTx(raw, height, i)
		receipts = append(receipts, r)
		results = append(results, r.result())
	}
	settled := 0
	if a.cfg.AutoSettle {
		settled = a.settleDue(height)
	}

	a.appHash = a.computeStateHash(height)
	if err := a.persist(height); err != nil {
		// Memory is now ahead of disk. The zero hash fails the block so it is
		// never stored; a restart resumes from the last persisted height.
		a.halted = fmt.Errorf("persist height %d: %w", height, err)
		a.mu.Unlock()
		if a.logger != nil {
			a.logger.Errorw("persist_failed", "height", height, "err", err)
		}
		return abci.ResponseFinalizeBlock{}
	}
	for _, r := range receipts {
		a.storeReceipt(r)
	}

	events := append([]auction.Event(nil), a.blockEvents...)
	hash := a.appHash
	a.mu.Unlock()

	if a.logger != nil && (len(req.Txs) > 0 || settled > 0) {
		failed := 0
		for _, r := range receipts {
			if !r.OK {
				failed++
			}
		}
		a.logger.Infow("block_finalized", "height", height, "txs", len(req.Txs), "failed", failed,
			"auto_settled", settled, "events", len(events), "apphash", fmt.Sprintf("0x%x", hash[:8]))
	}

	if a.OnEvent != nil {
		for _, ev := range events {
			a.OnEvent(ev)
		}
	}
	if a.OnBlock != nil {
		a.OnBlock(height, receipts)
	}

	names := make([]string, 0, len(events))
	for _, ev := range events {
		names = append(names, string(ev.Type))
	}
	return abci.ResponseFinalizeBlock{Events: names, TxResults: results, AppHash: hash}
}

// settleDue settles or cancels every order whose deadline passed
func (a *App) settleDue(height uint64) int {
	n := 0
	for _, id := range a.engine.DueOrders(height) {
		a.txEvents = a.txEvents[:0]
		if err := a.engine.SettleOrder(id, a.cfg.Params.Treasury); err != nil {
			if a.logger != nil {
				a.logger.Warnw("auto_settle_failed", "order", id, "err", err)
			}
			continue
		}
		a.blockEvents = append(a.blockEvents, a.txEvents...)
		n++
	}
	return n
}

// computeStateHash is Keccak256 over the height and the JSON of the sorted state.
// Every component exports in deterministic order.
func (a *App) computeStateHash(height uint64) consensus.Hash {
	h := sha3.NewLegacyKeccak256()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	h.Write(buf[:])

	body, err := json.Marshal(struct {
		Accounts   []*ledger.Account `json:"accounts"`
		Items      []*item.Item      `json:"items"`
		NextItemID uint64            `json:"nextItemId"`
		Auction    *auction.Snapshot `json:"auction"`
	}{a.ledger.Accounts(), a.items.Items(), a.items.NextID(), a.engine.Snapshot()})
	if err != nil {
		panic(fmt.Errorf("marshal state: %w", err))
	}
	h.Write(body)

	var out consensus.Hash
	copy(out[:], h.Sum(nil))
	return out
}

func (a *App) storeReceipt(r *Receipt) {
	if _, exists := a.receipts[r.TxHash]; !exists {
		a.receiptOrder = append(a.receiptOrder, r.TxHash)
	}
	a.receipts[r.TxHash] = r
	for len(a.receiptOrder) > a.cfg.MaxReceipts {
		delete(a.receipts, a.receiptOrder[0])
		a.receiptOrder = a.receiptOrder[1:]
	}
}

var _ abci.Application = (*App)(nil)
