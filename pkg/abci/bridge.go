package abci

import (
	"encoding/binary"
	"sync"

	"go.uber.org/zap"

	"github.com/uhyunpark/hyperbid/pkg/app/core/mempool"
	"github.com/uhyunpark/hyperbid/pkg/consensus"
)

// DefaultMaxTxBytes bounds a single block payload
const DefaultMaxTxBytes = 1 << 24

type RequestPrepareProposal struct{ Height, MaxTxBytes int64 }
type ResponsePrepareProposal struct{ Txs [][]byte }
type RequestProcessProposal struct {
	Height int64
	Txs    [][]byte
}
type ResponseProcessProposal struct{ Accept bool }
type RequestFinalizeBlock struct {
	Height    int64
	Timestamp int64 // Unix timestamp in seconds
	Txs       [][]byte
}

// TxResult is the outcome of one transaction in a finalized block
type TxResult struct {
	Hash   string `json:"hash"`
	Code   string `json:"code,omitempty"` // empty on success
	Log    string `json:"log,omitempty"`
	Events int    `json:"events"`
}

type ResponseFinalizeBlock struct {
	Events    []string
	TxResults []TxResult
	AppHash   consensus.Hash // Hash of application state after execution
}

type Application interface {
	PrepareProposal(RequestPrepareProposal) ResponsePrepareProposal
	ProcessProposal(RequestProcessProposal) ResponseProcessProposal
	FinalizeBlock(RequestFinalizeBlock) ResponseFinalizeBlock
}

// Bridge adapts an Application to consensus.AppHook
type Bridge struct {
	App        Application
	MaxTxBytes int64
	Logger     *zap.SugaredLogger
}

func (b *Bridge) maxTxBytes() int64 {
	if b.MaxTxBytes > 0 {
		return b.MaxTxBytes
	}
	return DefaultMaxTxBytes
}

func (b *Bridge) PreparePayload(_ consensus.Block, next consensus.Height) []byte {
	resp := b.App.PrepareProposal(RequestPrepareProposal{Height: int64(next), MaxTxBytes: b.maxTxBytes()})
	return JoinPayload(resp.Txs)
}

// OnCommit runs ProcessProposal then FinalizeBlock. A rejected proposal
// yields the zero hash, which the producer treats as a failed block.
func (b *Bridge) OnCommit(committed consensus.Block) consensus.Hash {
	txs := SplitPayload(committed.Payload)
	pp := b.App.ProcessProposal(RequestProcessProposal{Height: int64(committed.Height), Txs: txs})
	if !pp.Accept {
		if b.Logger != nil {
			b.Logger.Warnw("proposal_rejected", "height", committed.Height, "txs", len(txs))
		}
		return consensus.Hash{}
	}
	resp := b.App.FinalizeBlock(RequestFinalizeBlock{
		Height:    int64(committed.Height),
		Timestamp: committed.Time.Unix(),
		Txs:       txs,
	})
	return resp.AppHash
}

// JoinPayload concatenates txs with a 0x00 delimiter. Txs are JSON and
// never contain a zero byte.
func JoinPayload(txs [][]byte) []byte {
	var payload []byte
	for _, tx := range txs {
		payload = append(payload, tx...)
		payload = append(payload, 0x00)
	}
	return payload
}

func SplitPayload(p []byte) [][]byte {
	var out [][]byte
	cur := make([]byte, 0, len(p))
	for _, b := range p {
		if b == 0x00 {
			if len(cur) > 0 {
				out = append(out, append([]byte(nil), cur...))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, b)
	}
	if len(cur) > 0 {
		out = append(out, append([]byte(nil), cur...))
	}
	return out
}

// --- MockApp: mempool ordering without state ---
type MockApp struct {
	mu      sync.Mutex
	mempool *mempool.Mempool
	commits int
	lastTxs int
}

func NewMockApp() *MockApp { return &MockApp{mempool: mempool.NewMempool()} }

func (m *MockApp) PushTx(b []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mempool.PushRaw(b)
}

func (m *MockApp) PrepareProposal(req RequestPrepareProposal) ResponsePrepareProposal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ResponsePrepareProposal{Txs: m.mempool.SelectForProposal(req.MaxTxBytes)}
}

func (m *MockApp) ProcessProposal(_ RequestProcessProposal) ResponseProcessProposal {
	return ResponseProcessProposal{Accept: true}
}

func (m *MockApp) FinalizeBlock(req RequestFinalizeBlock) ResponseFinalizeBlock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	m.lastTxs = len(req.Txs)

	// deterministic: height + tx count
	var appHash consensus.Hash
	binary.BigEndian.PutUint64(appHash[:8], uint64(req.Height))
	binary.BigEndian.PutUint32(appHash[8:12], uint32(len(req.Txs)))
	appHash[31] = 1 // never the zero hash

	return ResponseFinalizeBlock{
		Events:  []string{"commit"},
		AppHash: appHash,
	}
}

func (m *MockApp) CommitCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

func (m *MockApp) LastTxCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastTxs
}

var _ consensus.AppHook = (*Bridge)(nil)
