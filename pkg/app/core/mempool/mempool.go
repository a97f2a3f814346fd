package mempool

import (
	"container/heap"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
)

// Bucket orders transactions inside a block
type Bucket int

const (
	BucketItem    Bucket = iota // create/transfer/remove item
	BucketCancel                // cancel_order
	BucketAuction               // open, bid, stake, settle
)

type envelope struct {
	Type   string `json:"type"`
	Sender string `json:"sender"`
	Nonce  uint64 `json:"nonce"`
}

func parseEnvelope(b []byte) (envelope, bool) {
	var env envelope
	if len(b) == 0 || b[0] != '{' {
		return env, false
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return env, false
	}
	return env, true
}

func bucketOf(txType string) Bucket {
	switch txType {
	case "create_item", "transfer_item", "remove_item":
		return BucketItem
	case "cancel_order":
		return BucketCancel
	default:
		return BucketAuction
	}
}

// ClassifyRaw buckets a raw transaction by its JSON "type" field.
// Malformed input goes to the auction bucket and is rejected at execution.
func ClassifyRaw(b []byte) Bucket {
	env, ok := parseEnvelope(b)
	if !ok {
		return BucketAuction
	}
	return bucketOf(env.Type)
}

type entry struct {
	raw    []byte
	bucket Bucket
	seq    uint64 // arrival order
	nonce  uint64
}

// lane holds one sender's pending txs in nonce order
type lane struct {
	key  string
	txs  []*entry
	head int
}

func (l *lane) peek() *entry { return l.txs[l.head] }

// laneHeap yields the lane whose head tx comes first: lowest bucket, then earliest arrival
type laneHeap []*lane

func (h laneHeap) Len() int { return len(h) }
func (h laneHeap) Less(i, j int) bool {
	a, b := h[i].peek(), h[j].peek()
	if a.bucket != b.bucket {
		return a.bucket < b.bucket
	}
	return a.seq < b.seq
}
func (h laneHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *laneHeap) Push(x interface{}) { *h = append(*h, x.(*lane)) }

func (h *laneHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Mempool orders txs in three buckets: item txs, then cancels, then the
// remaining auction txs, FIFO inside each. Across senders the bucket wins;
// a single sender's txs always leave in nonce order, so a sender's cancel
// never overtakes the open it refers to. Identical bytes are queued once.
type Mempool struct {
	mu      sync.Mutex
	lanes   map[string]*lane
	seq     uint64
	count   int
	pending map[[32]byte]struct{}
}

func NewMempool() *Mempool {
	return &Mempool{
		lanes:   make(map[string]*lane),
		pending: make(map[[32]byte]struct{}),
	}
}

func txKey(b []byte) [32]byte {
	var k [32]byte
	copy(k[:], crypto.Keccak256(b))
	return k
}

// PushRaw classifies and enqueues a tx. It returns false for a duplicate of a queued tx.
func (m *Mempool) PushRaw(b []byte) bool {
	cp := append([]byte(nil), b...)
	key := txKey(cp)
	env, ok := parseEnvelope(cp)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.pending[key]; dup {
		return false
	}
	m.pending[key] = struct{}{}

	m.seq++
	e := &entry{raw: cp, bucket: BucketAuction, seq: m.seq}
	laneKey := "#" + strconv.FormatUint(m.seq, 10) // unsigned or malformed txs travel alone
	if ok {
		e.bucket = bucketOf(env.Type)
		if env.Sender != "" {
			e.nonce = env.Nonce
			laneKey = strings.ToLower(env.Sender)
		}
	}

	l := m.lanes[laneKey]
	if l == nil {
		l = &lane{key: laneKey}
		m.lanes[laneKey] = l
	}
	pos := sort.Search(len(l.txs), func(i int) bool { return l.txs[i].nonce > e.nonce })
	l.txs = append(l.txs, nil)
	copy(l.txs[pos+1:], l.txs[pos:])
	l.txs[pos] = e
	m.count++
	return true
}

// SelectForProposal returns up to maxBytes worth of txs, removing them from
// the mempool. maxBytes <= 0 means no limit.
func (m *Mempool) SelectForProposal(maxBytes int64) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := make(laneHeap, 0, len(m.lanes))
	for _, l := range m.lanes {
		h = append(h, l)
	}
	heap.Init(&h)

	var out [][]byte
	var used int64
	for h.Len() > 0 {
		l := h[0]
		e := l.peek()
		n := int64(len(e.raw))
		if maxBytes > 0 && used+n > maxBytes {
			break
		}
		out = append(out, e.raw)
		used += n
		delete(m.pending, txKey(e.raw))
		l.head++
		m.count--

		if l.head == len(l.txs) {
			heap.Pop(&h)
			delete(m.lanes, l.key)
			continue
		}
		heap.Fix(&h, 0)
	}

	// compact the lanes that still hold txs
	for _, l := range m.lanes {
		if l.head > 0 {
			l.txs = append([]*entry(nil), l.txs[l.head:]...)
			l.head = 0
		}
	}
	return out
}

// Len returns total pending txs
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
