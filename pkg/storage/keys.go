package storage

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperbid/pkg/consensus"
)

// Key schema for Pebble storage
//
// Chain keys:
//   b:<hash>        → Block (gob)
//   h:<height>      → block hash
//   cm              → Committed hash
//
// State keys (JSON values):
//   acc:<address>          → ledger.Account
//   item:<id>              → item.Item
//   ord:<id>               → auction.Order
//   bid:<order>            → auction.Bid
//   stk:<order>:<seq>      → auction.Stake (seq keeps stake order)
//   cnt:item, cnt:order    → next id counters
//   meta:height, meta:apphash
//
// Ids and heights are big-endian so prefix scans come back in id order.

const (
	prefixAccount = "acc:"
	prefixItem    = "item:"
	prefixOrder   = "ord:"
	prefixBid     = "bid:"
	prefixStake   = "stk:"
)

var statePrefixes = []string{prefixAccount, prefixItem, prefixOrder, prefixBid, prefixStake}

func be64(v uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], v)
	return k[:]
}

func kBlock(h consensus.Hash) []byte { return append([]byte("b:"), h[:]...) }
func kHeight(h consensus.Height) []byte {
	return append([]byte("h:"), be64(uint64(h))...)
}
func kCommitted() []byte { return []byte("cm") }

func accountKey(addr common.Address) []byte { return append([]byte(prefixAccount), addr.Bytes()...) }
func itemKey(id uint64) []byte              { return append([]byte(prefixItem), be64(id)...) }
func orderKey(id uint64) []byte             { return append([]byte(prefixOrder), be64(id)...) }
func bidKey(orderID uint64) []byte          { return append([]byte(prefixBid), be64(orderID)...) }

func stakeKey(orderID uint64, seq int) []byte {
	k := append([]byte(prefixStake), be64(orderID)...)
	k = append(k, ':')
	return append(k, be64(uint64(seq))...)
}

var (
	kItemCounter  = []byte("cnt:item")
	kOrderCounter = []byte("cnt:order")
	kMetaHeight   = []byte("meta:height")
	kMetaAppHash  = []byte("meta:apphash")
)

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
