package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/hyperbid/pkg/app/core/auction"
	"github.com/uhyunpark/hyperbid/pkg/app/core/item"
	"github.com/uhyunpark/hyperbid/pkg/app/core/ledger"
	"github.com/uhyunpark/hyperbid/pkg/consensus"
)

type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}
func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) SaveBlock(b consensus.Block) {
	h := consensus.HashOfBlock(b)
	val, err := encodeGob(b)
	if err != nil {
		panic(fmt.Errorf("encode block: %w", err))
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(kBlock(h), val, nil); err != nil {
		panic(err)
	}
	if err := batch.Set(kHeight(b.Height), h[:], nil); err != nil {
		panic(err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		panic(err)
	}
}

func (s *PebbleStore) GetBlock(h consensus.Hash) (consensus.Block, bool) {
	val, closer, err := s.db.Get(kBlock(h))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return consensus.Block{}, false
		}
		panic(err)
	}
	defer closer.Close()
	var out consensus.Block
	if err := decodeGob(val, &out); err != nil {
		panic(err)
	}
	return out, true
}

func (s *PebbleStore) GetBlockByHeight(height consensus.Height) (consensus.Block, bool) {
	val, closer, err := s.db.Get(kHeight(height))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return consensus.Block{}, false
		}
		panic(err)
	}
	var h consensus.Hash
	copy(h[:], val)
	closer.Close()
	return s.GetBlock(h)
}

func (s *PebbleStore) SetCommitted(h consensus.Hash) {
	if err := s.db.Set(kCommitted(), h[:], pebble.Sync); err != nil {
		panic(err)
	}
}

func (s *PebbleStore) GetCommitted() (consensus.Hash, bool) {
	val, closer, err := s.db.Get(kCommitted())
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return consensus.Hash{}, false
		}
		panic(err)
	}
	defer closer.Close()
	var out consensus.Hash
	copy(out[:], val)
	return out, true
}

var _ consensus.BlockStore = (*PebbleStore)(nil)

// ============================================================================
// Application state
// ============================================================================

// State is the full application state as of one committed height
type State struct {
	Height     uint64
	AppHash    consensus.Hash
	Accounts   []*ledger.Account
	Items      []*item.Item
	NextItemID uint64
	Auction    *auction.Snapshot
}

// SaveState replaces the persisted state in one batch: every state prefix
// is cleared and rewritten, then the counters and height are set.
func (s *PebbleStore) SaveState(st *State) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	for _, p := range statePrefixes {
		prefix := []byte(p)
		if err := batch.DeleteRange(prefix, keyUpperBound(prefix), nil); err != nil {
			return fmt.Errorf("clear %s: %w", p, err)
		}
	}

	put := func(key []byte, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %q: %w", key, err)
		}
		return batch.Set(key, data, nil)
	}

	for _, acc := range st.Accounts {
		if err := put(accountKey(acc.Address), acc); err != nil {
			return err
		}
	}
	for _, it := range st.Items {
		if err := put(itemKey(it.ID), it); err != nil {
			return err
		}
	}

	snap := st.Auction
	if snap == nil {
		snap = &auction.Snapshot{}
	}
	for _, o := range snap.Orders {
		if err := put(orderKey(o.ID), o); err != nil {
			return err
		}
	}
	for _, b := range snap.Bids {
		if err := put(bidKey(b.OrderID), b); err != nil {
			return err
		}
	}
	seq := make(map[uint64]int)
	for _, stk := range snap.Stakes {
		if err := put(stakeKey(stk.OrderID, seq[stk.OrderID]), stk); err != nil {
			return err
		}
		seq[stk.OrderID]++
	}

	for key, v := range map[string]uint64{
		string(kItemCounter):  st.NextItemID,
		string(kOrderCounter): snap.NextOrderID,
		string(kMetaHeight):   st.Height,
	} {
		if err := batch.Set([]byte(key), be64(v), nil); err != nil {
			return err
		}
	}
	if err := batch.Set(kMetaAppHash, st.AppHash[:], nil); err != nil {
		return err
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}

// LoadState reads the persisted state. ok is false when nothing has been saved yet.
func (s *PebbleStore) LoadState() (st *State, ok bool, err error) {
	height, found, err := s.getU64(kMetaHeight)
	if err != nil || !found {
		return nil, false, err
	}
	st = &State{Height: height, Auction: &auction.Snapshot{}}

	if st.NextItemID, _, err = s.getU64(kItemCounter); err != nil {
		return nil, false, err
	}
	if st.Auction.NextOrderID, _, err = s.getU64(kOrderCounter); err != nil {
		return nil, false, err
	}
	if val, closer, err := s.db.Get(kMetaAppHash); err == nil {
		copy(st.AppHash[:], val)
		closer.Close()
	} else if !errors.Is(err, pebble.ErrNotFound) {
		return nil, false, err
	}

	if err := scanJSON(s, prefixAccount, func() any { return &ledger.Account{} }, func(v any) {
		st.Accounts = append(st.Accounts, v.(*ledger.Account))
	}); err != nil {
		return nil, false, err
	}
	if err := scanJSON(s, prefixItem, func() any { return &item.Item{} }, func(v any) {
		st.Items = append(st.Items, v.(*item.Item))
	}); err != nil {
		return nil, false, err
	}
	if err := scanJSON(s, prefixOrder, func() any { return &auction.Order{} }, func(v any) {
		st.Auction.Orders = append(st.Auction.Orders, v.(*auction.Order))
	}); err != nil {
		return nil, false, err
	}
	if err := scanJSON(s, prefixBid, func() any { return &auction.Bid{} }, func(v any) {
		st.Auction.Bids = append(st.Auction.Bids, v.(*auction.Bid))
	}); err != nil {
		return nil, false, err
	}
	if err := scanJSON(s, prefixStake, func() any { return &auction.Stake{} }, func(v any) {
		st.Auction.Stakes = append(st.Auction.Stakes, v.(*auction.Stake))
	}); err != nil {
		return nil, false, err
	}
	return st, true, nil
}

func (s *PebbleStore) getU64(key []byte) (uint64, bool, error) {
	val, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	defer closer.Close()
	v, err := decodeU64(val)
	if err != nil {
		return 0, false, fmt.Errorf("decode %q: %w", key, err)
	}
	return v, true, nil
}

func scanJSON(s *PebbleStore, prefix string, alloc func() any, add func(any)) error {
	lower := []byte(prefix)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: keyUpperBound(lower),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		v := alloc()
		if err := json.Unmarshal(iter.Value(), v); err != nil {
			return fmt.Errorf("decode %q: %w", iter.Key(), err)
		}
		add(v)
	}
	return iter.Error()
}
