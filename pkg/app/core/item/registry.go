package item

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MaxMetadataLen bounds the opaque metadata blob stored with an item
const MaxMetadataLen = 1024

var (
	ErrItemNotFound   = errors.New("item not found")
	ErrNotOwner       = errors.New("caller does not own item")
	ErrItemInAuction  = errors.New("item has an active order")
	ErrNotInAuction   = errors.New("item is not locked by an order")
	ErrMetadataTooBig = errors.New("metadata too large")
)

// Item is a unique asset. OrderID is set while an order holds the item in escrow.
type Item struct {
	ID       uint64         `json:"id"`
	Owner    common.Address `json:"owner"`
	Metadata string         `json:"metadata"`
	OrderID  *uint64        `json:"orderId,omitempty"`
}

// InAuction reports whether an open order holds the item
func (it *Item) InAuction() bool {
	return it.OrderID != nil
}

func (it *Item) clone() *Item {
	cp := *it
	if it.OrderID != nil {
		id := *it.OrderID
		cp.OrderID = &id
	}
	return &cp
}

// Registry maps item ids to owners and tracks the auction lock.
// Ids come from a monotonic counter and are never reused, even after removal.
type Registry struct {
	mu     sync.RWMutex
	items  map[uint64]*Item
	nextID uint64
}

// NewRegistry creates an empty item registry
func NewRegistry() *Registry {
	return &Registry{items: make(map[uint64]*Item)}
}

// Create registers a new item owned by owner and returns it
func (r *Registry) Create(owner common.Address, metadata string) (*Item, error) {
	if len(metadata) > MaxMetadataLen {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrMetadataTooBig, len(metadata), MaxMetadataLen)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	it := &Item{ID: r.nextID, Owner: owner, Metadata: metadata}
	r.items[it.ID] = it
	r.nextID++
	return it.clone(), nil
}

// Get returns a copy of the item
func (r *Registry) Get(id uint64) (*Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	return it.clone(), nil
}

// Owner returns the current owner of the item
func (r *Registry) Owner(id uint64) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[id]
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	return it.Owner, nil
}

// SetOwner reassigns ownership unconditionally. Only settlement calls this.
func (r *Registry) SetOwner(id uint64, owner common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	it.Owner = owner
	return nil
}

// Transfer moves an item between accounts outside of an auction
func (r *Registry) Transfer(id uint64, caller, to common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, err := r.ownedLocked(id, caller)
	if err != nil {
		return err
	}
	it.Owner = to
	return nil
}

// Remove deletes an item. The id is not reused.
func (r *Registry) Remove(id uint64, caller common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.ownedLocked(id, caller); err != nil {
		return err
	}
	delete(r.items, id)
	return nil
}

// ownedLocked checks existence, ownership and the auction lock (assumes lock is held)
func (r *Registry) ownedLocked(id uint64, caller common.Address) (*Item, error) {
	it, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	if it.Owner != caller {
		return nil, fmt.Errorf("%w: item %d owned by %s", ErrNotOwner, id, it.Owner.Hex())
	}
	if it.OrderID != nil {
		return nil, fmt.Errorf("%w: item %d held by order %d", ErrItemInAuction, id, *it.OrderID)
	}
	return it, nil
}

// LockForAuction marks the item as escrowed by orderID
func (r *Registry) LockForAuction(id, orderID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	if it.OrderID != nil {
		return fmt.Errorf("%w: item %d held by order %d", ErrItemInAuction, id, *it.OrderID)
	}
	it.OrderID = &orderID
	return nil
}

// Unlock clears the auction lock
func (r *Registry) Unlock(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	it, ok := r.items[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	if it.OrderID == nil {
		return fmt.Errorf("%w: %d", ErrNotInAuction, id)
	}
	it.OrderID = nil
	return nil
}

// Locked reports whether the item is held by an order
func (r *Registry) Locked(id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[id]
	return ok && it.OrderID != nil
}

// Items returns copies of all items sorted by id
func (r *Registry) Items() []*Item {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Item, 0, len(r.items))
	for _, it := range r.items {
		out = append(out, it.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ItemsOf returns the items owned by addr, sorted by id
func (r *Registry) ItemsOf(addr common.Address) []*Item {
	all := r.Items()
	out := all[:0]
	for _, it := range all {
		if it.Owner == addr {
			out = append(out, it)
		}
	}
	return out
}

// NextID returns the id the next Create will allocate
func (r *Registry) NextID() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextID
}

// Count returns the number of live items
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Load replaces the registry contents (used when restoring from storage)
func (r *Registry) Load(items []*Item, nextID uint64) error {
	loaded := make(map[uint64]*Item, len(items))
	for _, it := range items {
		if it.ID >= nextID {
			return fmt.Errorf("item %d not below counter %d", it.ID, nextID)
		}
		if _, dup := loaded[it.ID]; dup {
			return fmt.Errorf("duplicate item %d", it.ID)
		}
		loaded[it.ID] = it.clone()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = loaded
	r.nextID = nextID
	return nil
}
