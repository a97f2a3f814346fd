package consensus

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"
)

type NodeID string
type Height uint64

type Hash [32]byte

func (h Hash) String() string { return fmt.Sprintf("%x", h[:]) }

type Block struct {
	Height   Height
	Parent   Hash
	AppHash  Hash // Hash of application state after executing this block
	Payload  []byte
	Proposer NodeID
	Time     time.Time
}

// HashOfBlock commits to height, parent, payload, proposer and time.
// AppHash is excluded: it is only known after execution.
func HashOfBlock(b Block) Hash {
	h := sha256.New()

	var heightBuf [8]byte
	binary.BigEndian.PutUint64(heightBuf[:], uint64(b.Height))
	h.Write(heightBuf[:])

	h.Write(b.Parent[:])
	h.Write(b.Payload)
	h.Write([]byte(b.Proposer))

	var timeBuf [8]byte
	binary.BigEndian.PutUint64(timeBuf[:], uint64(b.Time.UnixNano()))
	h.Write(timeBuf[:])

	return sha256.Sum256(h.Sum(nil))
}

func GenesisBlock() Block {
	return Block{
		Height: 0, Parent: Hash{},
		Payload: nil, Proposer: NodeID("genesis"), Time: time.Unix(0, 0),
	}
}

// AppHook is the application side of block production
type AppHook interface {
	PreparePayload(parent Block, next Height) []byte
	OnCommit(committed Block) Hash // Returns AppHash after executing block
}

// ---- Storage/WAL interfaces (impl in pkg/storage) ----

type BlockStore interface {
	SaveBlock(b Block)
	GetBlock(h Hash) (Block, bool)
	GetBlockByHeight(height Height) (Block, bool)
	SetCommitted(h Hash)
	GetCommitted() (Hash, bool)
}

type WAL interface {
	Append(line string)
}
